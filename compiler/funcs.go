package compiler

import (
	"github.com/vesper-lang/vesper/ast"
	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

// compileDefaultChunk compiles one parameter default's value expression
// into an isolated instruction slice that shares the current scope's
// variable slots (so a default may reference an earlier parameter) but
// is not linked into the body's own code stream.
func (g *Generator) compileDefaultChunk(e ast.Expr) []opcodes.Instruction {
	saved := g.cur.code
	g.cur.code = nil
	g.compileExpr(e)
	g.emit(opcodes.OpReturn, 1, nil, e.Pos().Line)
	chunk := g.cur.code
	g.cur.code = saved
	return chunk
}

// compileFunctionBody compiles one function/method/closure body into a
// *registry.Function, declaring its parameter slots ahead of the body
// so references to them resolve to the right frame-local index.
func (g *Generator) compileFunctionBody(name string, params []ast.Param, body []ast.Stmt, byRefReturn bool, returnType string, isMethod bool, class *values.Class) *registry.Function {
	prev := g.pushScope()

	rparams := make([]registry.Param, len(params))
	for i, p := range params {
		g.resolveVar(p.Name)
		rp := registry.Param{Name: p.Name, Type: p.Type, ByRef: p.ByRef, Variadic: p.Variadic}
		if p.Default != nil {
			rp.HasDefault = true
			rp.Default = g.compileDefaultChunk(p.Default)
		}
		rparams[i] = rp
	}

	prevClass := g.classCtx
	if isMethod {
		g.classCtx = class
	}
	g.compileStmts(body)
	g.emit(opcodes.OpLoadConst, constNull, nil, 0)
	g.emit(opcodes.OpReturn, 1, nil, 0)
	g.classCtx = prevClass
	finished := g.popScope(prev)

	return &registry.Function{
		Name:        name,
		Params:      rparams,
		ByRefReturn: byRefReturn,
		ReturnType:  returnType,
		Body:        finished.code,
		NumLocals:   finished.nextVar,
		VarSlots:    finished.vars,
		StaticInit:  finished.staticInit,
		IsMethod:    isMethod,
		Class:       class,
	}
}

// compileFunctionDecl lowers a top-level `function f(...) {...}`
// declaration, declaring it into the registry immediately so forward
// references within the same file resolve (functions are hoisted).
func (g *Generator) compileFunctionDecl(n *ast.FunctionDecl) {
	fn := g.compileFunctionBody(n.Name, n.Params, n.Body, n.ByRefReturn, n.ReturnType, false, nil)
	g.reg.Declare(fn)
	g.emit(opcodes.OpDeclFunction, 0, n.Name, n.Position.Line)
}
