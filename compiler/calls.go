package compiler

import (
	"github.com/vesper-lang/vesper/ast"
	"github.com/vesper-lang/vesper/opcodes"
)

// compileArgsInto pushes one call site's argument values and fills in
// the slot-count/spread bookkeeping of an already-started CallDesc.
// A by-ref argument that isn't a plain variable degrades to pass-by-
// value, matching the same fallback compileRefAssign uses.
func (g *Generator) compileArgsInto(desc *opcodes.CallDesc, args []ast.Arg, line int) {
	for _, a := range args {
		switch {
		case a.Spread:
			g.compileExpr(a.Value)
			desc.SpreadLast = true
		case a.ByRef:
			if v, ok := a.Value.(*ast.Variable); ok {
				g.emit(opcodes.OpLoadRef, g.resolveVar(v.Name), nil, line)
			} else {
				g.compileExpr(a.Value)
			}
		default:
			g.compileExpr(a.Value)
		}
		desc.ArgCount++
	}
}

// compileCall lowers a function, method, or dynamic call. The callee
// was parsed as one of: a bare name (ClassNameRef, reused for function
// names), a ->/:: member access, or an arbitrary expression yielding a
// callable value (a variable holding a closure, the result of another
// call, ...).
func (g *Generator) compileCall(n *ast.CallExpr) {
	line := n.Position.Line
	switch callee := n.Callee.(type) {
	case *ast.ClassNameRef:
		desc := &opcodes.CallDesc{Name: callee.Name}
		g.compileArgsInto(desc, n.Args, line)
		g.emit(opcodes.OpCall, 0, desc, line)

	case *ast.MemberAccess:
		g.compileClassRefOperand(callee.Object, line)
		desc := &opcodes.CallDesc{Static: callee.Static}
		if name, ok := memberNameLit(callee.Member, callee.Static); ok {
			desc.Name = name
		} else {
			g.compileExpr(callee.Member)
			desc.NameOnStack = true
		}
		g.compileArgsInto(desc, n.Args, line)
		g.emit(opcodes.OpCallMethod, 0, desc, line)

	default:
		g.compileExpr(n.Callee)
		desc := &opcodes.CallDesc{}
		g.compileArgsInto(desc, n.Args, line)
		g.emit(opcodes.OpCall, 0, desc, line)
	}
}

// compileNew lowers `new Expr(args)`. ClassNameExpr is a ClassNameRef
// for the common literal/self/parent/static cases and an arbitrary
// expression for `new ($expr)(...)`.
func (g *Generator) compileNew(n *ast.NewExpr) {
	line := n.Position.Line
	desc := &opcodes.CallDesc{}
	if ref, ok := n.ClassNameExpr.(*ast.ClassNameRef); ok {
		desc.Name = ref.Name
	} else {
		g.compileExpr(n.ClassNameExpr)
	}
	g.compileArgsInto(desc, n.Args, line)
	g.emit(opcodes.OpNew, 0, desc, line)
}
