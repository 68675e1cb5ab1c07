package compiler

import (
	"github.com/vesper-lang/vesper/ast"
	"github.com/vesper-lang/vesper/errors"
	"github.com/vesper-lang/vesper/lexer"
	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/parser"
	"github.com/vesper-lang/vesper/registry"
)

// Compile lexes, parses, and lowers one source file into a Program. reg
// is shared with the VM that will run the result, so host-registered
// builtins/constants/classes declared on it ahead of time are visible
// throughout. Diagnostics (lex errors, parse errors, codegen errors) are
// all funneled through bag; Compile never panics on malformed input.
func Compile(file, source string, bag *errors.Bag, reg *registry.Registry) *Program {
	g := New(file, bag, reg)
	g.cur = newScope()
	g.cur.blocks = append(g.cur.blocks, &cblock{kind: blockFunc})

	var stmts []ast.Stmt
	for _, chunk := range lexer.Split(source) {
		if !chunk.IsCode {
			stmts = append(stmts, &ast.InlineHTMLStmt{
				Base: ast.At(lexer.Position{Line: chunk.Line, Column: 1}),
				Text: chunk.Text,
			})
			continue
		}
		lx := lexer.New(chunk.Text, chunk.Line)
		toks, lexErrs := lx.Tokenize()
		for _, msg := range lexErrs {
			bag.Report(errors.New(errors.KindParse, file, errors.Position{Line: chunk.Line}, "%s", msg))
		}
		p := parser.New(file, toks, bag)
		stmts = append(stmts, p.ParseProgram()...)
		if bag.Abort() {
			break
		}
	}

	g.compileStmts(stmts)
	g.emit(opcodes.OpHalt, 0, nil, 0)
	finished := g.cur
	g.resolveGotos(finished)

	return &Program{
		Global: &Chunk{
			Code:       finished.code,
			NumLocals:  finished.nextVar,
			VarSlots:   finished.vars,
			StaticInit: finished.staticInit,
		},
		Reg:    reg,
		Consts: g.consts,
	}
}
