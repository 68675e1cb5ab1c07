package compiler

import (
	"github.com/vesper-lang/vesper/ast"
	"github.com/vesper-lang/vesper/opcodes"
)

// compileStmts lowers a statement list in order; each statement that is
// also an expression (ExprStmt) has its value discarded with a trailing
// Pop, since only the last value of a block ever reaches an enclosing
// construct through an explicit construct (return, echo, ...), never by
// falling off the end of a block.
func (g *Generator) compileStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		g.compileStmt(s)
	}
}

func (g *Generator) compileStmt(s ast.Stmt) {
	line := s.Pos().Line
	switch n := s.(type) {
	case *ast.ExprStmt:
		g.compileExpr(n.X)
		g.emit(opcodes.OpPop, 0, nil, line)

	case *ast.EchoStmt:
		for _, v := range n.Values {
			g.compileExpr(v)
			g.emit(opcodes.OpConsume, 0, nil, line)
		}

	case *ast.InlineHTMLStmt:
		g.emit(opcodes.OpLoadConst, g.internString(n.Text), nil, line)
		g.emit(opcodes.OpConsume, 0, nil, line)

	case *ast.BlockStmt:
		g.compileStmts(n.Stmts)

	case *ast.IfStmt:
		g.compileIf(n)

	case *ast.WhileStmt:
		g.compileWhile(n)

	case *ast.DoWhileStmt:
		g.compileDoWhile(n)

	case *ast.ForStmt:
		g.compileFor(n)

	case *ast.ForeachStmt:
		g.compileForeach(n)

	case *ast.SwitchStmt:
		g.compileSwitch(n)

	case *ast.BreakStmt:
		g.compileBreak(n.Level, n.Position)

	case *ast.ContinueStmt:
		g.compileContinue(n.Level, n.Position)

	case *ast.ReturnStmt:
		if n.Value != nil {
			g.compileExpr(n.Value)
		} else {
			g.emit(opcodes.OpLoadConst, constNull, nil, line)
		}
		g.emit(opcodes.OpReturn, 1, nil, line)

	case *ast.ThrowStmt:
		g.compileExpr(n.Value)
		g.emit(opcodes.OpThrow, 0, nil, line)

	case *ast.TryStmt:
		g.compileTry(n)

	case *ast.GlobalStmt:
		for _, name := range n.Names {
			g.emit(opcodes.OpFetchUplink, g.resolveVar(name), name, line)
		}

	case *ast.UnsetStmt:
		for _, v := range n.Vars {
			g.compileUnsetTarget(v, line)
		}

	case *ast.StaticVarStmt:
		for _, d := range n.Vars {
			slot := g.resolveVar(d.Name)
			var init []opcodes.Instruction
			if d.Init != nil {
				init = g.compileDefaultChunk(d.Init)
			} else {
				init = []opcodes.Instruction{
					{Op: opcodes.OpLoadConst, P1: constNull, Line: line},
					{Op: opcodes.OpReturn, P1: 1, Line: line},
				}
			}
			g.cur.staticInit[d.Name] = init
			g.emit(opcodes.OpBindStatic, slot, d.Name, line)
		}

	case *ast.ConstStmt:
		for _, d := range n.Decls {
			g.compileExpr(d.Value)
			g.emit(opcodes.OpDeclConst, 0, d.Name, line)
		}

	case *ast.FunctionDecl:
		g.compileFunctionDecl(n)

	case *ast.ClassDecl:
		g.compileClassDecl(n)

	case *ast.GotoStmt:
		g.compileGoto(n.Label, n.Position)

	case *ast.LabelStmt:
		g.compileLabel(n.Name, n.Position)

	case *ast.NamespaceStmt:
		g.noticef(n.Position, "namespace declarations have no effect")

	case *ast.UseStmt:
		g.noticef(n.Position, "use-imports have no effect")

	case *ast.DeclareStmt:
		g.noticef(n.Position, "declare(%s) has no effect", n.Directive)

	default:
		g.errorf(s.Pos(), "internal: unhandled statement node %T", s)
	}
}

func (g *Generator) compileIf(n *ast.IfStmt) {
	line := n.Position.Line
	var endFixups []int

	g.compileExpr(n.Cond)
	jz := g.emit(opcodes.OpJz, 0, nil, line)
	g.compileStmts(n.Then)
	endFixups = append(endFixups, g.emit(opcodes.OpJmp, 0, nil, line))
	g.patch(jz, g.ip())

	for _, ei := range n.ElseIfs {
		g.compileExpr(ei.Cond)
		jz := g.emit(opcodes.OpJz, 0, nil, line)
		g.compileStmts(ei.Body)
		endFixups = append(endFixups, g.emit(opcodes.OpJmp, 0, nil, line))
		g.patch(jz, g.ip())
	}

	if n.Else != nil {
		g.compileStmts(n.Else)
	}
	end := g.ip()
	for _, idx := range endFixups {
		g.patch(idx, end)
	}
}

func (g *Generator) compileWhile(n *ast.WhileStmt) {
	line := n.Position.Line
	start := g.ip()
	g.compileExpr(n.Cond)
	jz := g.emit(opcodes.OpJz, 0, nil, line)

	b := g.pushBlock(blockLoop)
	g.setContinueIP(b, start)
	g.compileStmts(n.Body)
	g.emit(opcodes.OpJmp, 0, nil, line)
	g.cur.code[len(g.cur.code)-1].P2 = start
	g.popBlock()

	g.patch(jz, g.ip())
}

func (g *Generator) compileDoWhile(n *ast.DoWhileStmt) {
	line := n.Position.Line
	start := g.ip()

	b := g.pushBlock(blockLoop)
	g.compileStmts(n.Body)
	condIP := g.ip()
	g.setContinueIP(b, condIP)
	g.compileExpr(n.Cond)
	jnz := g.emit(opcodes.OpJnz, 0, nil, line)
	g.patch(jnz, start)
	g.popBlock()
}

func (g *Generator) compileFor(n *ast.ForStmt) {
	line := n.Position.Line
	for _, e := range n.Init {
		g.compileExpr(e)
		g.emit(opcodes.OpPop, 0, nil, line)
	}

	condIP := g.ip()
	var jz int
	haveCond := len(n.Cond) > 0
	if haveCond {
		for i, e := range n.Cond {
			g.compileExpr(e)
			if i < len(n.Cond)-1 {
				g.emit(opcodes.OpPop, 0, nil, line)
			}
		}
		jz = g.emit(opcodes.OpJz, 0, nil, line)
	}

	b := g.pushBlock(blockLoop)
	g.compileStmts(n.Body)
	postIP := g.ip()
	g.setContinueIP(b, postIP)
	for _, e := range n.Post {
		g.compileExpr(e)
		g.emit(opcodes.OpPop, 0, nil, line)
	}
	jmp := g.emit(opcodes.OpJmp, 0, nil, line)
	g.patch(jmp, condIP)
	g.popBlock()

	if haveCond {
		g.patch(jz, g.ip())
	}
}

func (g *Generator) compileForeach(n *ast.ForeachStmt) {
	line := n.Position.Line
	g.compileExpr(n.Subject)

	desc := &opcodes.ForeachDesc{KeySlot: -1, ByRef: n.ByRef}
	if n.KeyVar != nil {
		if v, ok := n.KeyVar.(*ast.Variable); ok {
			desc.KeySlot = g.resolveVar(v.Name)
		}
	}

	var destructure []ast.ListElement
	switch vv := n.ValueVar.(type) {
	case *ast.Variable:
		desc.ValueSlot = g.resolveVar(vv.Name)
	case *ast.ListExpr:
		desc.ValueSlot = g.newTempVar()
		destructure = vv.Elements
	case *ast.ArrayLiteral:
		desc.ValueSlot = g.newTempVar()
		destructure = arrayLiteralAsList(vv)
	default:
		desc.ValueSlot = g.newTempVar()
	}

	g.emit(opcodes.OpForeachInit, 0, desc, line)
	start := g.ip()
	stepIdx := g.emit(opcodes.OpForeachStep, 0, desc, line)

	b := g.pushBlock(blockLoop)
	g.setContinueIP(b, start)
	if destructure != nil {
		g.destructureFromSlot(desc.ValueSlot, destructure, line)
	}
	g.compileStmts(n.Body)
	g.emit(opcodes.OpJmp, 0, nil, line)
	g.cur.code[len(g.cur.code)-1].P2 = start
	g.popBlock()

	end := g.ip()
	g.cur.code[stepIdx].P2 = end
	g.emit(opcodes.OpForeachFree, 0, desc, line)
}

func (g *Generator) compileSwitch(n *ast.SwitchStmt) {
	line := n.Position.Line
	g.compileExpr(n.Selector)

	desc := &opcodes.SwitchDesc{DefaultIdx: -1}
	b := g.pushBlock(blockSwitch)

	bodyStarts := make([]uint32, len(n.Cases))
	jmpToSwitch := g.emit(opcodes.OpJmp, 0, nil, line) // placeholder, patched once case bodies are laid out

	for i, c := range n.Cases {
		bodyStarts[i] = g.ip()
		if c.Expr == nil {
			desc.DefaultIdx = i
		}
		g.compileStmts(c.Body)
	}
	// Falling off the last case body exits the switch rather than running
	// into the SWITCH dispatch that sits after the bodies.
	b.breakFixups = append(b.breakFixups, g.emit(opcodes.OpJmp, 0, nil, line))
	g.patch(jmpToSwitch, g.ip())

	for i, c := range n.Cases {
		if c.Expr == nil {
			desc.Cases = append(desc.Cases, opcodes.SwitchCase{Start: bodyStarts[i]})
			continue
		}
		prev := g.cur.code
		g.cur.code = nil
		g.compileExpr(c.Expr)
		exprCode := g.cur.code
		g.cur.code = prev
		desc.Cases = append(desc.Cases, opcodes.SwitchCase{Expr: exprCode, Start: bodyStarts[i]})
	}
	g.emit(opcodes.OpSwitch, 0, desc, line)
	desc.OutIP = g.ip()

	g.popBlock()
}

// compileTry lowers a try/catch/finally block. Catch and finally bodies
// are compiled into their own embedded instruction slices (hung off
// ExceptionDesc) rather than laid out inline, since they only ever run
// by the VM's own exception-dispatch logic, never by falling through
// from the protected region.
func (g *Generator) compileTry(n *ast.TryStmt) {
	line := n.Position.Line
	desc := &opcodes.ExceptionDesc{}

	g.emit(opcodes.OpPushExceptionFrame, 0, desc, line)
	g.compileStmts(n.Body)
	g.emit(opcodes.OpPopExceptionFrame, 0, nil, line)
	endTry := g.emit(opcodes.OpJmp, 0, nil, line)

	for _, c := range n.Catches {
		varSlot := -1
		if c.VarName != "" {
			varSlot = g.resolveVar(c.VarName)
		}
		desc.Catches = append(desc.Catches, opcodes.CatchDesc{
			ClassNames: c.ClassNames,
			VarSlot:    varSlot,
			Body:       g.compileEmbedded(c.Body, opcodes.OpPopExceptionFrame),
		})
	}

	if n.Finally != nil {
		desc.Finally = g.compileEmbedded(n.Finally, opcodes.OpNop)
	}

	desc.EndIP = g.ip()
	g.patch(endTry, g.ip())
}

// compileEmbedded compiles a statement list into an isolated
// instruction slice sharing the current scope's variable slots, for
// bodies (catch/finally blocks) that hang off a descriptor instead of
// running inline. The block stack is fenced with a function-kind
// sentinel for the duration: a break/continue/goto inside a catch or
// finally body cannot target a jump index in the enclosing container,
// so letting a fix-up escape would patch the wrong instruction stream.
func (g *Generator) compileEmbedded(stmts []ast.Stmt, trailer opcodes.Op) []opcodes.Instruction {
	saved := g.cur.code
	savedBlocks := g.cur.blocks
	g.cur.code = nil
	g.cur.blocks = []*cblock{{kind: blockFunc}}
	g.compileStmts(stmts)
	if trailer != opcodes.OpNop {
		g.emit(trailer, 0, nil, 0)
	}
	chunk := g.cur.code
	g.cur.code = saved
	g.cur.blocks = savedBlocks
	return chunk
}
