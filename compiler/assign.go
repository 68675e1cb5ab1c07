package compiler

import (
	"github.com/vesper-lang/vesper/ast"
	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/values"
)

// compileAssign lowers `=`, every compound-assignment operator, and
// `$a = &$b` reference assignment. Every form leaves the assigned value
// on the stack, since assignment is itself an expression
// (`echo $x = f();`) — see the OpStore family's "push clone back"
// convention in opcodes.go.
func (g *Generator) compileAssign(n *ast.Assign) {
	line := n.Position.Line

	if lst, ok := n.Target.(*ast.ListExpr); ok {
		g.compileListAssign(lst.Elements, n.Value, line)
		return
	}
	if arr, ok := n.Target.(*ast.ArrayLiteral); ok {
		g.compileListAssign(arrayLiteralAsList(arr), n.Value, line)
		return
	}

	if n.ByRef {
		g.compileRefAssign(n.Target, n.Value, line)
		return
	}

	if n.Op == "??=" {
		// `$a ??= $b` desugars to `$a = $a ?? $b`; the target is read
		// twice, which is fine for the lvalue shapes the parser accepts
		// here.
		g.compileAssign(&ast.Assign{
			Base: n.Base, Target: n.Target, Op: "=",
			Value: &ast.Binary{Base: n.Base, Op: "??", Left: n.Target, Right: n.Value},
		})
		return
	}

	if n.Op != "=" {
		g.compileCompoundAssign(n)
		return
	}

	switch target := n.Target.(type) {
	case *ast.Variable:
		g.compileExpr(n.Value)
		g.emit(opcodes.OpStore, g.resolveVar(target.Name), nil, line)

	case *ast.VarVarExpr:
		g.compileExpr(target.NameExpr)
		g.compileExpr(n.Value)
		g.emit(opcodes.OpStoreGlobal, 1, nil, line)

	case *ast.Subscript:
		g.compileSubscriptStore(target, n.Value, line)

	case *ast.MemberAccess:
		g.compileMemberStore(target, n.Value, line)

	default:
		g.errorf(n.Position, "internal: invalid assignment target %T", target)
		g.compileExpr(n.Value)
	}
}

// compileRefAssign implements `$a = &$b`: the target slot becomes an
// alias of the source's storage rather than receiving a copy.
func (g *Generator) compileRefAssign(target, value ast.Expr, line int) {
	switch t := target.(type) {
	case *ast.Variable:
		switch src := value.(type) {
		case *ast.Variable:
			g.emit(opcodes.OpLoadRef, g.resolveVar(src.Name), nil, line)
			g.emit(opcodes.OpStoreRef, g.resolveVar(t.Name), nil, line)
		default:
			// Binding a reference to a non-variable (e.g. an array
			// element) degrades to an ordinary value assignment; PHP
			// itself only allows referencing an lvalue here.
			g.compileExpr(value)
			g.emit(opcodes.OpStore, g.resolveVar(t.Name), nil, line)
		}
	default:
		g.errorf(target.Pos(), "cannot assign by reference to this expression")
		g.compileExpr(value)
	}
}

func (g *Generator) compileCompoundAssign(n *ast.Assign) {
	line := n.Position.Line
	sub := compoundOp(n.Op)
	switch target := n.Target.(type) {
	case *ast.Variable:
		slot := g.resolveVar(target.Name)
		g.emit(opcodes.OpLoad, slot, nil, line)
		g.compileExpr(n.Value)
		g.emit(opcodes.OpAssignOp, slot, sub, line)
	case *ast.Subscript:
		g.compileLvalueBase(target.Array, line)
		g.compileExpr(target.Index)
		g.compileExpr(n.Value)
		g.emit(opcodes.OpAssignDimOp, 0, sub, line)
	case *ast.MemberAccess:
		// `$obj->prop += $x` is lowered as a plain load-compute-store
		// triple rather than a dedicated opcode: the member name is
		// resolved twice (load, then store), which is observably
		// identical for the property-table model used here.
		g.compileMemberLoad(target)
		g.compileExpr(n.Value)
		g.emit(opcodes.OpAssignOp, -1, sub, line)
		g.compileMemberStoreTop(target, line)
	default:
		g.errorf(n.Position, "internal: invalid compound-assignment target %T", target)
		g.compileExpr(n.Value)
	}
}

// compileLvalueBase compiles the base of a subscript store with the
// may-create flag: intermediate `$a[1][2]` hops auto-vivify missing
// entries (OpLoadIdx P1=2) so the final store lands in a container that
// is actually attached to the outer array.
func (g *Generator) compileLvalueBase(e ast.Expr, line int) {
	s, ok := e.(*ast.Subscript)
	if !ok {
		g.compileExpr(e)
		return
	}
	g.compileLvalueBase(s.Array, line)
	if s.Index == nil {
		g.emit(opcodes.OpLoadIdx, 1, nil, line)
		return
	}
	g.compileExpr(s.Index)
	g.emit(opcodes.OpLoadIdx, 2, nil, line)
}

func (g *Generator) compileSubscriptStore(s *ast.Subscript, valueExpr ast.Expr, line int) {
	g.compileLvalueBase(s.Array, line)
	if s.Index == nil {
		g.emit(opcodes.OpLoadConst, constNull, nil, line)
		g.compileExpr(valueExpr)
		g.emit(opcodes.OpStoreIdx, 1, nil, line) // P1=1: append mode, ignore popped index
	} else {
		g.compileExpr(s.Index)
		g.compileExpr(valueExpr)
		g.emit(opcodes.OpStoreIdx, 0, nil, line)
	}
}

func (g *Generator) compileMemberStore(m *ast.MemberAccess, valueExpr ast.Expr, line int) {
	g.compileClassRefOperand(m.Object, line)
	p1 := 0
	if m.Static {
		p1 = 1
	}
	if name, ok := memberNameLit(m.Member, m.Static); ok {
		g.compileExpr(valueExpr)
		g.emit(opcodes.OpStoreMember, p1, name, line)
		return
	}
	g.compileExpr(m.Member)
	g.compileExpr(valueExpr)
	g.emit(opcodes.OpStoreMember, p1|2, nil, line)
}

// compileMemberStoreTop stores the value already sitting on top of the
// stack (placed there by a preceding compound-assign compute) into m,
// re-evaluating the object subexpression.
func (g *Generator) compileMemberStoreTop(m *ast.MemberAccess, line int) {
	p1 := 0
	if m.Static {
		p1 = 1
	}
	if name, ok := memberNameLit(m.Member, m.Static); ok {
		g.compileClassRefOperand(m.Object, line)
		g.emit(opcodes.OpSwap, 0, nil, line)
		g.emit(opcodes.OpStoreMember, p1, name, line)
		return
	}
	g.compileClassRefOperand(m.Object, line)
	g.emit(opcodes.OpSwap, 0, nil, line)
	g.compileExpr(m.Member)
	g.emit(opcodes.OpSwap, 0, nil, line)
	g.emit(opcodes.OpStoreMember, p1|2, nil, line)
}

// arrayLiteralAsList reinterprets `[$a, $b] = $pair` (parsed as an
// ArrayLiteral target, since `[...]` is ambiguous between a literal and
// a destructuring pattern until assignment) as list-assignment elements.
func arrayLiteralAsList(a *ast.ArrayLiteral) []ast.ListElement {
	out := make([]ast.ListElement, len(a.Elements))
	for i, el := range a.Elements {
		out[i] = ast.ListElement{Key: el.Key, Target: el.Value, ByRef: el.ByRef}
	}
	return out
}

// compileListAssign lowers `list(...) = $subject` / `[...] = $subject`.
// The subject is evaluated once into a synthetic temporary slot so each
// target can read it repeatedly without re-evaluating a (possibly
// side-effecting) subject expression.
func (g *Generator) compileListAssign(elements []ast.ListElement, subject ast.Expr, line int) {
	tmp := g.newTempVar()
	g.compileExpr(subject)
	g.emit(opcodes.OpStore, tmp, nil, line)
	g.emit(opcodes.OpPop, 0, nil, line)
	g.destructureFromSlot(tmp, elements, line)
	g.emit(opcodes.OpLoad, tmp, nil, line)
}

// destructureFromSlot reads each target's element out of the value
// already sitting in slot tmp and stores it, without touching tmp
// itself. Shared by list-assignment and foreach's `as list(...)` /
// `as [...]` value binding.
func (g *Generator) destructureFromSlot(tmp int, elements []ast.ListElement, line int) {
	for i, el := range elements {
		if el.Target == nil {
			continue
		}
		g.emit(opcodes.OpLoad, tmp, nil, line)
		if el.Key != nil {
			g.compileExpr(el.Key)
		} else {
			g.emit(opcodes.OpLoadConst, g.constIndex(values.Int(int64(i))), nil, line)
		}
		g.emit(opcodes.OpLoadIdx, 0, nil, line)
		g.storeInto(el.Target, line)
		g.emit(opcodes.OpPop, 0, nil, line)
	}
}

// compileIssetTarget pushes the addressing operands for one isset()/
// empty() operand and emits OpIsset, leaving a bool on the stack.
func (g *Generator) compileIssetTarget(target ast.Expr, line int) {
	switch t := target.(type) {
	case *ast.Variable:
		g.emit(opcodes.OpIsset, g.resolveVar(t.Name), nil, line)
	case *ast.Subscript:
		g.compileExpr(t.Array)
		if t.Index == nil {
			g.emit(opcodes.OpLoadConst, constNull, nil, line)
		} else {
			g.compileExpr(t.Index)
		}
		g.emit(opcodes.OpIsset, -1, nil, line)
	case *ast.MemberAccess:
		g.compileClassRefOperand(t.Object, line)
		p1 := -2
		if t.Static {
			p1 = -4
		}
		if name, ok := memberNameLit(t.Member, t.Static); ok {
			g.emit(opcodes.OpIsset, p1, name, line)
		} else {
			g.compileExpr(t.Member)
			g.emit(opcodes.OpIsset, p1-1, nil, line)
		}
	default:
		// Not an lvalue (e.g. isset(foo())): evaluate and treat non-null
		// as set, same as a real engine would refuse this at parse time
		// but here degrades gracefully instead.
		g.compileExpr(target)
		g.emit(opcodes.OpLoadConst, constNull, nil, line)
		g.emit(opcodes.OpNeq, 0, nil, line)
	}
}

// compileUnsetTarget mirrors compileIssetTarget for unset(), pushing the
// same addressing operands but emitting OpUnset, which leaves nothing on
// the stack.
func (g *Generator) compileUnsetTarget(target ast.Expr, line int) {
	switch t := target.(type) {
	case *ast.Variable:
		g.emit(opcodes.OpUnset, g.resolveVar(t.Name), nil, line)
	case *ast.Subscript:
		if t.Index == nil {
			g.errorf(t.Position, "cannot unset(): [] has no target")
			return
		}
		g.compileExpr(t.Array)
		g.compileExpr(t.Index)
		g.emit(opcodes.OpUnset, -1, nil, line)
	case *ast.MemberAccess:
		g.compileClassRefOperand(t.Object, line)
		p1 := -2
		if t.Static {
			p1 = -4
		}
		if name, ok := memberNameLit(t.Member, t.Static); ok {
			g.emit(opcodes.OpUnset, p1, name, line)
		} else {
			g.compileExpr(t.Member)
			g.emit(opcodes.OpUnset, p1-1, nil, line)
		}
	default:
		g.errorf(target.Pos(), "cannot unset() this expression")
	}
}

// newTempVar allocates a compiler-synthesized local slot under a name
// no PHP source can ever spell, so it can never collide with a
// user-declared variable.
func (g *Generator) newTempVar() int {
	return g.resolveVar("\x00tmp" + itoa(g.cur.nextVar))
}

// storeInto stores the value on top of the stack into target, leaving
// the stored clone on top in its place (mirrors compileAssign's simple
// targets, reused here and by foreach key/value binding).
func (g *Generator) storeInto(target ast.Expr, line int) {
	switch t := target.(type) {
	case *ast.Variable:
		g.emit(opcodes.OpStore, g.resolveVar(t.Name), nil, line)
	case *ast.Subscript:
		// Stack currently holds [..., value]; StoreIdx needs
		// [base, index, value], so evaluate base/index first and swap
		// the value into place underneath them.
		g.compileLvalueBase(t.Array, line)
		g.emit(opcodes.OpSwap, 0, nil, line)
		if t.Index == nil {
			g.emit(opcodes.OpLoadConst, constNull, nil, line)
			g.emit(opcodes.OpSwap, 0, nil, line)
			g.emit(opcodes.OpStoreIdx, 1, nil, line)
		} else {
			g.compileExpr(t.Index)
			g.emit(opcodes.OpSwap, 0, nil, line)
			g.emit(opcodes.OpStoreIdx, 0, nil, line)
		}
	case *ast.MemberAccess:
		g.compileClassRefOperand(t.Object, line)
		g.emit(opcodes.OpSwap, 0, nil, line)
		p1 := 0
		if t.Static {
			p1 = 1
		}
		if name, ok := memberNameLit(t.Member, t.Static); ok {
			g.emit(opcodes.OpStoreMember, p1, name, line)
		} else {
			g.compileExpr(t.Member)
			g.emit(opcodes.OpSwap, 0, nil, line)
			g.emit(opcodes.OpStoreMember, p1|2, nil, line)
		}
	default:
		g.errorf(target.Pos(), "internal: invalid store target %T", t)
		g.emit(opcodes.OpPop, 0, nil, line)
	}
}
