package compiler

import (
	"strings"

	"github.com/vesper-lang/vesper/ast"
	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/values"
)

// binaryOp maps a Binary node's textual operator to the opcode it lowers
// to; "&&", "||", "??", "and", "or", "xor", "instanceof" are handled
// separately in compileExpr since they need control flow or dedicated
// node types rather than a flat two-operand opcode.
var binaryOp = map[string]opcodes.Op{
	"+": opcodes.OpAdd, "-": opcodes.OpSub, "*": opcodes.OpMul, "/": opcodes.OpDiv,
	"%": opcodes.OpMod, "**": opcodes.OpPow, ".": opcodes.OpConcat,
	"&": opcodes.OpBitAnd, "|": opcodes.OpBitOr, "^": opcodes.OpBitXor,
	"<<": opcodes.OpShl, ">>": opcodes.OpShr,
	"==": opcodes.OpEq, "!=": opcodes.OpNeq, "<>": opcodes.OpNeq,
	"===": opcodes.OpIdentical, "!==": opcodes.OpNotIdentical,
	"<": opcodes.OpLt, "<=": opcodes.OpLe, ">": opcodes.OpGt, ">=": opcodes.OpGe,
	"<=>": opcodes.OpSpaceship,
}

// compoundOp strips the trailing "=" off a compound-assignment operator
// text, yielding the sub-opcode OpAssignOp/OpAssignDimOp carries in P3.
func compoundOp(op string) opcodes.Op {
	switch op {
	case "+=":
		return opcodes.OpAdd
	case "-=":
		return opcodes.OpSub
	case "*=":
		return opcodes.OpMul
	case "/=":
		return opcodes.OpDiv
	case "%=":
		return opcodes.OpMod
	case "**=":
		return opcodes.OpPow
	case ".=":
		return opcodes.OpConcat
	case "&=":
		return opcodes.OpBitAnd
	case "|=":
		return opcodes.OpBitOr
	case "^=":
		return opcodes.OpBitXor
	case "<<=":
		return opcodes.OpShl
	case ">>=":
		return opcodes.OpShr
	}
	return opcodes.OpNop
}

func castKind(k ast.CastKind) opcodes.CastKind {
	switch k {
	case ast.CastToInt:
		return opcodes.CastInt
	case ast.CastToFloat:
		return opcodes.CastFloat
	case ast.CastToString:
		return opcodes.CastString
	case ast.CastToBool:
		return opcodes.CastBool
	case ast.CastToArray:
		return opcodes.CastArray
	case ast.CastToObject:
		return opcodes.CastObject
	}
	return opcodes.CastString
}

// compileExpr lowers one expression node, leaving exactly one value on
// the operand stack.
func (g *Generator) compileExpr(e ast.Expr) {
	line := e.Pos().Line
	switch n := e.(type) {
	case *ast.Literal:
		g.compileLiteral(n)

	case *ast.Variable:
		if n.Name == "this" {
			g.emit(opcodes.OpLoadThis, 0, nil, line)
		} else {
			g.emit(opcodes.OpLoad, g.resolveVar(n.Name), nil, line)
		}

	case *ast.VarVarExpr:
		// A variable variable always resolves against the global symbol
		// table rather than the lexically enclosing scope: there is no
		// runtime name->slot map for ordinary locals to look up against.
		g.compileExpr(n.NameExpr)
		g.emit(opcodes.OpLoadGlobal, 1, nil, line)

	case *ast.Binary:
		g.compileBinary(n)

	case *ast.Unary:
		g.compileExpr(n.Operand)
		switch n.Op {
		case "!":
			g.emit(opcodes.OpNot, 0, nil, line)
		case "~":
			g.emit(opcodes.OpBitNot, 0, nil, line)
		case "-":
			g.emit(opcodes.OpMinus, 0, nil, line)
		case "+":
			g.emit(opcodes.OpPlus, 0, nil, line)
		}

	case *ast.IncDec:
		g.compileIncDec(n)

	case *ast.Ternary:
		g.compileTernary(n)

	case *ast.Assign:
		g.compileAssign(n)

	case *ast.CallExpr:
		g.compileCall(n)

	case *ast.NewExpr:
		g.compileNew(n)

	case *ast.CloneExpr:
		g.compileExpr(n.Operand)
		g.emit(opcodes.OpClone, 0, nil, line)

	case *ast.Subscript:
		g.compileExpr(n.Array)
		if n.Index == nil {
			g.emit(opcodes.OpLoadIdx, 1, nil, line) // P1=1: append-mode read is invalid but tolerated as null
		} else {
			g.compileExpr(n.Index)
			g.emit(opcodes.OpLoadIdx, 0, nil, line)
		}

	case *ast.MemberAccess:
		g.compileMemberLoad(n)

	case *ast.ClassNameRef:
		// Reached only when a bare word shows up in value position (a
		// constant reference: FOO, PHP_EOL, M_PI); class-name position
		// uses (new/instanceof/static member access) read ClassNameRef
		// directly without going through compileExpr.
		g.emit(opcodes.OpFetchConst, 0, n.Name, line)

	case *ast.InstanceofExpr:
		g.compileExpr(n.Operand)
		if ref, ok := n.ClassName.(*ast.ClassNameRef); ok {
			g.emit(opcodes.OpInstanceof, 0, ref.Name, line)
		} else {
			g.compileExpr(n.ClassName)
			g.emit(opcodes.OpInstanceof, 1, nil, line)
		}

	case *ast.ArrayLiteral:
		g.compileArrayLiteral(n)

	case *ast.ListExpr:
		// A bare list() expression outside of assignment context has no
		// useful value; only valid as an assignment target, handled in
		// compileAssign. Emit null defensively.
		g.emit(opcodes.OpLoadConst, constNull, nil, line)

	case *ast.ClosureExpr:
		g.compileClosure(n)

	case *ast.Comma:
		g.compileExpr(n.Left)
		g.emit(opcodes.OpPop, 0, nil, line)
		g.compileExpr(n.Right)

	case *ast.Cast:
		g.compileExpr(n.Operand)
		g.emit(opcodes.OpCast, int(castKind(n.Kind)), nil, line)

	case *ast.ErrorSuppress:
		g.emit(opcodes.OpErrSuppressBegin, 0, nil, line)
		g.compileExpr(n.Operand)
		g.emit(opcodes.OpErrSuppressEnd, 0, nil, line)

	case *ast.PrintExpr:
		g.compileExpr(n.Operand)
		g.emit(opcodes.OpConsume, 0, nil, line)
		g.emit(opcodes.OpLoadConst, constTrue, nil, line)

	case *ast.ExitExpr:
		if n.Value != nil {
			g.compileExpr(n.Value)
			g.emit(opcodes.OpHalt, 1, nil, line)
		} else {
			g.emit(opcodes.OpHalt, 0, nil, line)
		}

	case *ast.IssetExpr:
		g.compileIssetTarget(n.Vars[0], line)
		for _, v := range n.Vars[1:] {
			jzIdx := g.emit(opcodes.OpJz, 0, nil, line)
			g.compileIssetTarget(v, line)
			jmpIdx := g.emit(opcodes.OpJmp, 0, nil, line)
			g.patch(jzIdx, g.ip())
			g.emit(opcodes.OpLoadConst, constFalse, nil, line)
			g.patch(jmpIdx, g.ip())
		}

	case *ast.EmptyExpr:
		g.compileIssetTarget(n.Operand, line)
		jzIdx := g.emit(opcodes.OpJz, 0, nil, line)
		g.compileExpr(n.Operand)
		g.emit(opcodes.OpNot, 0, nil, line)
		jmpIdx := g.emit(opcodes.OpJmp, 0, nil, line)
		g.patch(jzIdx, g.ip())
		g.emit(opcodes.OpLoadConst, constTrue, nil, line)
		g.patch(jmpIdx, g.ip())

	default:
		g.errorf(e.Pos(), "internal: unhandled expression node %T", e)
		g.emit(opcodes.OpLoadConst, constNull, nil, line)
	}
}

func (g *Generator) compileLiteral(n *ast.Literal) {
	line := n.Position.Line
	switch n.Kind {
	case ast.LitNull:
		g.emit(opcodes.OpLoadConst, constNull, nil, line)
	case ast.LitBool:
		if n.BoolVal {
			g.emit(opcodes.OpLoadConst, constTrue, nil, line)
		} else {
			g.emit(opcodes.OpLoadConst, constFalse, nil, line)
		}
	case ast.LitInt:
		g.emit(opcodes.OpLoadConst, g.constIndex(values.Int(n.IntVal)), nil, line)
	case ast.LitFloat:
		g.emit(opcodes.OpLoadConst, g.constIndex(values.Float(n.FloatVal)), nil, line)
	case ast.LitString:
		g.emit(opcodes.OpLoadConst, g.internString(n.StrVal), nil, line)
	case ast.LitInterpString:
		g.compileInterpString(n)
	}
}

func (g *Generator) compileInterpString(n *ast.Literal) {
	line := n.Position.Line
	if len(n.Segments) == 0 {
		g.emit(opcodes.OpLoadConst, g.internString(""), nil, line)
		return
	}
	first := true
	for _, seg := range n.Segments {
		if seg.Expr != nil {
			g.compileExpr(seg.Expr)
			g.emit(opcodes.OpCast, int(opcodes.CastString), nil, line)
		} else {
			g.emit(opcodes.OpLoadConst, g.internString(seg.Text), nil, line)
		}
		if !first {
			g.emit(opcodes.OpConcat, 0, nil, line)
		}
		first = false
	}
}

func (g *Generator) compileBinary(n *ast.Binary) {
	line := n.Position.Line
	switch n.Op {
	case "&&", "and":
		g.compileExpr(n.Left)
		jzIdx := g.emit(opcodes.OpJz, 0, nil, line)
		g.compileExpr(n.Right)
		g.emit(opcodes.OpToBool, 0, nil, line)
		jmpIdx := g.emit(opcodes.OpJmp, 0, nil, line)
		g.patch(jzIdx, g.ip())
		g.emit(opcodes.OpLoadConst, constFalse, nil, line)
		g.patch(jmpIdx, g.ip())
		return
	case "||", "or":
		g.compileExpr(n.Left)
		jnzIdx := g.emit(opcodes.OpJnz, 0, nil, line)
		g.compileExpr(n.Right)
		g.emit(opcodes.OpToBool, 0, nil, line)
		jmpIdx := g.emit(opcodes.OpJmp, 0, nil, line)
		g.patch(jnzIdx, g.ip())
		g.emit(opcodes.OpLoadConst, constTrue, nil, line)
		g.patch(jmpIdx, g.ip())
		return
	case "xor":
		g.compileExpr(n.Left)
		g.compileExpr(n.Right)
		g.emit(opcodes.OpLogicalXor, 0, nil, line)
		return
	case "??":
		g.compileExpr(n.Left)
		g.emit(opcodes.OpDup, 0, nil, line)
		g.emit(opcodes.OpLoadConst, constNull, nil, line)
		// strict comparison: 0/""/false are not null and must survive ??
		g.emit(opcodes.OpNotIdentical, 0, nil, line)
		jnzIdx := g.emit(opcodes.OpJnz, 0, nil, line) // truthy (not-null): keep Left, skip Right
		g.emit(opcodes.OpPop, 0, nil, line)
		g.compileExpr(n.Right)
		g.patch(jnzIdx, g.ip())
		return
	}
	g.compileExpr(n.Left)
	g.compileExpr(n.Right)
	op, ok := binaryOp[n.Op]
	if !ok {
		g.errorf(n.Position, "internal: unknown binary operator %q", n.Op)
		op = opcodes.OpAdd
	}
	g.emit(op, 0, nil, line)
}

func (g *Generator) compileIncDec(n *ast.IncDec) {
	line := n.Position.Line
	op := opcodes.OpPreIncr
	if n.Op == "--" {
		op = opcodes.OpPreDecr
	}
	if !n.Prefix {
		if op == opcodes.OpPreIncr {
			op = opcodes.OpPostIncr
		} else {
			op = opcodes.OpPostDecr
		}
	}
	switch target := n.Operand.(type) {
	case *ast.Variable:
		g.emit(op, g.resolveVar(target.Name), nil, line)
	case *ast.Subscript:
		g.compileLvalueBase(target.Array, line)
		g.compileExpr(target.Index)
		g.emit(op, -1, nil, line) // P1 == -1: operand is array[index] on stack, not a local slot
	default:
		g.compileExpr(n.Operand)
	}
}

// compileTernary implements `cond ? then : else` and the `cond ?: else`
// shorthand (Then == nil), which reuses cond's own truthy value instead
// of recomputing it.
func (g *Generator) compileTernary(n *ast.Ternary) {
	line := n.Position.Line
	g.compileExpr(n.Cond)
	if n.Then == nil {
		jnzIdx := g.emit(opcodes.OpJnzKeep, 0, nil, line)
		g.compileExpr(n.Else)
		g.patch(jnzIdx, g.ip())
		return
	}
	jzIdx := g.emit(opcodes.OpJz, 0, nil, line)
	g.compileExpr(n.Then)
	jmpIdx := g.emit(opcodes.OpJmp, 0, nil, line)
	g.patch(jzIdx, g.ip())
	g.compileExpr(n.Else)
	g.patch(jmpIdx, g.ip())
}

func (g *Generator) compileMemberLoad(n *ast.MemberAccess) {
	line := n.Position.Line
	g.compileClassRefOperand(n.Object, line)
	p1 := 0
	if n.Static {
		p1 = 1
		// `C::NAME` (a bareword after ::) is a class-constant fetch;
		// `C::$name` parses as a Variable member and stays a static-
		// property fetch below.
		if lit, ok := n.Member.(*ast.Literal); ok && lit.Kind == ast.LitString {
			g.emit(opcodes.OpFetchClassConst, 0, lit.StrVal, line)
			return
		}
	}
	if n.Nullsafe {
		p1 |= 2
	}
	if name, ok := memberNameLit(n.Member, n.Static); ok {
		g.emit(opcodes.OpFetchMember, p1, name, line)
		return
	}
	g.compileExpr(n.Member)
	g.emit(opcodes.OpFetchMember, p1|4, nil, line) // bit 2 (4): member name is on the stack
}

// compileClassRefOperand pushes the "object" operand of a ->/:: access.
// A statically named class reference (self, parent, static, or a literal
// class name) never denotes a value to evaluate, so it is pushed as the
// bare name string directly rather than through compileExpr, which would
// otherwise treat it as an undefined-constant lookup.
func (g *Generator) compileClassRefOperand(e ast.Expr, line int) {
	if ref, ok := e.(*ast.ClassNameRef); ok {
		g.emit(opcodes.OpLoadConst, g.internString(ref.Name), nil, line)
		return
	}
	g.compileExpr(e)
}

// memberNameLit reports whether member is a compile-time-known member
// name: a plain identifier/string literal (->prop, ::CONST, ::class) or,
// for a static access, a `::$prop` reference, which the parser represents
// as a Variable node holding the property name rather than something to
// evaluate.
func memberNameLit(member ast.Expr, static bool) (string, bool) {
	if lit, ok := member.(*ast.Literal); ok && lit.Kind == ast.LitString {
		return lit.StrVal, true
	}
	if static {
		if v, ok := member.(*ast.Variable); ok {
			return v.Name, true
		}
	}
	return "", false
}

// compileArrayLiteral pushes each element's stack slots in order: a
// spread element pushes just its value, an ordinary element
// pushes key-then-value, and P3 carries the per-element spread flags so
// OpLoadMap can tell the two shapes apart while unwinding the stack
// (LIFO, so in reverse compile order) without an ambiguous on-stack
// sentinel.
func (g *Generator) compileArrayLiteral(n *ast.ArrayLiteral) {
	line := n.Position.Line
	spread := make([]bool, 0, len(n.Elements))
	for _, el := range n.Elements {
		if el.Spread {
			g.compileExpr(el.Value)
			spread = append(spread, true)
			continue
		}
		if el.Key != nil {
			g.compileExpr(el.Key)
		} else {
			g.emit(opcodes.OpLoadConst, constNull, nil, line)
		}
		g.compileExpr(el.Value)
		spread = append(spread, false)
	}
	g.emit(opcodes.OpLoadMap, len(spread), spread, line)
}

// compileClosure materializes a closure value. The body is compiled as
// its own registry.Function (declared under a synthesized name) and
// referenced by a ClosureDesc; `use`-captured variables are copied (or
// reference-bound) from the enclosing scope at LOAD_CLOSURE time.
func (g *Generator) compileClosure(n *ast.ClosureExpr) {
	line := n.Position.Line
	name := g.synthClosureName()
	body := n.Body
	if n.ArrowBodyExpr != nil {
		// `fn(...) => expr` is exactly `function(...){ return expr; }`
		// plus by-value auto-capture, so the body is synthesized rather
		// than special-cased through a second compile path.
		body = []ast.Stmt{&ast.ReturnStmt{Base: ast.At(n.ArrowBodyExpr.Pos()), Value: n.ArrowBodyExpr}}
	}
	fn := g.compileFunctionBody(name, n.Params, body, n.ByRefReturn, n.ReturnType, false, nil)
	g.reg.Declare(fn)

	desc := &opcodes.ClosureDesc{FunctionName: name}
	if n.ArrowBodyExpr != nil {
		// Arrow functions auto-capture every variable visible in the
		// enclosing scope by value, rather than an explicit use-list.
		for vname, slot := range g.cur.vars {
			if strings.HasPrefix(vname, "\x00") {
				continue
			}
			desc.Uses = append(desc.Uses, opcodes.ClosureUse{Name: vname, Slot: slot})
		}
	} else {
		for _, u := range n.Uses {
			desc.Uses = append(desc.Uses, opcodes.ClosureUse{Name: u.Name, Slot: g.resolveVar(u.Name), ByRef: u.ByRef})
		}
	}
	g.emit(opcodes.OpLoadClosure, 0, desc, line)
}

var closureCounter int

func (g *Generator) synthClosureName() string {
	closureCounter++
	return "{closure}#" /* unique per compile */ + itoa(closureCounter)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}

