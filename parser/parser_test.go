package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesper-lang/vesper/ast"
	"github.com/vesper-lang/vesper/errors"
	"github.com/vesper-lang/vesper/lexer"
)

func parseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	l := lexer.New(src, 1)
	toks, lexErrs := l.Tokenize()
	require.Empty(t, lexErrs)
	bag := errors.NewBag(nil)
	p := New("test", toks, bag)
	expr := p.ParseExpr()
	require.False(t, bag.HasErrors(), "parse errors: %v", bag.Diagnostics)
	return expr
}

func parseStmts(t *testing.T, src string) []ast.Stmt {
	t.Helper()
	l := lexer.New(src, 1)
	toks, lexErrs := l.Tokenize()
	require.Empty(t, lexErrs)
	bag := errors.NewBag(nil)
	p := New("test", toks, bag)
	stmts := p.ParseProgram()
	require.False(t, bag.HasErrors(), "parse errors: %v", bag.Diagnostics)
	return stmts
}

// 2 + 3 * 4 must bind as 2 + (3 * 4), not (2 + 3) * 4.
func TestPrecedenceMulBindsTighterThanAdd(t *testing.T) {
	expr := parseExpr(t, "2 + 3 * 4;")
	add, ok := expr.(*ast.Binary)
	require.True(t, ok, "%T", expr)
	assert.Equal(t, "+", add.Op)

	lhs, ok := add.Left.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(2), lhs.IntVal)

	mul, ok := add.Right.(*ast.Binary)
	require.True(t, ok, "%T", add.Right)
	assert.Equal(t, "*", mul.Op)
}

// Assignment is right-associative: $a = $b = 1 assigns to $b first.
func TestAssignmentIsRightAssociative(t *testing.T) {
	expr := parseExpr(t, "$a = $b = 1;")
	outer, ok := expr.(*ast.Assign)
	require.True(t, ok, "%T", expr)
	target, ok := outer.Target.(*ast.Variable)
	require.True(t, ok)
	assert.Equal(t, "a", target.Name)

	inner, ok := outer.Value.(*ast.Assign)
	require.True(t, ok, "%T", outer.Value)
	innerTarget, ok := inner.Target.(*ast.Variable)
	require.True(t, ok)
	assert.Equal(t, "b", innerTarget.Name)
}

// The ternary stores its condition separately from its then/else arms.
func TestTernaryStructure(t *testing.T) {
	expr := parseExpr(t, "$a ? 1 : 2;")
	tern, ok := expr.(*ast.Ternary)
	require.True(t, ok, "%T", expr)
	cond, ok := tern.Cond.(*ast.Variable)
	require.True(t, ok)
	assert.Equal(t, "a", cond.Name)

	then, ok := tern.Then.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(1), then.IntVal)

	els, ok := tern.Else.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(2), els.IntVal)
}

// Postfix subscript/call chains attach as argument lists / a subscript
// wrapper, not as extra binary-tree nesting.
func TestPostfixCallAndSubscriptChain(t *testing.T) {
	expr := parseExpr(t, "$a[0]->f(1, 2);")
	call, ok := expr.(*ast.CallExpr)
	require.True(t, ok, "%T", expr)
	require.Len(t, call.Args, 2)

	member, ok := call.Callee.(*ast.MemberAccess)
	require.True(t, ok, "%T", call.Callee)
	name, ok := member.Member.(*ast.Literal)
	require.True(t, ok, "%T", member.Member)
	assert.Equal(t, "f", name.StrVal)

	sub, ok := member.Object.(*ast.Subscript)
	require.True(t, ok, "%T", member.Object)
	idx, ok := sub.Index.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(0), idx.IntVal)
}

// Reference-operator `&` is only legal where a tree validator permits
// it; an ordinary expression position rejects it.
func TestReferenceOperatorRejectedOutsideLvaluePosition(t *testing.T) {
	l := lexer.New("1 + &$a;", 1)
	toks, lexErrs := l.Tokenize()
	require.Empty(t, lexErrs)
	bag := errors.NewBag(nil)
	p := New("test", toks, bag)
	p.ParseExpr()
	assert.True(t, bag.HasErrors())
}

func TestForeachKeyValueBinding(t *testing.T) {
	stmts := parseStmts(t, `foreach ($a as $k => $v) { echo $v; }`)
	require.Len(t, stmts, 1)
	fe, ok := stmts[0].(*ast.ForeachStmt)
	require.True(t, ok, "%T", stmts[0])
	require.NotNil(t, fe.KeyVar)
	keyVar, ok := fe.KeyVar.(*ast.Variable)
	require.True(t, ok, "%T", fe.KeyVar)
	assert.Equal(t, "k", keyVar.Name)
	valVar, ok := fe.ValueVar.(*ast.Variable)
	require.True(t, ok, "%T", fe.ValueVar)
	assert.Equal(t, "v", valVar.Name)
}

func TestBreakWithNumericLevel(t *testing.T) {
	stmts := parseStmts(t, `while (true) { break 2; }`)
	require.Len(t, stmts, 1)
	ws, ok := stmts[0].(*ast.WhileStmt)
	require.True(t, ok, "%T", stmts[0])
	require.Len(t, ws.Body, 1)
	brk, ok := ws.Body[0].(*ast.BreakStmt)
	require.True(t, ok, "%T", ws.Body[0])
	assert.Equal(t, 2, brk.Level)
}
