// Package ast defines the expression and statement tree produced by the
// parser. Every node is a concrete, tagged-variant struct rather than an
// opaque node carrying a per-instance "compile" callback: the compiler
// lowers a tree by type-switching over these concrete types.
package ast

import "github.com/vesper-lang/vesper/lexer"

// Node is any tree element with a source position.
type Node interface {
	Pos() lexer.Position
}

// Expr is any expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is any statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Base carries the source position shared by every node. Embed it (as
// field name `Base`) in every concrete node struct.
type Base struct {
	Position lexer.Position
}

func (b Base) Pos() lexer.Position { return b.Position }

// At constructs a Base from a position; used at every node construction
// site in the parser.
func At(p lexer.Position) Base { return Base{Position: p} }
