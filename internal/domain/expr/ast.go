// Package expr holds the policy DSL's syntax tree (as produced by the
// hand-written parser) and its typed, resolved form (as consumed by the
// solver). Keeping the two separate lets the parser stay a dumb grammar
// recognizer while all identifier resolution, arity checking, and type
// inference happens in one lowering pass (see Lower).
package expr

import "math/big"

// Expr is a raw syntax node: a literal, an identifier, an arithmetic/
// comparison operator, or a named combinator call. Identifiers are not yet
// resolved against any environment.
type Expr interface {
	exprNode()
	// Pos is the byte offset where this node started, for error messages.
	Pos() int
}

type base struct{ pos int }

func (b base) Pos() int { return b.pos }

// IntLit is an integer literal.
type IntLit struct {
	base
	Value int64
}

// RealLit is a rational literal, held exactly, from a decimal source literal.
type RealLit struct {
	base
	Value *big.Rat
}

// BoolLit is `True` or `False`.
type BoolLit struct {
	base
	Value bool
}

// Ident is a bare identifier, resolved during lowering against the
// variable table, the action-flag table, or the constants table.
type Ident struct {
	base
	Name string
}

// Binary is an infix arithmetic or comparison operator: one of
// + - * / == != < <= > >=.
type Binary struct {
	base
	Op   string
	X, Y Expr
}

// Unary is a prefix arithmetic negation: -x.
type Unary struct {
	base
	Op string
	X  Expr
}

// Call is a named combinator invocation: And, Or, Not, Implies, Sum, If.
// And/Or accept either Call{Func:"And", Args: a,b,c} (flat) or
// Call{Func:"And", Args: [ListLit]} (a single list argument). The parser
// keeps whichever form was written; lowering unwraps the list form.
type Call struct {
	base
	Func string
	Args []Expr
}

// ListLit is a bracketed list literal, `[a, b, c]`; it only appears as an
// argument to And/Or/Sum and is never itself a standalone expression value.
type ListLit struct {
	base
	Items []Expr
}

func (IntLit) exprNode()  {}
func (RealLit) exprNode() {}
func (BoolLit) exprNode() {}
func (Ident) exprNode()   {}
func (Binary) exprNode()  {}
func (Unary) exprNode()   {}
func (Call) exprNode()    {}
func (ListLit) exprNode() {}

// NewIntLit, NewRealLit, ... construct nodes carrying their source position.
func NewIntLit(pos int, v int64) *IntLit            { return &IntLit{base{pos}, v} }
func NewRealLit(pos int, v *big.Rat) *RealLit        { return &RealLit{base{pos}, v} }
func NewBoolLit(pos int, v bool) *BoolLit            { return &BoolLit{base{pos}, v} }
func NewIdent(pos int, name string) *Ident           { return &Ident{base{pos}, name} }
func NewBinary(pos int, op string, x, y Expr) *Binary { return &Binary{base{pos}, op, x, y} }
func NewUnary(pos int, op string, x Expr) *Unary      { return &Unary{base{pos}, op, x} }
func NewCall(pos int, fn string, args []Expr) *Call   { return &Call{base{pos}, fn, args} }
func NewListLit(pos int, items []Expr) *ListLit       { return &ListLit{base{pos}, items} }
