package expr

import (
	"math/big"

	"github.com/policyforge/decisionengine/internal/domain/policy"
)

// Term is a typed arithmetic expression over Real or Int variables.
type Term interface {
	Kind() policy.Kind
	termNode()
}

// ConstTerm is a literal or a constant substituted during lowering.
type ConstTerm struct {
	K     policy.Kind
	Int   int64
	Real  *big.Rat
}

// VarTerm references a declared Real or Int variable by name.
type VarTerm struct {
	K    policy.Kind
	Name string
}

// ArithTerm is a binary arithmetic operator: + - * /.
type ArithTerm struct {
	K    policy.Kind
	Op   string
	X, Y Term
}

// NegTerm is unary negation.
type NegTerm struct {
	K policy.Kind
	X Term
}

// SumTerm is the n-ary Sum([...]) combinator.
type SumTerm struct {
	K     policy.Kind
	Terms []Term
}

// IfTerm is a numeric-valued If(cond, then, else).
type IfTerm struct {
	K          policy.Kind
	Cond       Formula
	Then, Else Term
}

func (t ConstTerm) Kind() policy.Kind { return t.K }
func (t VarTerm) Kind() policy.Kind   { return t.K }
func (t ArithTerm) Kind() policy.Kind { return t.K }
func (t NegTerm) Kind() policy.Kind   { return t.K }
func (t SumTerm) Kind() policy.Kind   { return t.K }
func (t IfTerm) Kind() policy.Kind    { return t.K }

func (ConstTerm) termNode() {}
func (VarTerm) termNode()   {}
func (ArithTerm) termNode() {}
func (NegTerm) termNode()   {}
func (SumTerm) termNode()   {}
func (IfTerm) termNode()    {}

// Formula is a typed boolean expression: invariants and guards are always
// a Formula after lowering.
type Formula interface {
	formulaNode()
}

// BoolConstFormula is a literal True/False.
type BoolConstFormula struct{ Value bool }

// BoolVarFormula references a declared Bool variable or an action flag.
type BoolVarFormula struct{ Name string }

// NotFormula is Not(x).
type NotFormula struct{ X Formula }

// AndFormula is the n-ary And(...) combinator.
type AndFormula struct{ Args []Formula }

// OrFormula is the n-ary Or(...) combinator.
type OrFormula struct{ Args []Formula }

// ImpliesFormula is Implies(a, b).
type ImpliesFormula struct{ A, B Formula }

// CompareFormula is a comparison atom: == != < <= > >=.
type CompareFormula struct {
	Op   string
	X, Y Term
}

// IfFormula is a boolean-valued If(cond, then, else).
type IfFormula struct{ Cond, Then, Else Formula }

func (BoolConstFormula) formulaNode() {}
func (BoolVarFormula) formulaNode()   {}
func (NotFormula) formulaNode()       {}
func (AndFormula) formulaNode()       {}
func (OrFormula) formulaNode()        {}
func (ImpliesFormula) formulaNode()   {}
func (CompareFormula) formulaNode()   {}
func (IfFormula) formulaNode()        {}

// Environment is the name resolution table an expression is lowered
// against: declared variables, action flags (both carried in Vars, since
// the spec requires them to share one namespace), and constants.
type Environment struct {
	// Vars maps every declared variable name and action-flag name to its
	// kind. A name may not appear as both a variable and an action (the
	// compiler enforces this before lowering).
	Vars map[string]policy.Kind
	// Constants maps a name to a primitive Go value (bool, any integer
	// type, or any floating-point type), folded into literals at lowering.
	Constants map[string]any
}

// Lookup reports how name resolves: as a declared variable/flag kind, as
// a constant value, or as unknown.
func (e Environment) Lookup(name string) (kind policy.Kind, isVar bool, constVal any, isConst bool) {
	if k, ok := e.Vars[name]; ok {
		return k, true, nil, false
	}
	if v, ok := e.Constants[name]; ok {
		return 0, false, v, true
	}
	return 0, false, nil, false
}
