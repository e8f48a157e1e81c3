package dsl

import (
	"fmt"
	"math/big"

	"github.com/policyforge/decisionengine/internal/domain/expr"
	"github.com/policyforge/decisionengine/internal/domain/policy"
)

// value is the result of lowering one raw expr.Expr node: either a typed
// Term (arithmetic) or a Formula (boolean), never both.
type value struct {
	term    expr.Term
	formula expr.Formula
}

func (v value) isBool() bool { return v.formula != nil }

func termValue(t expr.Term) value       { return value{term: t} }
func boolValue(f expr.Formula) value    { return value{formula: f} }

// Lower resolves every identifier in e against env and type-checks it,
// producing the typed Formula the solver consumes. Both invariant asserts
// and action guards are boolean-valued, so this is the sole entry point
// used by the policy compiler (C3).
func Lower(e expr.Expr, env expr.Environment) (expr.Formula, error) {
	v, err := lower(e, env)
	if err != nil {
		return nil, err
	}
	if !v.isBool() {
		return nil, fmt.Errorf("offset %d: expected a boolean expression", e.Pos())
	}
	return v.formula, nil
}

func lower(e expr.Expr, env expr.Environment) (value, error) {
	switch n := e.(type) {
	case *expr.IntLit:
		return termValue(expr.ConstTerm{K: policy.KindInt, Int: n.Value}), nil
	case *expr.RealLit:
		return termValue(expr.ConstTerm{K: policy.KindReal, Real: n.Value}), nil
	case *expr.BoolLit:
		return boolValue(expr.BoolConstFormula{Value: n.Value}), nil
	case *expr.Ident:
		return lowerIdent(n, env)
	case *expr.Unary:
		return lowerUnary(n, env)
	case *expr.Binary:
		return lowerBinary(n, env)
	case *expr.Call:
		return lowerCall(n, env)
	case *expr.ListLit:
		return value{}, fmt.Errorf("offset %d: a list may only appear as an argument to And, Or, or Sum", n.Pos())
	default:
		return value{}, fmt.Errorf("offset %d: unsupported expression node %T", e.Pos(), e)
	}
}

func lowerIdent(n *expr.Ident, env expr.Environment) (value, error) {
	kind, isVar, constVal, isConst := env.Lookup(n.Name)
	switch {
	case isVar:
		if kind == policy.KindBool {
			return boolValue(expr.BoolVarFormula{Name: n.Name}), nil
		}
		return termValue(expr.VarTerm{K: kind, Name: n.Name}), nil
	case isConst:
		return lowerConst(n, constVal)
	default:
		return value{}, fmt.Errorf("offset %d: unknown identifier %q", n.Pos(), n.Name)
	}
}

func lowerConst(n *expr.Ident, v any) (value, error) {
	switch x := v.(type) {
	case bool:
		return boolValue(expr.BoolConstFormula{Value: x}), nil
	default:
		if iv, ok := toInt64(v); ok {
			return termValue(expr.ConstTerm{K: policy.KindInt, Int: iv}), nil
		}
		if rv, ok := toRat(v); ok {
			return termValue(expr.ConstTerm{K: policy.KindReal, Real: rv}), nil
		}
		return value{}, fmt.Errorf("offset %d: constant %q has an unsupported type %T", n.Pos(), n.Name, v)
	}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	}
	return 0, false
}

func toRat(v any) (*big.Rat, bool) {
	switch x := v.(type) {
	case float32:
		return new(big.Rat).SetFloat64(float64(x)), true
	case float64:
		r := new(big.Rat).SetFloat64(x)
		if r == nil {
			return nil, false
		}
		return r, true
	}
	return nil, false
}

func lowerUnary(n *expr.Unary, env expr.Environment) (value, error) {
	x, err := lower(n.X, env)
	if err != nil {
		return value{}, err
	}
	if x.isBool() {
		return value{}, fmt.Errorf("offset %d: unary '-' requires a numeric operand", n.Pos())
	}
	return termValue(expr.NegTerm{K: x.term.Kind(), X: x.term}), nil
}

func lowerBinary(n *expr.Binary, env expr.Environment) (value, error) {
	x, err := lower(n.X, env)
	if err != nil {
		return value{}, err
	}
	y, err := lower(n.Y, env)
	if err != nil {
		return value{}, err
	}
	switch n.Op {
	case "+", "-", "*", "/":
		return lowerArith(n, x, y)
	case "==", "!=", "<", "<=", ">", ">=":
		return lowerCompare(n, x, y)
	default:
		return value{}, fmt.Errorf("offset %d: unsupported operator %q", n.Pos(), n.Op)
	}
}

func lowerArith(n *expr.Binary, x, y value) (value, error) {
	if x.isBool() || y.isBool() {
		return value{}, fmt.Errorf("offset %d: operator %q requires numeric operands", n.Pos(), n.Op)
	}
	if n.Op == "/" {
		if c, ok := y.term.(expr.ConstTerm); ok {
			if (c.K == policy.KindInt && c.Int == 0) || (c.K == policy.KindReal && c.Real != nil && c.Real.Sign() == 0) {
				return value{}, fmt.Errorf("offset %d: division by literal zero", n.Pos())
			}
		}
	}
	return termValue(expr.ArithTerm{K: promote(x.term.Kind(), y.term.Kind()), Op: n.Op, X: x.term, Y: y.term}), nil
}

func promote(a, b policy.Kind) policy.Kind {
	if a == policy.KindReal || b == policy.KindReal {
		return policy.KindReal
	}
	return policy.KindInt
}

func lowerCompare(n *expr.Binary, x, y value) (value, error) {
	if x.isBool() != y.isBool() {
		return value{}, fmt.Errorf("offset %d: operator %q compares a boolean with a numeric operand", n.Pos(), n.Op)
	}
	if x.isBool() {
		return lowerBoolCompare(n, x.formula, y.formula)
	}
	switch n.Op {
	case "!=":
		lt := expr.CompareFormula{Op: "<", X: x.term, Y: y.term}
		gt := expr.CompareFormula{Op: ">", X: x.term, Y: y.term}
		return boolValue(expr.OrFormula{Args: []expr.Formula{lt, gt}}), nil
	default:
		return boolValue(expr.CompareFormula{Op: n.Op, X: x.term, Y: y.term}), nil
	}
}

func lowerBoolCompare(n *expr.Binary, a, b expr.Formula) (value, error) {
	switch n.Op {
	case "==":
		return boolValue(expr.OrFormula{Args: []expr.Formula{
			expr.AndFormula{Args: []expr.Formula{a, b}},
			expr.AndFormula{Args: []expr.Formula{expr.NotFormula{X: a}, expr.NotFormula{X: b}}},
		}}), nil
	case "!=":
		return boolValue(expr.OrFormula{Args: []expr.Formula{
			expr.AndFormula{Args: []expr.Formula{a, expr.NotFormula{X: b}}},
			expr.AndFormula{Args: []expr.Formula{expr.NotFormula{X: a}, b}},
		}}), nil
	default:
		return value{}, fmt.Errorf("offset %d: operator %q is not defined over booleans", n.Pos(), n.Op)
	}
}

func lowerCall(n *expr.Call, env expr.Environment) (value, error) {
	switch n.Func {
	case "And", "Or":
		return lowerAndOr(n, env)
	case "Not":
		if len(n.Args) != 1 {
			return value{}, fmt.Errorf("offset %d: Not expects exactly 1 argument, got %d", n.Pos(), len(n.Args))
		}
		x, err := lowerBool(n.Args[0], env)
		if err != nil {
			return value{}, err
		}
		return boolValue(expr.NotFormula{X: x}), nil
	case "Implies":
		if len(n.Args) != 2 {
			return value{}, fmt.Errorf("offset %d: Implies expects exactly 2 arguments, got %d", n.Pos(), len(n.Args))
		}
		a, err := lowerBool(n.Args[0], env)
		if err != nil {
			return value{}, err
		}
		b, err := lowerBool(n.Args[1], env)
		if err != nil {
			return value{}, err
		}
		return boolValue(expr.ImpliesFormula{A: a, B: b}), nil
	case "Sum":
		return lowerSum(n, env)
	case "If":
		return lowerIf(n, env)
	default:
		return value{}, fmt.Errorf("offset %d: unknown function %q", n.Pos(), n.Func)
	}
}

func lowerBool(e expr.Expr, env expr.Environment) (expr.Formula, error) {
	v, err := lower(e, env)
	if err != nil {
		return nil, err
	}
	if !v.isBool() {
		return nil, fmt.Errorf("offset %d: expected a boolean expression", e.Pos())
	}
	return v.formula, nil
}

func lowerTerm(e expr.Expr, env expr.Environment) (expr.Term, error) {
	v, err := lower(e, env)
	if err != nil {
		return nil, err
	}
	if v.isBool() {
		return nil, fmt.Errorf("offset %d: expected a numeric expression", e.Pos())
	}
	return v.term, nil
}

// flattenArgs implements the "And(a,b,c) or And([a,b,c])" interchangeable
// forms: a single list-literal argument is unwrapped to its items.
func flattenArgs(args []expr.Expr) []expr.Expr {
	if len(args) == 1 {
		if lst, ok := args[0].(*expr.ListLit); ok {
			return lst.Items
		}
	}
	return args
}

func lowerAndOr(n *expr.Call, env expr.Environment) (value, error) {
	items := flattenArgs(n.Args)
	if len(items) == 0 {
		return value{}, fmt.Errorf("offset %d: %s expects at least 1 argument", n.Pos(), n.Func)
	}
	formulas := make([]expr.Formula, 0, len(items))
	for _, a := range items {
		f, err := lowerBool(a, env)
		if err != nil {
			return value{}, err
		}
		formulas = append(formulas, f)
	}
	if n.Func == "And" {
		return boolValue(expr.AndFormula{Args: formulas}), nil
	}
	return boolValue(expr.OrFormula{Args: formulas}), nil
}

func lowerSum(n *expr.Call, env expr.Environment) (value, error) {
	if len(n.Args) != 1 {
		return value{}, fmt.Errorf("offset %d: Sum expects exactly 1 argument (a list), got %d", n.Pos(), len(n.Args))
	}
	lst, ok := n.Args[0].(*expr.ListLit)
	if !ok {
		return value{}, fmt.Errorf("offset %d: Sum expects a list literal, e.g. Sum([a, b])", n.Pos())
	}
	if len(lst.Items) == 0 {
		return value{}, fmt.Errorf("offset %d: Sum requires a non-empty list", n.Pos())
	}
	terms := make([]expr.Term, 0, len(lst.Items))
	kind := policy.KindInt
	for _, it := range lst.Items {
		t, err := lowerTerm(it, env)
		if err != nil {
			return value{}, err
		}
		terms = append(terms, t)
		kind = promote(kind, t.Kind())
	}
	return termValue(expr.SumTerm{K: kind, Terms: terms}), nil
}

func lowerIf(n *expr.Call, env expr.Environment) (value, error) {
	if len(n.Args) != 3 {
		return value{}, fmt.Errorf("offset %d: If expects exactly 3 arguments, got %d", n.Pos(), len(n.Args))
	}
	cond, err := lowerBool(n.Args[0], env)
	if err != nil {
		return value{}, err
	}
	thenV, err := lower(n.Args[1], env)
	if err != nil {
		return value{}, err
	}
	elseV, err := lower(n.Args[2], env)
	if err != nil {
		return value{}, err
	}
	if thenV.isBool() != elseV.isBool() {
		return value{}, fmt.Errorf("offset %d: If branches must both be boolean or both numeric", n.Pos())
	}
	if thenV.isBool() {
		return boolValue(expr.IfFormula{Cond: cond, Then: thenV.formula, Else: elseV.formula}), nil
	}
	return termValue(expr.IfTerm{
		K:    promote(thenV.term.Kind(), elseV.term.Kind()),
		Cond: cond,
		Then: thenV.term,
		Else: elseV.term,
	}), nil
}
