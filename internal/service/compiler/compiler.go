// Package compiler implements the Policy Compiler (C3): it binds a
// validated policy.Document into a reusable Factory that, given per-request
// facts and an optional forced action, produces a solver.Problem ready for
// the verifier to check.
package compiler

import (
	"fmt"
	"math/big"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/policyforge/decisionengine/internal/adapter/outbound/dsl"
	"github.com/policyforge/decisionengine/internal/adapter/outbound/solver"
	"github.com/policyforge/decisionengine/internal/domain/expr"
	"github.com/policyforge/decisionengine/internal/domain/policy"
)

// Factory is the immutable, concurrency-safe compiled form of a policy
// document (spec.md §3's "Compiled Policy"). Build it once per document with
// Compile and reuse it across requests.
type Factory struct {
	doc               *policy.Document
	env               expr.Environment
	kinds             map[string]policy.Kind // declared variables only, excludes action flags
	vars              []string                // declaration order: Reals, Ints, Bools
	invariantNames    []string                // declaration order
	invariantFormulas map[string]expr.Formula
	actionOrder       []string
	guards            map[string]expr.Formula
	contentHash       uint64
}

// Meta carries the declaration-order bookkeeping the verifier needs to turn
// a raw solver.Model back into spec.md §3/§4.3's meta accessors.
type Meta struct {
	Vars        []string
	Invariants  []string
	actionOrder []string
	kinds       map[string]policy.Kind
}

// ChosenAction returns the first action flag (in declaration order) that is
// true in model, matching the "first in declaration order" tie-break spec.md
// §9 calls out as an open question resolved in favor of determinism.
func (m *Meta) ChosenAction(model *solver.Model) (string, bool) {
	if model == nil {
		return "", false
	}
	for _, name := range m.actionOrder {
		if model.Bool[name] {
			return name, true
		}
	}
	return "", false
}

// ValOf coerces the model's value for a declared variable to a primitive Go
// value per spec.md §4.4's numeric-coercion rule (booleans as bool, ints as
// int64, reals truncated to 12 decimal digits).
func (m *Meta) ValOf(model *solver.Model, name string) (any, bool) {
	kind, ok := m.kinds[name]
	if !ok {
		return nil, false
	}
	if model == nil {
		return zeroValue(kind), true
	}
	switch kind {
	case policy.KindBool:
		return model.Bool[name], true
	case policy.KindInt:
		v, ok := model.Numeric[name]
		if !ok || !v.IsInt() {
			return int64(0), true
		}
		return v.Num().Int64(), true
	case policy.KindReal:
		v, ok := model.Numeric[name]
		if !ok {
			v = new(big.Rat)
		}
		return truncateTo12Digits(v), true
	default:
		return nil, false
	}
}

func zeroValue(kind policy.Kind) any {
	switch kind {
	case policy.KindBool:
		return false
	case policy.KindInt:
		return int64(0)
	default:
		return 0.0
	}
}

// truncateTo12Digits cuts a rational off after 12 decimal digits (toward
// zero) and converts the result to a float64, matching spec.md §4.4's
// "rendered to twelve digits" rule; this is a deliberately lossy coercion
// for the reportable model only.
func truncateTo12Digits(v *big.Rat) float64 {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)
	num := new(big.Int).Mul(v.Num(), scale)
	num.Quo(num, v.Denom()) // Quo truncates toward zero
	out, _ := new(big.Rat).SetFrac(num, scale).Float64()
	return out
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Compile validates doc's shape (C1) then parses and lowers every
// invariant assert and action guard (C2) against a single environment (C3
// steps 1-4). It returns a *policy.SpecError for every failure mode, never
// a bare error, so callers can errors.As into it.
func Compile(doc *policy.Document) (*Factory, error) {
	if err := structValidator.Struct(doc); err != nil {
		return nil, policy.NewSpecError("document", err.Error())
	}

	env := expr.Environment{Vars: map[string]policy.Kind{}, Constants: doc.Constants}
	kinds := map[string]policy.Kind{}
	var vars []string

	declare := func(names []string, kind policy.Kind) error {
		for _, name := range names {
			if name == "" {
				return policy.NewSpecError("entities", "variable names must be non-empty")
			}
			if _, dup := env.Vars[name]; dup {
				return policy.NewSpecError(name, "duplicate name across the variable/action namespace")
			}
			env.Vars[name] = kind
			kinds[name] = kind
			vars = append(vars, name)
		}
		return nil
	}
	if err := declare(doc.Entities.Reals, policy.KindReal); err != nil {
		return nil, err
	}
	if err := declare(doc.Entities.Ints, policy.KindInt); err != nil {
		return nil, err
	}
	if err := declare(doc.Entities.Bools, policy.KindBool); err != nil {
		return nil, err
	}

	var actionOrder []string
	for _, a := range doc.Actions {
		if _, dup := env.Vars[a.Name]; dup {
			return nil, policy.NewSpecError(a.Name, "duplicate name across the variable/action namespace")
		}
		env.Vars[a.Name] = policy.KindBool
		actionOrder = append(actionOrder, a.Name)
	}

	invariantFormulas := map[string]expr.Formula{}
	var invariantNames []string
	seenInvariant := map[string]bool{}
	for _, inv := range doc.Invariants {
		if seenInvariant[inv.Name] {
			return nil, policy.NewSpecError(inv.Name, "duplicate invariant name")
		}
		seenInvariant[inv.Name] = true
		f, err := parseAndLower(inv.Assert, env)
		if err != nil {
			return nil, policy.NewSpecError(fmt.Sprintf("invariants[%s].assert", inv.Name), err.Error())
		}
		invariantFormulas[inv.Name] = f
		invariantNames = append(invariantNames, inv.Name)
	}

	guards := map[string]expr.Formula{}
	for _, a := range doc.Actions {
		f, err := parseAndLower(a.Guard, env)
		if err != nil {
			return nil, policy.NewSpecError(fmt.Sprintf("actions[%s].guard", a.Name), err.Error())
		}
		guards[a.Name] = f
	}

	return &Factory{
		doc:               doc,
		env:               env,
		kinds:             kinds,
		vars:              vars,
		invariantNames:    invariantNames,
		invariantFormulas: invariantFormulas,
		actionOrder:       actionOrder,
		guards:            guards,
		contentHash:       contentHash(doc),
	}, nil
}

func parseAndLower(src string, env expr.Environment) (expr.Formula, error) {
	e, err := dsl.Parse(src)
	if err != nil {
		return nil, err
	}
	return dsl.Lower(e, env)
}

// contentHash hashes the normalized YAML encoding of doc with xxhash64, for
// the artifact cache's content-addressed key (SPEC_FULL.md §6 A5).
func contentHash(doc *policy.Document) uint64 {
	b, err := yaml.Marshal(doc)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}

// ContentHash returns the factory's content-address, formatted as the
// engine always does: lowercase hex, fixed width.
func (f *Factory) ContentHash() string { return fmt.Sprintf("%016x", f.contentHash) }

// PolicyID returns the document's declared id (the stamped policy_version).
func (f *Factory) PolicyID() string { return f.doc.ID }

// Build implements spec.md §4.3's per-invocation factory body: fact
// bindings, tracked invariants, action implications, the disjunction/
// one-hot constraint, and an optional forced-action assertion.
func (f *Factory) Build(facts policy.Facts, forcedAction string) (*solver.Problem, *Meta, error) {
	base := make([]expr.Formula, 0, len(facts)+len(f.actionOrder)*2+1)

	for name, val := range facts {
		kind, isVar := f.kinds[name]
		if !isVar {
			continue // unknown fact names are silently ignored (spec.md §4.7)
		}
		binding, err := bindFact(name, kind, val)
		if err != nil {
			return nil, nil, &policy.BindingError{Variable: name, Declared: kind, Err: err}
		}
		base = append(base, binding)
	}

	for _, name := range f.actionOrder {
		base = append(base, expr.ImpliesFormula{A: expr.BoolVarFormula{Name: name}, B: f.guards[name]})
	}

	if len(f.actionOrder) > 0 {
		disj := make([]expr.Formula, len(f.actionOrder))
		for i, name := range f.actionOrder {
			disj[i] = expr.BoolVarFormula{Name: name}
		}
		base = append(base, expr.OrFormula{Args: disj})

		if f.doc.OneHotActions {
			terms := make([]expr.Term, len(f.actionOrder))
			for i, name := range f.actionOrder {
				terms[i] = expr.IfTerm{
					K:    policy.KindInt,
					Cond: expr.BoolVarFormula{Name: name},
					Then: expr.ConstTerm{K: policy.KindInt, Int: 1},
					Else: expr.ConstTerm{K: policy.KindInt, Int: 0},
				}
			}
			base = append(base, expr.CompareFormula{
				Op: "==",
				X:  expr.SumTerm{K: policy.KindInt, Terms: terms},
				Y:  expr.ConstTerm{K: policy.KindInt, Int: 1},
			})
		}
	}

	named := make(map[string]expr.Formula, len(f.invariantFormulas)+1)
	for name, formula := range f.invariantFormulas {
		named[name] = formula
	}
	names := append([]string(nil), f.invariantNames...)

	if forcedAction != "" {
		names = append(names, policy.ForcedActionAssertionName)
		if containsString(f.actionOrder, forcedAction) {
			named[policy.ForcedActionAssertionName] = expr.BoolVarFormula{Name: forcedAction}
		} else {
			named[policy.ForcedActionAssertionName] = expr.BoolConstFormula{Value: false}
		}
	}

	prob := &solver.Problem{Base: base, Names: names, Named: named}
	meta := &Meta{
		Vars:        append([]string(nil), f.vars...),
		Invariants:  append([]string(nil), f.invariantNames...),
		actionOrder: f.actionOrder,
		kinds:       f.kinds,
	}
	return prob, meta, nil
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func bindFact(name string, kind policy.Kind, val any) (expr.Formula, error) {
	if kind == policy.KindBool {
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", val)
		}
		if b {
			return expr.BoolVarFormula{Name: name}, nil
		}
		return expr.NotFormula{X: expr.BoolVarFormula{Name: name}}, nil
	}
	term := expr.Term(expr.VarTerm{K: kind, Name: name})
	lit, err := literalForKind(kind, val)
	if err != nil {
		return nil, err
	}
	return expr.CompareFormula{Op: "==", X: term, Y: lit}, nil
}

func literalForKind(kind policy.Kind, v any) (expr.Term, error) {
	switch kind {
	case policy.KindInt:
		iv, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("expected an integer value, got %T", v)
		}
		return expr.ConstTerm{K: policy.KindInt, Int: iv}, nil
	case policy.KindReal:
		rv, ok := toRat(v)
		if !ok {
			return nil, fmt.Errorf("expected a numeric value, got %T", v)
		}
		return expr.ConstTerm{K: policy.KindReal, Real: rv}, nil
	default:
		return nil, fmt.Errorf("unsupported kind %v", kind)
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
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	case float32:
		if x == float32(int64(x)) {
			return int64(x), true
		}
	}
	return 0, false
}

func toRat(v any) (*big.Rat, bool) {
	switch x := v.(type) {
	case float32:
		return new(big.Rat).SetFloat64(float64(x)), true
	case float64:
		r := new(big.Rat).SetFloat64(x)
		return r, r != nil
	case int:
		return new(big.Rat).SetInt64(int64(x)), true
	case int32:
		return new(big.Rat).SetInt64(int64(x)), true
	case int64:
		return new(big.Rat).SetInt64(x), true
	}
	return nil, false
}
