package solver

import (
	"github.com/policyforge/decisionengine/internal/domain/expr"
)

// Limits bounds the search the theory solver and the unsat-core extractor
// are allowed to perform, so a pathological policy fails closed (reported
// unsat / unsatisfiable) instead of hanging a request.
type Limits struct {
	MaxBBNodes      int // branch-and-bound nodes per theory check
	MaxRounds       int // DPLL(T) conflict rounds before giving up
	MaxCoreResolves int // re-solves the deletion-based unsat-core minimizer may perform
}

// DefaultLimits mirrors the defaults documented for the verifier's solver
// section; policy authors rarely need more than a handful of branch points.
func DefaultLimits() Limits {
	return Limits{MaxBBNodes: 256, MaxRounds: 512, MaxCoreResolves: 64}
}

// Problem is one compiled check: always-active structural constraints
// (fact bindings, action implications, the one-hot/disjunction clause)
// plus a named set of tracked assertions (invariants, and optionally the
// policy.ForcedActionAssertionName assertion) that can be selectively
// included to compute a minimal unsat core.
type Problem struct {
	Base   []expr.Formula
	Names  []string
	Named  map[string]expr.Formula
	Limits Limits
}

// Result is the outcome of one Solve call.
type Result struct {
	Satisfiable bool
	Model       *Model
}

// Solve checks Base together with whichever Named assertions are listed in
// active (nil/omitted names are simply left out, not asserted false).
func (p *Problem) Solve(active []string) *Result {
	formulas := make([]expr.Formula, 0, len(p.Base)+len(active))
	formulas = append(formulas, p.Base...)
	for _, name := range active {
		if f, ok := p.Named[name]; ok {
			formulas = append(formulas, f)
		}
	}
	var top expr.Formula
	switch len(formulas) {
	case 0:
		top = expr.BoolConstFormula{Value: true}
	case 1:
		top = formulas[0]
	default:
		top = expr.AndFormula{Args: formulas}
	}

	lim := p.Limits
	if lim.MaxRounds == 0 {
		lim = DefaultLimits()
	}
	b := buildCNF(top)
	sat, model := solveCNF(b, lim.MaxBBNodes, lim.MaxRounds)
	return &Result{Satisfiable: sat, Model: model}
}

// UnsatCore runs linear deletion-based minimization over p.Names, assuming
// Solve(p.Names) is already known unsatisfiable: repeatedly try dropping
// each named assertion and keep the drop only if the remainder is still
// unsat. The result is a minimal (not necessarily minimum) unsatisfiable
// subset -- the named tracked assertions actually responsible.
//
// Re-solves are bounded by Limits.MaxCoreResolves so a policy with many
// tracked assertions cannot make core extraction unbounded; running out of
// budget simply stops minimizing early and returns the core reduced so far,
// which remains a valid (if not necessarily minimal) unsatisfiable subset.
func (p *Problem) UnsatCore() []string {
	maxResolves := p.Limits.MaxCoreResolves
	if maxResolves == 0 {
		maxResolves = DefaultLimits().MaxCoreResolves
	}

	core := append([]string(nil), p.Names...)
	for i, budget := 0, maxResolves; i < len(core) && budget > 0; {
		trial := append(append([]string(nil), core[:i]...), core[i+1:]...)
		budget--
		if res := p.Solve(trial); !res.Satisfiable {
			core = trial
			continue
		}
		i++
	}
	return core
}
