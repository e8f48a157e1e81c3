// Package fairness provides an opt-in counterfactual fairness probe. It is
// never invoked by the router: spec.md places fairness/counterfactual
// checks outside the core decision path, and this stays a standalone
// utility callers may reach for explicitly.
package fairness

import (
	"context"

	"github.com/policyforge/decisionengine/internal/domain/policy"
)

// DecideFunc is the shape of router.Router.Decide, narrowed to the
// signature this probe needs so it does not import the router package.
type DecideFunc func(ctx context.Context, facts policy.Facts, mode policy.Mode) policy.DecisionRecord

// Probe re-runs decide with one fact flipped and reports whether the
// outcome changed. flipKey/flipValue are applied to a shallow copy of
// facts; the original map is never mutated.
func Probe(ctx context.Context, decide DecideFunc, facts policy.Facts, flipKey string, flipValue any) (unchanged bool, base, counterfactual policy.DecisionRecord) {
	base = decide(ctx, facts, policy.ModeHard)

	alt := make(policy.Facts, len(facts)+1)
	for k, v := range facts {
		alt[k] = v
	}
	alt[flipKey] = flipValue

	counterfactual = decide(ctx, alt, policy.ModeHard)
	return base.Decision == counterfactual.Decision, base, counterfactual
}
