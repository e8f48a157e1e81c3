// Package outbound declares the small capability interfaces the Decision
// Router consumes (C6): Proposer, Repair, and Explainer. Each is a single
// method so the router is testable with trivial stubs, per spec.md §9's
// "extensibility via adapters" design note. These are contracts only --
// concrete implementations are domain policy, not engine mechanism.
package outbound

import "github.com/policyforge/decisionengine/internal/domain/policy"

// Proposal is the common shape returned by both Proposer and Repair.
type Proposal struct {
	ProposedAction         string
	Justification          string
	RequestedAdditionalData []string
}

// Proposer picks a candidate action for soft mode. It must be pure,
// deterministic, and side-effect-free, and must return one of the policy's
// declared action names.
type Proposer interface {
	Propose(facts policy.Facts) (Proposal, error)
}

// Repair is invoked exactly once per soft-mode request, after the
// proposer's candidate fails verification, with the unsat core that
// explains the failure. It must return an action from allowedActions
// (or any declared action if allowedActions is empty).
type Repair interface {
	Repair(previous Proposal, unsatCore []string, facts policy.Facts, allowedActions []string) (Proposal, error)
}

// Explainer renders a human-readable explanation for a decision. On an
// unsat outcome, the returned string must cite at least one name from
// proof.UnsatCore.
type Explainer interface {
	Explain(action string, facts policy.Facts, proof policy.Proof, justification string) (string, error)
}
