package authdemo

import (
	"strings"

	"github.com/policyforge/decisionengine/internal/domain/policy"
	outbound "github.com/policyforge/decisionengine/internal/port/outbound"
)

// Repair is a deterministic mock repair adapter for the auth_v1 sample
// policy: declines outright if the CNP risk ceiling was the violated
// invariant, otherwise tries approve_with_otp, otherwise declines. When
// decline is not in allowedActions either, it returns the previous
// proposal's action unchanged.
type Repair struct{}

// Repair implements outbound.Repair.
func (Repair) Repair(previous outbound.Proposal, unsatCore []string, facts policy.Facts, allowedActions []string) (outbound.Proposal, error) {
	allowed := allowedSet(allowedActions)
	risk, hasRisk := asFloat(facts["risk"])
	amount, hasAmount := asFloat(facts["amount"])
	limit, hasLimit := asFloat(facts["limit"])

	core := strings.Join(unsatCore, " ")
	if strings.Contains(core, "cnp_tightened") || strings.Contains(core, "risk <= 0.55") {
		if allowed("decline") {
			return outbound.Proposal{
				ProposedAction: "decline",
				Justification:  "CNP with risk above policy threshold.",
			}, nil
		}
	}

	if hasRisk && hasAmount && hasLimit && risk <= 0.55 && amount <= limit && allowed("approve_with_otp") {
		return outbound.Proposal{
			ProposedAction: "approve_with_otp",
			Justification:  "Within limit; risk acceptable for step-up.",
		}, nil
	}

	if allowed("decline") {
		return outbound.Proposal{
			ProposedAction: "decline",
			Justification:  "Constraints unsatisfied after repair.",
		}, nil
	}
	return outbound.Proposal{
		ProposedAction: previous.ProposedAction,
		Justification:  "No allowed action fits repair.",
	}, nil
}

func allowedSet(actions []string) func(string) bool {
	if len(actions) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return func(a string) bool {
		_, ok := set[a]
		return ok
	}
}
