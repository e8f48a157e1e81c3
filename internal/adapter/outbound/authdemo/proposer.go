package authdemo

import (
	"github.com/policyforge/decisionengine/internal/domain/policy"
	outbound "github.com/policyforge/decisionengine/internal/port/outbound"
)

// Proposer is a deterministic mock proposer for the auth_v1 sample policy.
// Policy intuition: approve_no_otp if risk<=0.35 and amount<=avail;
// approve_with_otp if risk<=0.55 and amount<=limit; otherwise decline.
type Proposer struct{}

// Propose implements outbound.Proposer.
func (Proposer) Propose(facts policy.Facts) (outbound.Proposal, error) {
	risk, hasRisk := asFloat(firstOf(facts, "risk", "risk.score"))
	amount, hasAmount := asFloat(facts["amount"])
	avail, hasAvail := asFloat(firstOf(facts, "avail", "account.available"))
	limit, hasLimit := asFloat(firstOf(facts, "limit", "account.credit_limit"))

	if hasRisk && hasAmount && hasAvail && risk <= 0.35 && amount <= avail {
		return outbound.Proposal{
			ProposedAction: "approve_no_otp",
			Justification:  "Low risk and within available balance.",
		}, nil
	}
	if hasRisk && hasAmount && hasLimit && risk <= 0.55 && amount <= limit {
		return outbound.Proposal{
			ProposedAction: "approve_with_otp",
			Justification:  "Borderline risk; within limit; step-up auth.",
		}, nil
	}
	return outbound.Proposal{
		ProposedAction: "decline",
		Justification:  "High risk or exceeds limits.",
	}, nil
}

func firstOf(facts policy.Facts, keys ...string) any {
	for _, k := range keys {
		if v, ok := facts[k]; ok {
			return v
		}
	}
	return nil
}

// asFloat coerces the primitive values Facts may hold (bool excluded) into
// a float64, reporting whether v was a usable number.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
