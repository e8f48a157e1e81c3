package authdemo

import (
	"fmt"
	"strings"

	"github.com/policyforge/decisionengine/internal/domain/policy"
)

// Explainer renders a human-readable explanation for the auth_v1 sample
// policy. Unsat outcomes list the unsat core; approve_with_otp uses the
// proposer/repair justification when one is given; every other outcome
// gets a canned template.
type Explainer struct{}

// Explain implements outbound.Explainer.
func (Explainer) Explain(action string, facts policy.Facts, proof policy.Proof, justification string) (string, error) {
	if !proof.Satisfiable {
		quoted := make([]string, len(proof.UnsatCore))
		for i, name := range proof.UnsatCore {
			quoted[i] = "`" + name + "`"
		}
		return fmt.Sprintf("Declined: violated %s.", strings.Join(quoted, "; ")), nil
	}

	switch action {
	case "approve_no_otp":
		return "Approved without OTP: low risk and within available balance.", nil
	case "approve_with_otp":
		if justification != "" {
			return justification, nil
		}
		return fmt.Sprintf("Approved with OTP because risk=%v <= 0.55, amount <= limit, velocity within cap.", facts["risk"]), nil
	default:
		return "Declined.", nil
	}
}
