package authdemo

import (
	"strings"
	"testing"

	"github.com/policyforge/decisionengine/internal/domain/policy"
	outbound "github.com/policyforge/decisionengine/internal/port/outbound"
)

func TestFlatten_TopLevelFieldsPassThrough(t *testing.T) {
	out := Flatten(map[string]any{"amount": 100.0, "risk": 0.2})
	if out["amount"] != 100.0 || out["risk"] != 0.2 {
		t.Errorf("Flatten = %+v, want top-level fields unchanged", out)
	}
}

func TestFlatten_NestedAccountAndRisk(t *testing.T) {
	nested := map[string]any{
		"amount": 50.0,
		"account": map[string]any{
			"available":    200.0,
			"credit_limit": 500.0,
		},
		"risk": map[string]any{
			"score":       0.4,
			"velocity_1h": 3.0,
		},
		"context": map[string]any{
			"mcc":             5999,
			"is_card_present": true,
		},
	}
	out := Flatten(nested)
	if out["avail"] != 200.0 {
		t.Errorf("avail = %v, want 200.0", out["avail"])
	}
	if out["limit"] != 500.0 {
		t.Errorf("limit = %v, want 500.0", out["limit"])
	}
	if out["risk"] != 0.4 {
		t.Errorf("risk = %v, want 0.4", out["risk"])
	}
	if out["vel1h"] != 3.0 {
		t.Errorf("vel1h = %v, want 3.0", out["vel1h"])
	}
	if out["mcc"] != 5999 {
		t.Errorf("mcc = %v, want 5999", out["mcc"])
	}
	// is_card_present=true inverts to cnp=false.
	if cnp, ok := out["cnp"].(bool); !ok || cnp != false {
		t.Errorf("cnp = %v, want false", out["cnp"])
	}
}

func TestFlatten_TopLevelTakesPrecedenceOverNested(t *testing.T) {
	nested := map[string]any{
		"avail":   999.0,
		"account": map[string]any{"available": 1.0},
	}
	out := Flatten(nested)
	if out["avail"] != 999.0 {
		t.Errorf("avail = %v, want top-level 999.0 to win over nested default", out["avail"])
	}
}

func TestFlatten_BareRiskNumberWithoutNestedMap(t *testing.T) {
	out := Flatten(map[string]any{"risk": 0.1})
	if out["risk"] != 0.1 {
		t.Errorf("risk = %v, want 0.1 to pass through when risk is not a map", out["risk"])
	}
}

func TestProposer_LowRiskWithinAvailable_ApprovesNoOTP(t *testing.T) {
	p := Proposer{}
	facts := policy.Facts{"risk": 0.2, "amount": 50.0, "avail": 100.0, "limit": 200.0}
	prop, err := p.Propose(facts)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if prop.ProposedAction != "approve_no_otp" {
		t.Errorf("ProposedAction = %q, want approve_no_otp", prop.ProposedAction)
	}
}

func TestProposer_BorderlineRiskWithinLimit_ApprovesWithOTP(t *testing.T) {
	p := Proposer{}
	facts := policy.Facts{"risk": 0.5, "amount": 150.0, "avail": 100.0, "limit": 200.0}
	prop, err := p.Propose(facts)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if prop.ProposedAction != "approve_with_otp" {
		t.Errorf("ProposedAction = %q, want approve_with_otp", prop.ProposedAction)
	}
}

func TestProposer_HighRisk_Declines(t *testing.T) {
	p := Proposer{}
	facts := policy.Facts{"risk": 0.9, "amount": 150.0, "avail": 100.0, "limit": 200.0}
	prop, err := p.Propose(facts)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if prop.ProposedAction != "decline" {
		t.Errorf("ProposedAction = %q, want decline", prop.ProposedAction)
	}
}

func TestProposer_MissingFieldsFallsBackToDecline(t *testing.T) {
	p := Proposer{}
	prop, err := p.Propose(policy.Facts{})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if prop.ProposedAction != "decline" {
		t.Errorf("ProposedAction = %q, want decline when facts are incomplete", prop.ProposedAction)
	}
}

func TestProposer_UsesNestedAliasKeys(t *testing.T) {
	p := Proposer{}
	facts := policy.Facts{"risk.score": 0.1, "amount": 10.0, "account.available": 50.0}
	prop, err := p.Propose(facts)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if prop.ProposedAction != "approve_no_otp" {
		t.Errorf("ProposedAction = %q, want approve_no_otp via alias keys", prop.ProposedAction)
	}
}

func TestRepair_CNPCoreDeclinesWhenAllowed(t *testing.T) {
	r := Repair{}
	prev := outbound.Proposal{ProposedAction: "approve_no_otp"}
	repaired, err := r.Repair(prev, []string{"cnp_tightened"}, policy.Facts{}, nil)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if repaired.ProposedAction != "decline" {
		t.Errorf("ProposedAction = %q, want decline for a cnp_tightened core", repaired.ProposedAction)
	}
}

func TestRepair_FallsBackToApproveWithOTPWithinLimit(t *testing.T) {
	r := Repair{}
	prev := outbound.Proposal{ProposedAction: "approve_no_otp"}
	facts := policy.Facts{"risk": 0.5, "amount": 100.0, "limit": 200.0}
	repaired, err := r.Repair(prev, []string{"avail_exceeded"}, facts, nil)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if repaired.ProposedAction != "approve_with_otp" {
		t.Errorf("ProposedAction = %q, want approve_with_otp", repaired.ProposedAction)
	}
}

func TestRepair_RespectsAllowedActionsAllowlist(t *testing.T) {
	r := Repair{}
	prev := outbound.Proposal{ProposedAction: "approve_no_otp"}
	facts := policy.Facts{"risk": 0.5, "amount": 100.0, "limit": 200.0}
	// approve_with_otp would otherwise fit, but it's excluded from allowedActions.
	repaired, err := r.Repair(prev, []string{"avail_exceeded"}, facts, []string{"decline"})
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if repaired.ProposedAction != "decline" {
		t.Errorf("ProposedAction = %q, want decline when approve_with_otp is disallowed", repaired.ProposedAction)
	}
}

func TestRepair_NoAllowedActionFallsBackToPrevious(t *testing.T) {
	r := Repair{}
	prev := outbound.Proposal{ProposedAction: "approve_no_otp"}
	repaired, err := r.Repair(prev, nil, policy.Facts{}, []string{"teleport"})
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if repaired.ProposedAction != "approve_no_otp" {
		t.Errorf("ProposedAction = %q, want previous proposal echoed back", repaired.ProposedAction)
	}
}

func TestExplainer_UnsatCoreIsQuotedIntoExplanation(t *testing.T) {
	e := Explainer{}
	proof := policy.Proof{Satisfiable: false, UnsatCore: []string{"within_limit", "cnp_tightened"}}
	explanation, err := e.Explain("decline", policy.Facts{}, proof, "")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if !strings.Contains(explanation, "within_limit") || !strings.Contains(explanation, "cnp_tightened") {
		t.Errorf("Explain = %q, want both unsat core names quoted", explanation)
	}
}

func TestExplainer_JustificationPreferredForApproveWithOTP(t *testing.T) {
	e := Explainer{}
	proof := policy.Proof{Satisfiable: true}
	explanation, err := e.Explain("approve_with_otp", policy.Facts{}, proof, "custom reason")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if explanation != "custom reason" {
		t.Errorf("Explain = %q, want justification text echoed verbatim", explanation)
	}
}

func TestExplainer_CannedTemplateForApproveNoOTP(t *testing.T) {
	e := Explainer{}
	proof := policy.Proof{Satisfiable: true}
	explanation, err := e.Explain("approve_no_otp", policy.Facts{}, proof, "")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if explanation == "" {
		t.Error("Explain should not return an empty string for a satisfiable approve_no_otp")
	}
}

