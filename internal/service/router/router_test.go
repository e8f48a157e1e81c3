package router

import (
	"context"
	"os"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/policyforge/decisionengine/internal/adapter/outbound/authdemo"
	"github.com/policyforge/decisionengine/internal/domain/policy"
	outbound "github.com/policyforge/decisionengine/internal/port/outbound"
	"github.com/policyforge/decisionengine/internal/service/compiler"
	"github.com/policyforge/decisionengine/internal/service/verifier"
)

func loadAuthV1(t *testing.T) *compiler.Factory {
	t.Helper()
	data, err := os.ReadFile("../../../testdata/auth_v1.yaml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	var doc policy.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	factory, err := compiler.Compile(&doc)
	if err != nil {
		t.Fatalf("compile fixture: %v", err)
	}
	return factory
}

func checkCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// S1: hard mode lets the solver choose approve_no_otp.
func TestRouter_S1_HardApproveNoOTP(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	r := New(verifier.New(nil), nil, nil, nil, nil, nil, nil, nil)

	facts := policy.Facts{"amount": 100.0, "avail": 1000.0, "limit": 5000.0, "risk": 0.10, "vel1h": 1, "cnp": false}
	rec := r.Decide(checkCtx(t), factory, facts, policy.ModeHard)

	if rec.Decision != "approve_no_otp" {
		t.Errorf("Decision = %q, want approve_no_otp", rec.Decision)
	}
	if rec.PolicyVersion != factory.PolicyID() {
		t.Errorf("PolicyVersion = %q, want %q", rec.PolicyVersion, factory.PolicyID())
	}
	if !rec.Proof.Satisfiable {
		t.Errorf("expected a satisfiable proof")
	}
}

// S3: hard mode declines and cites cnp_tightened in the unsat core.
func TestRouter_S3_HardDeclineCNP(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	r := New(verifier.New(nil), nil, nil, nil, nil, nil, nil, nil)

	facts := policy.Facts{"amount": 200.0, "avail": 1000.0, "limit": 5000.0, "risk": 0.70, "vel1h": 1, "cnp": true}
	rec := r.Decide(checkCtx(t), factory, facts, policy.ModeHard)

	if rec.Decision != string(policy.DeclineDecision) {
		t.Errorf("Decision = %q, want decline", rec.Decision)
	}
	if !containsName(rec.Proof.UnsatCore, "cnp_tightened") {
		t.Errorf("UnsatCore = %v, want it to contain cnp_tightened", rec.Proof.UnsatCore)
	}
}

// S2: soft mode with the demo proposer succeeds on the first check, no repair.
func TestRouter_S2_SoftApproveWithOTPNoRepair(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	r := New(verifier.New(nil), authdemo.Proposer{}, authdemo.Repair{}, authdemo.Explainer{}, nil, nil, nil, nil)

	facts := policy.Facts{"amount": 500.0, "avail": 450.0, "limit": 1000.0, "risk": 0.40, "vel1h": 2, "cnp": true}
	rec := r.Decide(checkCtx(t), factory, facts, policy.ModeSoft)

	if rec.Decision != "approve_with_otp" {
		t.Errorf("Decision = %q, want approve_with_otp", rec.Decision)
	}
}

// S6: the proposer is forced to approve_no_otp (simulated by a stub
// Proposer), fails verification, and repair recovers approve_with_otp.
func TestRouter_S6_SoftRepairRecovers(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	stub := stubProposer{action: "approve_no_otp", justification: "forced for test"}
	r := New(verifier.New(nil), stub, authdemo.Repair{}, authdemo.Explainer{}, nil, nil, nil, nil)

	facts := policy.Facts{"amount": 500.0, "avail": 450.0, "limit": 1000.0, "risk": 0.40, "vel1h": 2, "cnp": true}
	rec := r.Decide(checkCtx(t), factory, facts, policy.ModeSoft)

	if rec.Decision != "approve_with_otp" {
		t.Errorf("Decision = %q, want approve_with_otp after repair", rec.Decision)
	}
}

// Soft mode with no proposer configured always declines.
func TestRouter_SoftModeNoProposerDeclines(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	r := New(verifier.New(nil), nil, nil, nil, nil, nil, nil, nil)

	facts := policy.Facts{"amount": 100.0, "avail": 1000.0, "limit": 5000.0, "risk": 0.10, "vel1h": 1, "cnp": false}
	rec := r.Decide(checkCtx(t), factory, facts, policy.ModeSoft)

	if rec.Decision != string(policy.DeclineDecision) {
		t.Errorf("Decision = %q, want decline with no proposer configured", rec.Decision)
	}
}

// Decision is never the empty string, even on a binding error.
func TestRouter_DecisionNeverEmpty(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	r := New(verifier.New(nil), nil, nil, nil, nil, nil, nil, nil)

	facts := policy.Facts{"amount": "not-a-number"}
	rec := r.Decide(checkCtx(t), factory, facts, policy.ModeHard)

	if rec.Decision == "" {
		t.Fatal("Decision must never be empty")
	}
	if rec.Decision != string(policy.DeclineDecision) {
		t.Errorf("Decision = %q, want decline on a binding error", rec.Decision)
	}
}

type stubProposer struct {
	action        string
	justification string
}

func (s stubProposer) Propose(facts policy.Facts) (outbound.Proposal, error) {
	return outbound.Proposal{ProposedAction: s.action, Justification: s.justification}, nil
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}
