package verifier

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/policyforge/decisionengine/internal/domain/policy"
	"github.com/policyforge/decisionengine/internal/service/compiler"
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

// S1: low risk, within available balance -> approve_no_otp.
func TestVerifier_S1_ApproveNoOTP(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	v := New(nil)

	facts := policy.Facts{"amount": 100.0, "avail": 1000.0, "limit": 5000.0, "risk": 0.10, "vel1h": 1, "cnp": false}
	res, err := v.Check(checkCtx(t), factory, facts, "")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Satisfiable {
		t.Fatalf("expected satisfiable, core=%v", res.UnsatCore)
	}
	if res.ChosenAction != "approve_no_otp" {
		t.Errorf("ChosenAction = %q, want approve_no_otp", res.ChosenAction)
	}
}

// S3: CNP with risk above the tightened threshold -> decline, cnp_tightened in core.
func TestVerifier_S3_DeclineCNPRiskTooHigh(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	v := New(nil)

	facts := policy.Facts{"amount": 200.0, "avail": 1000.0, "limit": 5000.0, "risk": 0.70, "vel1h": 1, "cnp": true}
	res, err := v.Check(checkCtx(t), factory, facts, "")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Satisfiable {
		t.Fatalf("expected unsatisfiable")
	}
	if !containsName(res.UnsatCore, "cnp_tightened") {
		t.Errorf("UnsatCore = %v, want it to contain cnp_tightened", res.UnsatCore)
	}
}

// S5: velocity above cap -> decline, velocity_cap in core.
func TestVerifier_S5_DeclineVelocityCap(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	v := New(nil)

	facts := policy.Facts{"amount": 100.0, "avail": 1000.0, "limit": 5000.0, "risk": 0.20, "vel1h": 99, "cnp": false}
	res, err := v.Check(checkCtx(t), factory, facts, "")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Satisfiable {
		t.Fatalf("expected unsatisfiable")
	}
	if !containsName(res.UnsatCore, "velocity_cap") {
		t.Errorf("UnsatCore = %v, want it to contain velocity_cap", res.UnsatCore)
	}
}

// S2: borderline risk, within limit but not available balance, soft mode
// verifying a forced approve_with_otp -> satisfiable.
func TestVerifier_S2_SoftApproveWithOTP(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	v := New(nil)

	facts := policy.Facts{"amount": 500.0, "avail": 450.0, "limit": 1000.0, "risk": 0.40, "vel1h": 2, "cnp": true}
	res, err := v.Check(checkCtx(t), factory, facts, "approve_with_otp")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Satisfiable {
		t.Fatalf("expected satisfiable, core=%v", res.UnsatCore)
	}
}

// S6: same facts as S2, but forced to approve_no_otp, which fails since
// amount exceeds avail -- the repair round-trip belongs to the router,
// this only exercises the verifier's half of it.
func TestVerifier_S6_ForcedNoOTPFails(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	v := New(nil)

	facts := policy.Facts{"amount": 500.0, "avail": 450.0, "limit": 1000.0, "risk": 0.40, "vel1h": 2, "cnp": true}
	res, err := v.Check(checkCtx(t), factory, facts, "approve_no_otp")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Satisfiable {
		t.Fatalf("expected unsatisfiable, forcing approve_no_otp should violate within_avail_if_no_otp")
	}
}

// Universal property: an unbound variable remains free and does not force
// unsatisfiability by itself.
func TestVerifier_UnboundVariableRemainsFree(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	v := New(nil)

	facts := policy.Facts{"amount": 10.0, "avail": 1000.0, "limit": 5000.0, "risk": 0.10, "cnp": false}
	res, err := v.Check(checkCtx(t), factory, facts, "")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Satisfiable {
		t.Fatalf("expected satisfiable with vel1h left free, core=%v", res.UnsatCore)
	}
}

// Universal property: facts referring to undeclared names are ignored.
func TestVerifier_UnknownFactNameIgnored(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	v := New(nil)

	facts := policy.Facts{"amount": 100.0, "avail": 1000.0, "limit": 5000.0, "risk": 0.10, "vel1h": 1, "cnp": false, "nonexistent_field": 42}
	res, err := v.Check(checkCtx(t), factory, facts, "")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Satisfiable {
		t.Fatalf("expected satisfiable, unknown fact should be ignored, core=%v", res.UnsatCore)
	}
}

// Universal property: a type-incompatible fact value surfaces a BindingError.
func TestVerifier_TypeIncompatibleFactIsBindingError(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	v := New(nil)

	facts := policy.Facts{"amount": "not-a-number"}
	_, err := v.Check(checkCtx(t), factory, facts, "")
	if err == nil {
		t.Fatal("expected a BindingError for a string fact bound to a Real variable")
	}
	var bindingErr *policy.BindingError
	if !errors.As(err, &bindingErr) {
		t.Fatalf("expected *policy.BindingError, got %T: %v", err, err)
	}
}

// Universal property: an unknown forced_action name fails closed and is
// citable in the unsat core.
func TestVerifier_UnknownForcedActionFailsClosed(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	v := New(nil)

	facts := policy.Facts{"amount": 100.0, "avail": 1000.0, "limit": 5000.0, "risk": 0.10, "vel1h": 1, "cnp": false}
	res, err := v.Check(checkCtx(t), factory, facts, "approve_instantly")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Satisfiable {
		t.Fatalf("expected unsatisfiable for an unknown forced action")
	}
	if !containsName(res.UnsatCore, policy.ForcedActionAssertionName) {
		t.Errorf("UnsatCore = %v, want it to contain %s", res.UnsatCore, policy.ForcedActionAssertionName)
	}
}

// A canceled context is folded into unsat with an empty core.
func TestVerifier_CanceledContextFoldsToUnsat(t *testing.T) {
	t.Parallel()
	factory := loadAuthV1(t)
	v := New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	facts := policy.Facts{"amount": 100.0, "avail": 1000.0, "limit": 5000.0, "risk": 0.10, "vel1h": 1, "cnp": false}
	res, err := v.Check(ctx, factory, facts, "")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Satisfiable {
		t.Fatalf("expected unsat on an already-canceled context")
	}
	if len(res.UnsatCore) != 0 {
		t.Errorf("UnsatCore = %v, want empty on a timeout fold", res.UnsatCore)
	}
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}
