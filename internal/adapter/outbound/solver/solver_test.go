package solver

import (
	"math/big"
	"testing"

	"github.com/policyforge/decisionengine/internal/domain/expr"
	"github.com/policyforge/decisionengine/internal/domain/policy"
)

func realVar(name string) expr.Term  { return expr.VarTerm{K: policy.KindReal, Name: name} }
func intVar(name string) expr.Term   { return expr.VarTerm{K: policy.KindInt, Name: name} }
func realConst(n, d int64) expr.Term { return expr.ConstTerm{K: policy.KindReal, Real: big.NewRat(n, d)} }
func intConst(n int64) expr.Term     { return expr.ConstTerm{K: policy.KindInt, Int: n} }

func cmp(op string, x, y expr.Term) expr.Formula {
	return expr.CompareFormula{Op: op, X: x, Y: y}
}

func TestProblem_Solve_SimpleSatisfiable(t *testing.T) {
	p := &Problem{
		Base: []expr.Formula{cmp("<=", realVar("x"), realConst(10, 1))},
	}
	res := p.Solve(nil)
	if !res.Satisfiable {
		t.Fatalf("expected satisfiable")
	}
	if res.Model == nil || res.Model.Numeric["x"] == nil {
		t.Fatalf("expected a witness value for x")
	}
	if res.Model.Numeric["x"].Cmp(big.NewRat(10, 1)) > 0 {
		t.Errorf("x = %v, want <= 10", res.Model.Numeric["x"])
	}
}

func TestProblem_Solve_ContradictoryBoundsUnsat(t *testing.T) {
	p := &Problem{
		Base: []expr.Formula{
			cmp(">=", realVar("x"), realConst(10, 1)),
			cmp("<=", realVar("x"), realConst(5, 1)),
		},
	}
	res := p.Solve(nil)
	if res.Satisfiable {
		t.Fatalf("expected unsatisfiable, x cannot be both >= 10 and <= 5")
	}
}

func TestProblem_Solve_EqualitySplitIntoTwoAtoms(t *testing.T) {
	p := &Problem{
		Base: []expr.Formula{cmp("==", realVar("x"), realConst(7, 1))},
	}
	res := p.Solve(nil)
	if !res.Satisfiable {
		t.Fatalf("expected satisfiable")
	}
	if res.Model.Numeric["x"].Cmp(big.NewRat(7, 1)) != 0 {
		t.Errorf("x = %v, want exactly 7", res.Model.Numeric["x"])
	}
}

func TestProblem_Solve_DisjunctionPicksOneBranch(t *testing.T) {
	p := &Problem{
		Base: []expr.Formula{
			expr.OrFormula{Args: []expr.Formula{
				cmp("<=", realVar("x"), realConst(-1, 1)),
				cmp(">=", realVar("x"), realConst(100, 1)),
			}},
		},
	}
	res := p.Solve(nil)
	if !res.Satisfiable {
		t.Fatalf("expected satisfiable")
	}
	x := res.Model.Numeric["x"]
	if x.Cmp(big.NewRat(-1, 1)) > 0 && x.Cmp(big.NewRat(100, 1)) < 0 {
		t.Errorf("x = %v satisfies neither disjunct", x)
	}
}

func TestProblem_Solve_IntegerBranchAndBound(t *testing.T) {
	// 2.1 <= x <= 4.8 over Int x: the relaxed midpoint (3.45) is fractional,
	// so this only succeeds if branch-and-bound actually branches down to
	// an integer-valued witness (3 or 4).
	p := &Problem{
		Base: []expr.Formula{
			cmp(">=", intVar("x"), realConst(21, 10)),
			cmp("<=", intVar("x"), realConst(48, 10)),
		},
	}
	res := p.Solve(nil)
	if !res.Satisfiable {
		t.Fatalf("expected satisfiable")
	}
	x := res.Model.Numeric["x"]
	if !x.IsInt() {
		t.Fatalf("x = %v, want an integer witness", x)
	}
	if x.Cmp(big.NewRat(3, 1)) != 0 && x.Cmp(big.NewRat(4, 1)) != 0 {
		t.Errorf("x = %v, want 3 or 4", x)
	}
}

func TestProblem_Solve_IntegerInfeasibleRange(t *testing.T) {
	// No integer lies strictly between 2 and 3.
	p := &Problem{
		Base: []expr.Formula{
			cmp(">", intVar("x"), intConst(2)),
			cmp("<", intVar("x"), intConst(3)),
		},
	}
	res := p.Solve(nil)
	if res.Satisfiable {
		t.Fatalf("expected unsatisfiable, no integer strictly between 2 and 3")
	}
}

func TestProblem_Solve_ImpliesHoldsVacuouslyWhenAntecedentFalse(t *testing.T) {
	p := &Problem{
		Base: []expr.Formula{
			expr.ImpliesFormula{
				A: expr.BoolVarFormula{Name: "flag"},
				B: cmp("<=", realVar("x"), realConst(0, 1)),
			},
			expr.NotFormula{X: expr.BoolVarFormula{Name: "flag"}},
			cmp(">=", realVar("x"), realConst(1000, 1)),
		},
	}
	res := p.Solve(nil)
	if !res.Satisfiable {
		t.Fatalf("expected satisfiable: implication is vacuous when flag is false")
	}
}

func TestProblem_UnsatCore_MinimalAndNamesConflictingAssertion(t *testing.T) {
	p := &Problem{
		Base: []expr.Formula{
			cmp(">=", realVar("x"), realConst(0, 1)),
		},
		Names: []string{"irrelevant", "conflicting"},
		Named: map[string]expr.Formula{
			"irrelevant":  cmp("<=", realVar("x"), realConst(1000, 1)),
			"conflicting": cmp("<=", realVar("x"), realConst(-5, 1)),
		},
	}
	res := p.Solve(p.Names)
	if res.Satisfiable {
		t.Fatalf("expected unsatisfiable: x >= 0 and x <= -5 conflict")
	}
	core := p.UnsatCore()
	if len(core) != 1 || core[0] != "conflicting" {
		t.Errorf("UnsatCore = %v, want exactly [conflicting]", core)
	}
}

func TestProblem_UnsatCore_BothNamesNeededForConflict(t *testing.T) {
	p := &Problem{
		Names: []string{"lower", "upper"},
		Named: map[string]expr.Formula{
			"lower": cmp(">=", realVar("x"), realConst(10, 1)),
			"upper": cmp("<=", realVar("x"), realConst(5, 1)),
		},
	}
	res := p.Solve(p.Names)
	if res.Satisfiable {
		t.Fatalf("expected unsatisfiable")
	}
	core := p.UnsatCore()
	if len(core) != 2 {
		t.Errorf("UnsatCore = %v, want both lower and upper", core)
	}
}

func TestProblem_UnsatCore_MaxCoreResolvesBoundsMinimization(t *testing.T) {
	p := &Problem{
		Base: []expr.Formula{
			cmp(">=", realVar("x"), realConst(0, 1)),
		},
		Names: []string{"irrelevant1", "irrelevant2", "conflicting"},
		Named: map[string]expr.Formula{
			"irrelevant1": cmp("<=", realVar("x"), realConst(1000, 1)),
			"irrelevant2": cmp("<=", realVar("x"), realConst(2000, 1)),
			"conflicting": cmp("<=", realVar("x"), realConst(-5, 1)),
		},
		Limits: Limits{MaxCoreResolves: 1},
	}
	res := p.Solve(p.Names)
	if res.Satisfiable {
		t.Fatalf("expected unsatisfiable: x >= 0 and x <= -5 conflict")
	}
	// With an unbounded budget this would minimize down to [conflicting];
	// a one-resolve budget drops only the first irrelevant name tried and
	// then must stop, leaving a valid but non-minimal core.
	core := p.UnsatCore()
	if len(core) != 2 {
		t.Errorf("UnsatCore = %v, want exactly 2 names left after a single resolve", core)
	}
	found := false
	for _, n := range core {
		if n == "conflicting" {
			found = true
		}
	}
	if !found {
		t.Errorf("UnsatCore = %v, want it to still contain conflicting", core)
	}
}

func TestProblem_Solve_EmptyProblemIsSatisfiable(t *testing.T) {
	p := &Problem{}
	res := p.Solve(nil)
	if !res.Satisfiable {
		t.Fatalf("an empty problem is trivially satisfiable")
	}
}

func TestProblem_Solve_IfTermPurifiedCorrectly(t *testing.T) {
	// If(flag, 1, 2) <= 1 is satisfiable only when flag is true.
	ite := expr.IfTerm{K: policy.KindReal, Cond: expr.BoolVarFormula{Name: "flag"}, Then: realConst(1, 1), Else: realConst(2, 1)}
	p := &Problem{
		Base: []expr.Formula{cmp("<=", ite, realConst(1, 1))},
	}
	res := p.Solve(nil)
	if !res.Satisfiable {
		t.Fatalf("expected satisfiable")
	}
	if !res.Model.Bool["flag"] {
		t.Errorf("flag = %v, want true since the else branch (2) violates <= 1", res.Model.Bool["flag"])
	}
}

func TestBranchAndBound_BudgetExhaustionFailsClosed(t *testing.T) {
	// [1.1, 9.9] plainly contains integers, but the relaxed witness (the
	// interval midpoint, 5.5) is fractional, so a zero-node budget must
	// fail closed without ever attempting a branch.
	lits := []literalAssignment{
		{info: atomInfo{kind: atomPredicate, op: ">=", x: intVar("x"), y: realConst(11, 10)}, value: true},
		{info: atomInfo{kind: atomPredicate, op: "<=", x: intVar("x"), y: realConst(99, 10)}, value: true},
	}
	ok, _ := theoryCheck(lits, map[string]bool{"x": true}, 0)
	if ok {
		t.Fatalf("expected a zero-budget branch-and-bound search to fail closed")
	}
}
