package solver

import (
	"math/big"

	"github.com/policyforge/decisionengine/internal/domain/expr"
	"github.com/policyforge/decisionengine/internal/domain/policy"
)

type clauseStatus int

const (
	clUndetermined clauseStatus = iota
	clSatisfied
	clUnit
	clUnsat
)

func statusOf(cl []int, assign []int8) (clauseStatus, int) {
	unassignedCount := 0
	var lastUnassigned int
	for _, lit := range cl {
		v := assign[abs(lit)]
		if v == 0 {
			unassignedCount++
			lastUnassigned = lit
			continue
		}
		if (lit > 0 && v == 1) || (lit < 0 && v == -1) {
			return clSatisfied, 0
		}
	}
	if unassignedCount == 0 {
		return clUnsat, 0
	}
	if unassignedCount == 1 {
		return clUnit, lastUnassigned
	}
	return clUndetermined, 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// dpllSolve is a naive recursive DPLL: unit propagation plus chronological
// backtracking over the first unassigned variable. The problems the policy
// compiler produces are small (one clause set per invariant/guard), so
// this favors a compact, readable implementation over watch-list bookkeeping.
func dpllSolve(clauses [][]int, nVars int) (bool, []int8) {
	assign := make([]int8, nVars+1)
	if dpllRec(clauses, assign) {
		return true, assign
	}
	return false, nil
}

func dpllRec(clauses [][]int, assign []int8) bool {
	for {
		propagated := false
		for _, cl := range clauses {
			st, unit := statusOf(cl, assign)
			if st == clUnsat {
				return false
			}
			if st == clUnit {
				if unit > 0 {
					assign[unit] = 1
				} else {
					assign[-unit] = -1
				}
				propagated = true
			}
		}
		if !propagated {
			break
		}
	}

	pick := 0
	for v := 1; v < len(assign); v++ {
		if assign[v] == 0 {
			pick = v
			break
		}
	}
	if pick == 0 {
		for _, cl := range clauses {
			if st, _ := statusOf(cl, assign); st == clUnsat {
				return false
			}
		}
		return true
	}

	saved := append([]int8(nil), assign...)
	assign[pick] = 1
	if dpllRec(clauses, assign) {
		return true
	}
	copy(assign, saved)
	assign[pick] = -1
	if dpllRec(clauses, assign) {
		return true
	}
	copy(assign, saved)
	return false
}

// Model is a satisfying assignment reported back to the verifier: numeric
// values for Real/Int variables and truth values for Bool variables and
// action flags. It holds every atom and theory variable the solver saw;
// the verifier picks out the declared names it reports.
type Model struct {
	Numeric map[string]*big.Rat
	Bool    map[string]bool
}

// solveCNF runs the outer DPLL(T) loop: solve the boolean skeleton, check
// the resulting theory-atom assignment with the linear-arithmetic theory
// solver, and on conflict add a blocking clause ruling out that exact
// assignment before retrying. maxRounds bounds the number of theory
// conflicts tolerated before giving up (treated as unsat).
func solveCNF(b *cnfBuilder, maxBBNodes, maxRounds int) (bool, *Model) {
	intVars := map[string]bool{}
	for _, info := range b.atoms {
		if info.kind != atomPredicate {
			continue
		}
		collectIntVars(info.x, intVars)
		collectIntVars(info.y, intVars)
	}

	clauses := append([][]int(nil), b.clauses...)
	for round := 0; round < maxRounds; round++ {
		sat, assign := dpllSolve(clauses, b.nextVar)
		if !sat {
			return false, nil
		}
		var lits []literalAssignment
		block := make([]int, 0, len(b.atoms))
		boolModel := map[string]bool{}
		for id, info := range b.atoms {
			val := assign[id] == 1
			switch info.kind {
			case atomBool:
				boolModel[info.name] = val
			case atomPredicate:
				lits = append(lits, literalAssignment{info: info, value: val})
				if val {
					block = append(block, -id)
				} else {
					block = append(block, id)
				}
			}
		}
		ok, numModel := theoryCheck(lits, intVars, maxBBNodes)
		if ok {
			return true, &Model{Numeric: numModel, Bool: boolModel}
		}
		if len(block) == 0 {
			return false, nil
		}
		clauses = append(clauses, block)
	}
	return false, nil
}

func collectIntVars(t expr.Term, out map[string]bool) {
	switch x := t.(type) {
	case expr.VarTerm:
		if x.K == policy.KindInt {
			out[x.Name] = true
		}
	case expr.ArithTerm:
		collectIntVars(x.X, out)
		collectIntVars(x.Y, out)
	case expr.NegTerm:
		collectIntVars(x.X, out)
	case expr.SumTerm:
		for _, sub := range x.Terms {
			collectIntVars(sub, out)
		}
	}
}
