package solver

import (
	"math/big"
	"sort"
)

// literalAssignment is one theory atom together with the polarity the
// boolean search assigned it.
type literalAssignment struct {
	info  atomInfo
	value bool
}

func negateOp(op string) string {
	switch op {
	case "<=":
		return ">"
	case "<":
		return ">="
	case ">=":
		return "<"
	case ">":
		return "<="
	default:
		return op
	}
}

// theoryCheck decides feasibility of a conjunction of ordering atoms over
// linear real/int arithmetic. intVars names the variables constrained to
// be Int-valued; maxBBNodes bounds the branch-and-bound search so a
// pathological integer problem fails closed (reported unsat) rather than
// diverging, matching the "unknown is treated as unsat" rule.
func theoryCheck(lits []literalAssignment, intVars map[string]bool, maxBBNodes int) (bool, map[string]*big.Rat) {
	var leRows []row
	for _, l := range lits {
		if l.info.kind != atomPredicate {
			continue
		}
		lx, err := linearize(l.info.x)
		if err != nil {
			return false, nil
		}
		ly, err := linearize(l.info.y)
		if err != nil {
			return false, nil
		}
		diff := lx.sub(ly) // x - y
		op := l.info.op
		if !l.value {
			op = negateOp(op)
		}
		switch op {
		case "<=":
			leRows = append(leRows, rowFromLin(diff, false))
		case "<":
			leRows = append(leRows, rowFromLin(diff, true))
		case ">=":
			leRows = append(leRows, rowFromLin(diff.neg(), false))
		case ">":
			leRows = append(leRows, rowFromLin(diff.neg(), true))
		case "==":
			// Both >= and <= of the same pair: only reachable if a caller
			// builds an atom with op "==" directly (the CNF builder never
			// does; it splits equality into <= and >= atoms up front).
			leRows = append(leRows, rowFromLin(diff, false), rowFromLin(diff.neg(), false))
		}
	}
	budget := maxBBNodes
	return branchAndBound(nil, leRows, collectVars(leRows), intVars, &budget)
}

func collectVars(rows []row) []string {
	seen := map[string]bool{}
	for _, r := range rows {
		for name := range r.coeffs {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func branchAndBound(eqRows, leRows []row, varOrder []string, intVars map[string]bool, budget *int) (bool, map[string]*big.Rat) {
	sat, assign := feasibility(eqRows, leRows, varOrder)
	if !sat {
		return false, nil
	}
	for name := range intVars {
		v, ok := assign[name]
		if !ok || v.IsInt() {
			continue
		}
		if *budget <= 0 {
			return false, nil
		}
		*budget--
		floorV := floorRat(v)
		ceilV := ceilRat(v)
		lower := append(append([]row{}, leRows...), boundRowLE(name, floorV))
		if ok, a := branchAndBound(eqRows, lower, varOrder, intVars, budget); ok {
			return true, a
		}
		upper := append(append([]row{}, leRows...), boundRowGE(name, ceilV))
		return branchAndBound(eqRows, upper, varOrder, intVars, budget)
	}
	return true, assign
}

func floorRat(r *big.Rat) *big.Rat {
	q := new(big.Int)
	m := new(big.Int)
	q.DivMod(r.Num(), r.Denom(), m)
	return new(big.Rat).SetInt(q)
}

func ceilRat(r *big.Rat) *big.Rat {
	f := floorRat(r)
	if f.Cmp(r) == 0 {
		return f
	}
	return new(big.Rat).Add(f, big.NewRat(1, 1))
}

func boundRowLE(name string, k *big.Rat) row {
	return row{coeffs: map[string]*big.Rat{name: big.NewRat(1, 1)}, constC: new(big.Rat).Neg(k)}
}

func boundRowGE(name string, k *big.Rat) row {
	return row{coeffs: map[string]*big.Rat{name: big.NewRat(-1, 1)}, constC: new(big.Rat).Set(k)}
}
