package solver

import (
	"math/big"
)

// row is a constraint normalized to "expr <= 0" (or "< 0" when strict),
// over the variables remaining after equality substitution.
type row struct {
	coeffs map[string]*big.Rat
	constC *big.Rat
	strict bool
}

func rowFromLin(l *linExpr, strict bool) row {
	return row{coeffs: l.coeffs, constC: l.constC, strict: strict}
}

func (r row) clone() row {
	c := map[string]*big.Rat{}
	for k, v := range r.coeffs {
		c[k] = new(big.Rat).Set(v)
	}
	return row{coeffs: c, constC: new(big.Rat).Set(r.constC), strict: r.strict}
}

// substitute replaces var name with expression e (name eliminated) in r,
// returning a new row.
func (r row) substitute(name string, e *linExpr) row {
	coeff, ok := r.coeffs[name]
	if !ok {
		return r.clone()
	}
	out := r.clone()
	delete(out.coeffs, name)
	scaled := e.scale(coeff)
	merged := (&linExpr{coeffs: out.coeffs, constC: out.constC}).add(scaled)
	return row{coeffs: merged.coeffs, constC: merged.constC, strict: r.strict}
}

type elimRecord struct {
	name   string
	lowers []boundExpr // v >= expr (strict: v > expr)
	uppers []boundExpr // v <= expr (strict: v < expr)
}

type boundExpr struct {
	expr   *linExpr
	strict bool
}

// eqElim records an equality-eliminated variable: name = expr, solved once
// the remaining free variables of expr are known.
type eqElim struct {
	name string
	expr *linExpr
}

// feasibility runs Gaussian elimination on equalities then Fourier-Motzkin
// elimination on inequalities, returning satisfiability and, if feasible,
// a witness assignment for every named real-valued variable mentioned.
func feasibility(eqRows []row, leRows []row, varOrder []string) (bool, map[string]*big.Rat) {
	var eqElims []eqElim
	eqs := make([]row, len(eqRows))
	for i, r := range eqRows {
		eqs[i] = r.clone()
	}
	les := make([]row, len(leRows))
	for i, r := range leRows {
		les[i] = r.clone()
	}

	for _, name := range varOrder {
		idx := -1
		for i, r := range eqs {
			if _, ok := r.coeffs[name]; ok {
				idx = i
				break
			}
		}
		if idx == -1 {
			continue
		}
		r := eqs[idx]
		eqs = append(eqs[:idx], eqs[idx+1:]...)
		coeff := r.coeffs[name]
		rest := &linExpr{coeffs: map[string]*big.Rat{}, constC: new(big.Rat).Set(r.constC)}
		for k, v := range r.coeffs {
			if k == name {
				continue
			}
			rest.coeffs[k] = new(big.Rat).Set(v)
		}
		inv := new(big.Rat).Neg(new(big.Rat).Inv(coeff))
		solved := rest.scale(inv) // name = -rest/coeff
		eqElims = append(eqElims, eqElim{name: name, expr: solved})
		for i := range eqs {
			eqs[i] = eqs[i].substitute(name, solved)
		}
		for i := range les {
			les[i] = les[i].substitute(name, solved)
		}
	}
	for _, r := range eqs {
		if len(r.coeffs) == 0 && r.constC.Sign() != 0 {
			return false, nil
		}
	}

	var elims []elimRecord
	remaining := les
	for _, name := range varOrder {
		used := false
		for _, r := range remaining {
			if _, ok := r.coeffs[name]; ok {
				used = true
				break
			}
		}
		if !used {
			continue
		}
		var uppers, lowers []boundExpr
		var passthrough []row
		for _, r := range remaining {
			coeff, ok := r.coeffs[name]
			if !ok {
				passthrough = append(passthrough, r)
				continue
			}
			rest := &linExpr{coeffs: map[string]*big.Rat{}, constC: new(big.Rat).Set(r.constC)}
			for k, v := range r.coeffs {
				if k == name {
					continue
				}
				rest.coeffs[k] = new(big.Rat).Set(v)
			}
			if coeff.Sign() > 0 {
				// coeff*v + rest <= 0  =>  v <= -rest/coeff
				bound := rest.scale(new(big.Rat).Neg(new(big.Rat).Inv(coeff)))
				uppers = append(uppers, boundExpr{expr: bound, strict: r.strict})
			} else {
				// coeff*v + rest <= 0, coeff<0  =>  v >= -rest/coeff
				bound := rest.scale(new(big.Rat).Neg(new(big.Rat).Inv(coeff)))
				lowers = append(lowers, boundExpr{expr: bound, strict: r.strict})
			}
		}
		var produced []row
		for _, lo := range lowers {
			for _, up := range uppers {
				// lo.expr <= up.expr  =>  lo.expr - up.expr <= 0
				combined := lo.expr.sub(up.expr)
				produced = append(produced, row{coeffs: combined.coeffs, constC: combined.constC, strict: lo.strict || up.strict})
			}
		}
		elims = append(elims, elimRecord{name: name, lowers: lowers, uppers: uppers})
		remaining = append(passthrough, produced...)
	}

	for _, r := range remaining {
		if len(r.coeffs) != 0 {
			continue // should not happen once all vars in varOrder are eliminated
		}
		if r.strict && r.constC.Sign() >= 0 {
			return false, nil
		}
		if !r.strict && r.constC.Sign() > 0 {
			return false, nil
		}
	}

	assign := map[string]*big.Rat{}
	for i := len(elims) - 1; i >= 0; i-- {
		e := elims[i]
		var lowerVal, upperVal *big.Rat
		lowerStrict, upperStrict := false, false
		for _, lo := range e.lowers {
			v, err := lo.expr.eval(assign)
			if err != nil {
				continue
			}
			if lowerVal == nil || v.Cmp(lowerVal) > 0 {
				lowerVal, lowerStrict = v, lo.strict
			}
		}
		for _, up := range e.uppers {
			v, err := up.expr.eval(assign)
			if err != nil {
				continue
			}
			if upperVal == nil || v.Cmp(upperVal) < 0 {
				upperVal, upperStrict = v, up.strict
			}
		}
		assign[e.name] = pickWitness(lowerVal, lowerStrict, upperVal, upperStrict)
	}
	for i := len(eqElims) - 1; i >= 0; i-- {
		e := eqElims[i]
		v, err := e.expr.eval(assign)
		if err != nil {
			v = new(big.Rat)
		}
		assign[e.name] = v
	}
	return true, assign
}

// pickWitness returns a rational strictly satisfying the given open/closed
// bounds; nil means unbounded on that side.
func pickWitness(lo *big.Rat, loStrict bool, hi *big.Rat, hiStrict bool) *big.Rat {
	one := big.NewRat(1, 1)
	switch {
	case lo != nil && hi != nil:
		mid := new(big.Rat).Add(lo, hi)
		mid.Quo(mid, big.NewRat(2, 1))
		return mid
	case lo != nil:
		if loStrict {
			return new(big.Rat).Add(lo, one)
		}
		return new(big.Rat).Set(lo)
	case hi != nil:
		if hiStrict {
			return new(big.Rat).Sub(hi, one)
		}
		return new(big.Rat).Set(hi)
	default:
		return new(big.Rat)
	}
}
