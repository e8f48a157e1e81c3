// Package solver is the bounded DPLL(T) engine backing the verifier
// (component C4's "SMT solver"): a Tseitin CNF transform, a DPLL search
// over boolean atoms, and a rational linear-arithmetic theory solver
// (Fourier-Motzkin elimination with branch-and-bound for declared Int
// variables) consulted whenever the boolean search settles on a candidate
// assignment. See DESIGN.md for why this is hand-built rather than a
// wrapped third-party SMT library: none appears anywhere in the retrieved
// corpus.
package solver

import (
	"fmt"
	"math/big"

	"github.com/policyforge/decisionengine/internal/domain/expr"
)

// linExpr is a linear combination over named variables plus a constant:
// const + sum(coeff[name] * name).
type linExpr struct {
	coeffs map[string]*big.Rat
	constC *big.Rat
}

func newLinExpr() *linExpr {
	return &linExpr{coeffs: map[string]*big.Rat{}, constC: new(big.Rat)}
}

func constLin(v *big.Rat) *linExpr {
	l := newLinExpr()
	l.constC.Set(v)
	return l
}

func varLin(name string) *linExpr {
	l := newLinExpr()
	l.coeffs[name] = big.NewRat(1, 1)
	return l
}

func (l *linExpr) clone() *linExpr {
	c := newLinExpr()
	c.constC.Set(l.constC)
	for k, v := range l.coeffs {
		c.coeffs[k] = new(big.Rat).Set(v)
	}
	return c
}

func (l *linExpr) add(o *linExpr) *linExpr {
	r := l.clone()
	r.constC.Add(r.constC, o.constC)
	for k, v := range o.coeffs {
		if cur, ok := r.coeffs[k]; ok {
			cur.Add(cur, v)
		} else {
			r.coeffs[k] = new(big.Rat).Set(v)
		}
	}
	return r
}

func (l *linExpr) neg() *linExpr {
	r := newLinExpr()
	r.constC.Neg(l.constC)
	for k, v := range l.coeffs {
		r.coeffs[k] = new(big.Rat).Neg(v)
	}
	return r
}

func (l *linExpr) sub(o *linExpr) *linExpr { return l.add(o.neg()) }

func (l *linExpr) scale(k *big.Rat) *linExpr {
	r := newLinExpr()
	r.constC.Mul(l.constC, k)
	for name, c := range l.coeffs {
		r.coeffs[name] = new(big.Rat).Mul(c, k)
	}
	return r
}

// isConst reports whether the expression has no free variables.
func (l *linExpr) isConst() bool { return len(l.coeffs) == 0 }

// eval substitutes a full assignment and returns the resulting constant.
// Every variable in l.coeffs must be present in assign.
func (l *linExpr) eval(assign map[string]*big.Rat) (*big.Rat, error) {
	out := new(big.Rat).Set(l.constC)
	for name, c := range l.coeffs {
		v, ok := assign[name]
		if !ok {
			return nil, fmt.Errorf("unassigned variable %q during evaluation", name)
		}
		tmp := new(big.Rat).Mul(c, v)
		out.Add(out, tmp)
	}
	return out, nil
}

// purifier rewrites IfTerm/IfFormula nodes containing arithmetic branches
// into a fresh variable plus implication constraints, so the theory
// solver only ever sees plain linear arithmetic. Fresh variables are
// always Real or Int (never exposed in the caller-visible model).
type purifier struct {
	extra []expr.Formula
	n     int
	kinds map[string]struct{} // names of synthesized variables, for bookkeeping
}

func newPurifier() *purifier { return &purifier{kinds: map[string]struct{}{}} }

func (p *purifier) freshName() string {
	name := fmt.Sprintf("__ite%d", p.n)
	p.n++
	p.kinds[name] = struct{}{}
	return name
}

func (p *purifier) term(t expr.Term) expr.Term {
	switch x := t.(type) {
	case expr.ConstTerm:
		return x
	case expr.VarTerm:
		return x
	case expr.ArithTerm:
		return expr.ArithTerm{K: x.K, Op: x.Op, X: p.term(x.X), Y: p.term(x.Y)}
	case expr.NegTerm:
		return expr.NegTerm{K: x.K, X: p.term(x.X)}
	case expr.SumTerm:
		out := make([]expr.Term, len(x.Terms))
		for i, sub := range x.Terms {
			out[i] = p.term(sub)
		}
		return expr.SumTerm{K: x.K, Terms: out}
	case expr.IfTerm:
		cond := p.formula(x.Cond)
		thenT := p.term(x.Then)
		elseT := p.term(x.Else)
		v := expr.VarTerm{K: x.K, Name: p.freshName()}
		p.extra = append(p.extra,
			expr.ImpliesFormula{A: cond, B: expr.CompareFormula{Op: "==", X: v, Y: thenT}},
			expr.ImpliesFormula{A: expr.NotFormula{X: cond}, B: expr.CompareFormula{Op: "==", X: v, Y: elseT}},
		)
		return v
	default:
		return t
	}
}

func (p *purifier) formula(f expr.Formula) expr.Formula {
	switch x := f.(type) {
	case expr.BoolConstFormula:
		return x
	case expr.BoolVarFormula:
		return x
	case expr.NotFormula:
		return expr.NotFormula{X: p.formula(x.X)}
	case expr.AndFormula:
		return expr.AndFormula{Args: p.formulas(x.Args)}
	case expr.OrFormula:
		return expr.OrFormula{Args: p.formulas(x.Args)}
	case expr.ImpliesFormula:
		return expr.ImpliesFormula{A: p.formula(x.A), B: p.formula(x.B)}
	case expr.CompareFormula:
		return expr.CompareFormula{Op: x.Op, X: p.term(x.X), Y: p.term(x.Y)}
	case expr.IfFormula:
		return expr.IfFormula{Cond: p.formula(x.Cond), Then: p.formula(x.Then), Else: p.formula(x.Else)}
	default:
		return f
	}
}

func (p *purifier) formulas(fs []expr.Formula) []expr.Formula {
	out := make([]expr.Formula, len(fs))
	for i, f := range fs {
		out[i] = p.formula(f)
	}
	return out
}

// purify rewrites f, eliminating arithmetic If(...) nodes, and returns the
// rewritten formula ANDed with the extra constraints it generated.
func purify(f expr.Formula) expr.Formula {
	p := newPurifier()
	rewritten := p.formula(f)
	if len(p.extra) == 0 {
		return rewritten
	}
	return expr.AndFormula{Args: append([]expr.Formula{rewritten}, p.extra...)}
}

// linearize converts a purified (If-free) Term into a linExpr. It returns
// an error for a genuinely nonlinear product (two non-constant operands
// multiplied together) or a non-constant divisor. The policy compiler does
// not call linearize; theoryCheck treats such an error as a theory conflict,
// so an assignment that needs a nonlinear atom is rejected at check time.
func linearize(t expr.Term) (*linExpr, error) {
	switch x := t.(type) {
	case expr.ConstTerm:
		return constFromTerm(x), nil
	case expr.VarTerm:
		return varLin(x.Name), nil
	case expr.NegTerm:
		sub, err := linearize(x.X)
		if err != nil {
			return nil, err
		}
		return sub.neg(), nil
	case expr.ArithTerm:
		return linearizeArith(x)
	case expr.SumTerm:
		out := newLinExpr()
		for _, sub := range x.Terms {
			l, err := linearize(sub)
			if err != nil {
				return nil, err
			}
			out = out.add(l)
		}
		return out, nil
	case expr.IfTerm:
		return nil, fmt.Errorf("internal error: unpurified If term reached linearization")
	default:
		return nil, fmt.Errorf("unsupported term %T", t)
	}
}

func constFromTerm(c expr.ConstTerm) *linExpr {
	if c.Real != nil {
		return constLin(c.Real)
	}
	return constLin(new(big.Rat).SetInt64(c.Int))
}

func linearizeArith(x expr.ArithTerm) (*linExpr, error) {
	lx, err := linearize(x.X)
	if err != nil {
		return nil, err
	}
	ly, err := linearize(x.Y)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "+":
		return lx.add(ly), nil
	case "-":
		return lx.sub(ly), nil
	case "*":
		switch {
		case lx.isConst():
			return ly.scale(lx.constC), nil
		case ly.isConst():
			return lx.scale(ly.constC), nil
		default:
			return nil, fmt.Errorf("nonlinear expression: multiplication of two non-constant terms is not supported")
		}
	case "/":
		if !ly.isConst() {
			return nil, fmt.Errorf("nonlinear expression: division by a non-constant term is not supported")
		}
		if ly.constC.Sign() == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		inv := new(big.Rat).Inv(ly.constC)
		return lx.scale(inv), nil
	default:
		return nil, fmt.Errorf("unsupported arithmetic operator %q", x.Op)
	}
}
