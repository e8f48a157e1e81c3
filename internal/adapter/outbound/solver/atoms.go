package solver

import (
	"fmt"
	"sort"

	"github.com/policyforge/decisionengine/internal/domain/expr"
)

type atomKind int

const (
	atomBool atomKind = iota
	atomPredicate
)

// atomInfo describes what a CNF variable stands for: either a declared
// Bool variable/action flag, or a linear comparison the theory solver must
// check once the boolean skeleton picks a polarity for it.
type atomInfo struct {
	kind atomKind
	name string // atomBool
	op   string // atomPredicate: == < <= > >=  (!= is eliminated before here)
	x, y expr.Term
}

// cnfBuilder runs the Tseitin transform over a purified Formula, assigning
// a shared variable-id space to both theory/boolean atoms and the fresh
// auxiliary variables the transform introduces.
type cnfBuilder struct {
	nextVar   int
	boolIdx   map[string]int
	predIdx   map[string]int
	atoms     map[int]atomInfo
	clauses   [][]int
	trueVar   int
}

func newCNFBuilder() *cnfBuilder {
	b := &cnfBuilder{
		boolIdx: map[string]int{},
		predIdx: map[string]int{},
		atoms:   map[int]atomInfo{},
	}
	b.trueVar = b.fresh()
	b.addClause(b.trueVar)
	return b
}

func (b *cnfBuilder) fresh() int {
	b.nextVar++
	return b.nextVar
}

func (b *cnfBuilder) addClause(lits ...int) {
	b.clauses = append(b.clauses, lits)
}

func (b *cnfBuilder) boolAtom(name string) int {
	if id, ok := b.boolIdx[name]; ok {
		return id
	}
	id := b.fresh()
	b.boolIdx[name] = id
	b.atoms[id] = atomInfo{kind: atomBool, name: name}
	return id
}

func (b *cnfBuilder) predAtom(op string, x, y expr.Term) int {
	key := op + "|" + termKey(x) + "|" + termKey(y)
	if id, ok := b.predIdx[key]; ok {
		return id
	}
	id := b.fresh()
	b.predIdx[key] = id
	b.atoms[id] = atomInfo{kind: atomPredicate, op: op, x: x, y: y}
	return id
}

// termKey produces a canonical string for deduplicating predicate atoms
// that reference structurally identical terms.
func termKey(t expr.Term) string {
	switch x := t.(type) {
	case expr.ConstTerm:
		if x.Real != nil {
			return "c:" + x.Real.RatString()
		}
		return fmt.Sprintf("c:%d", x.Int)
	case expr.VarTerm:
		return "v:" + x.Name
	case expr.NegTerm:
		return "neg(" + termKey(x.X) + ")"
	case expr.ArithTerm:
		return "(" + termKey(x.X) + x.Op + termKey(x.Y) + ")"
	case expr.SumTerm:
		parts := make([]string, len(x.Terms))
		for i, sub := range x.Terms {
			parts[i] = termKey(sub)
		}
		sort.Strings(parts)
		return "sum(" + fmt.Sprint(parts) + ")"
	default:
		return fmt.Sprintf("?%T", t)
	}
}

// encode performs the Tseitin transform, returning a signed literal (in
// the shared variable space) whose truth is equivalent to f's truth.
func (b *cnfBuilder) encode(f expr.Formula) int {
	switch x := f.(type) {
	case expr.BoolConstFormula:
		if x.Value {
			return b.trueVar
		}
		return -b.trueVar
	case expr.BoolVarFormula:
		return b.boolAtom(x.Name)
	case expr.CompareFormula:
		return b.encodeCompare(x)
	case expr.NotFormula:
		return -b.encode(x.X)
	case expr.AndFormula:
		return b.encodeAnd(x.Args)
	case expr.OrFormula:
		return b.encodeOr(x.Args)
	case expr.ImpliesFormula:
		la := b.encode(x.A)
		lb := b.encode(x.B)
		return b.encodeOr2(-la, lb)
	case expr.IfFormula:
		cond := x.Cond
		composite := expr.OrFormula{Args: []expr.Formula{
			expr.AndFormula{Args: []expr.Formula{cond, x.Then}},
			expr.AndFormula{Args: []expr.Formula{expr.NotFormula{X: cond}, x.Else}},
		}}
		return b.encode(composite)
	default:
		panic(fmt.Sprintf("solver: unsupported formula node %T", f))
	}
}

// encodeCompare splits == into <= and >= rather than creating a native
// equality atom, so the DPLL search and the theory solver both only ever
// see the four ordering relations plus equality-as-conjunction; this keeps
// atom negation uniform (not(<=) is >, not(>=) is <).
func (b *cnfBuilder) encodeCompare(c expr.CompareFormula) int {
	if c.Op != "==" {
		return b.predAtom(c.Op, c.X, c.Y)
	}
	le := b.predAtom("<=", c.X, c.Y)
	ge := b.predAtom(">=", c.X, c.Y)
	return b.encodeAndLits([]int{le, ge})
}

func (b *cnfBuilder) encodeAndLits(lits []int) int {
	z := b.fresh()
	for _, l := range lits {
		b.addClause(-z, l)
	}
	neg := make([]int, 0, len(lits)+1)
	neg = append(neg, z)
	for _, l := range lits {
		neg = append(neg, -l)
	}
	b.addClause(neg...)
	return z
}

func (b *cnfBuilder) encodeAnd(args []expr.Formula) int {
	lits := make([]int, len(args))
	for i, a := range args {
		lits[i] = b.encode(a)
	}
	return b.encodeAndLits(lits)
}

func (b *cnfBuilder) encodeOr(args []expr.Formula) int {
	lits := make([]int, len(args))
	for i, a := range args {
		lits[i] = b.encode(a)
	}
	z := b.fresh()
	for _, l := range lits {
		b.addClause(-l, z)
	}
	pos := make([]int, 0, len(lits)+1)
	pos = append(pos, -z)
	pos = append(pos, lits...)
	b.addClause(pos...)
	return z
}

func (b *cnfBuilder) encodeOr2(l1, l2 int) int {
	z := b.fresh()
	b.addClause(-l1, z)
	b.addClause(-l2, z)
	b.addClause(-z, l1, l2)
	return z
}

// buildCNF purifies and Tseitin-encodes f, asserting it true (unit clause
// on the top-level literal), and returns the builder holding the full atom
// table and clause set.
func buildCNF(f expr.Formula) *cnfBuilder {
	b := newCNFBuilder()
	top := b.encode(purify(f))
	b.addClause(top)
	return b
}
