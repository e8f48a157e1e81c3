package dsl

import (
	"fmt"
	"strconv"

	"github.com/policyforge/decisionengine/internal/domain/expr"
)

// parser is a straightforward recursive-descent parser over arithmetic and
// comparisons, with named prefix combinators (And/Or/Not/Implies/Sum/If)
// handled as ordinary call expressions. There is no operator for boolean
// conjunction/disjunction/negation in the surface grammar -- the policy DSL
// spells those out as calls, so comparisons sit at the bottom of the
// arithmetic precedence stack rather than interleaving with a boolean one.
type parser struct {
	toks []token
	pos  int
}

// Parse parses a single expression, which must consume the entire input.
func Parse(src string) (expr.Expr, error) {
	lx := newLexer(src)
	toks, err := lx.tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("offset %d: unexpected trailing input %q", p.cur().pos, p.cur().text)
	}
	return e, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (expr.Expr, error) {
	x, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokOp && compareOps[p.cur().text] {
		op := p.advance()
		y, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return expr.NewBinary(op.pos, op.text, x, y), nil
	}
	return x, nil
}

func (p *parser) parseAdditive() (expr.Expr, error) {
	x, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOp && (p.cur().text == "+" || p.cur().text == "-") {
		op := p.advance()
		y, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		x = expr.NewBinary(op.pos, op.text, x, y)
	}
	return x, nil
}

func (p *parser) parseMultiplicative() (expr.Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOp && (p.cur().text == "*" || p.cur().text == "/") {
		op := p.advance()
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = expr.NewBinary(op.pos, op.text, x, y)
	}
	return x, nil
}

func (p *parser) parseUnary() (expr.Expr, error) {
	if p.cur().kind == tokOp && p.cur().text == "-" {
		op := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.NewUnary(op.pos, "-", x), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr.Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokInt:
		p.advance()
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("offset %d: invalid integer literal %q", t.pos, t.text)
		}
		return expr.NewIntLit(t.pos, v), nil
	case tokReal:
		p.advance()
		v, err := parseRealLiteral(t.text)
		if err != nil {
			return nil, fmt.Errorf("offset %d: %v", t.pos, err)
		}
		return expr.NewRealLit(t.pos, v), nil
	case tokLParen:
		p.advance()
		e, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, fmt.Errorf("offset %d: expected ')'", p.cur().pos)
		}
		p.advance()
		return e, nil
	case tokLBracket:
		return p.parseList()
	case tokIdent:
		return p.parseIdentOrCall()
	default:
		return nil, fmt.Errorf("offset %d: unexpected token %q", t.pos, t.text)
	}
}

func (p *parser) parseList() (expr.Expr, error) {
	open := p.advance() // '['
	var items []expr.Expr
	if p.cur().kind != tokRBracket {
		for {
			e, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			items = append(items, e)
			if p.cur().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if p.cur().kind != tokRBracket {
		return nil, fmt.Errorf("offset %d: expected ']'", p.cur().pos)
	}
	p.advance()
	return expr.NewListLit(open.pos, items), nil
}

func (p *parser) parseIdentOrCall() (expr.Expr, error) {
	id := p.advance()
	switch id.text {
	case "True":
		return expr.NewBoolLit(id.pos, true), nil
	case "False":
		return expr.NewBoolLit(id.pos, false), nil
	}
	if p.cur().kind != tokLParen {
		return expr.NewIdent(id.pos, id.text), nil
	}
	p.advance() // '('
	var args []expr.Expr
	if p.cur().kind != tokRParen {
		for {
			e, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if p.cur().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if p.cur().kind != tokRParen {
		return nil, fmt.Errorf("offset %d: expected ')'", p.cur().pos)
	}
	p.advance()
	return expr.NewCall(id.pos, id.text, args), nil
}
