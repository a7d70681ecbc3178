package velocity

import (
	"strings"
)

// expr is an expression inside a directive or method argument list.
type expr interface {
	// eval returns the value and whether it is defined.
	eval(r *renderer) (interface{}, bool, error)
}

type litExpr struct {
	value interface{}
}

type refExpr struct {
	ref *refNode
}

// strExpr is a double-quoted string; its content is itself a template.
type strExpr struct {
	nodes []node
}

type listExpr struct {
	items []expr
}

type rangeExpr struct {
	from, to expr
}

type binExpr struct {
	op          string
	left, right expr
}

type notExpr struct {
	x expr
}

func (p *parser) parseExpr() (expr, error) {
	p.skipWS()
	return p.parseOr()
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWS()
		if !p.consume("||") && !p.consumeWord("or") {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binExpr{op: "||", left: left, right: right}
	}
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWS()
		if !p.consume("&&") && !p.consumeWord("and") {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &binExpr{op: "&&", left: left, right: right}
	}
}

var comparisonOps = []struct {
	sym, word, op string
}{
	{"==", "eq", "=="},
	{"!=", "ne", "!="},
	{"<=", "le", "<="},
	{">=", "ge", ">="},
	{"<", "lt", "<"},
	{">", "gt", ">"},
}

func (p *parser) parseComparison() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	p.skipWS()
	for _, c := range comparisonOps {
		if p.consume(c.sym) || p.consumeWord(c.word) {
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &binExpr{op: c.op, left: left, right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parseUnary() (expr, error) {
	p.skipWS()
	if strings.HasPrefix(p.src[p.pos:], "!") && !strings.HasPrefix(p.src[p.pos:], "!=") {
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{x: x}, nil
	}
	if p.consumeWord("not") {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr, error) {
	p.skipWS()
	if p.pos >= len(p.src) {
		return nil, p.errorf(p.pos, "unexpected end of expression")
	}
	start := p.pos
	c := p.src[p.pos]

	switch {
	case c == '(':
		p.pos++
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipWS()
		if !p.consume(")") {
			return nil, p.errorf(p.pos, "expected ')'")
		}
		return e, nil

	case c == '\'':
		s, err := p.quoted('\'')
		if err != nil {
			return nil, err
		}
		return &litExpr{value: s}, nil

	case c == '"':
		s, err := p.quoted('"')
		if err != nil {
			return nil, err
		}
		root := p.root
		if root == "" {
			root = p.src
		}
		sub := &parser{name: p.name, src: s, base: p.base + start + 1, root: root}
		nodes, _, err := sub.parseNodes()
		if err != nil {
			return nil, err
		}
		return &strExpr{nodes: nodes}, nil

	case c == '-' || (c >= '0' && c <= '9'):
		if n, ok := p.parseInt(); ok {
			return &litExpr{value: n}, nil
		}
		return nil, p.errorf(start, "invalid number")

	case c == '[':
		return p.parseList()

	case c == '$':
		ref, end, ok := p.parseReference(p.pos)
		if !ok {
			return nil, p.errorf(start, "invalid reference")
		}
		p.pos = end
		return &refExpr{ref: ref}, nil
	}

	switch {
	case p.consumeWord("true"):
		return &litExpr{value: true}, nil
	case p.consumeWord("false"):
		return &litExpr{value: false}, nil
	case p.consumeWord("null"):
		return &litExpr{value: nil}, nil
	}
	return nil, p.errorf(start, "unexpected %q in expression", string(c))
}

// quoted reads a string literal; a doubled quote stands for one quote.
func (p *parser) quoted(q byte) (string, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == q {
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == q {
				b.WriteByte(q)
				p.pos += 2
				continue
			}
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", p.errorf(start, "unterminated string")
}

func (p *parser) parseList() (expr, error) {
	p.pos++
	p.skipWS()
	if p.consume("]") {
		return &listExpr{}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipWS()
	if p.consume("..") {
		to, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipWS()
		if !p.consume("]") {
			return nil, p.errorf(p.pos, "expected ']'")
		}
		return &rangeExpr{from: first, to: to}, nil
	}
	items := []expr{first}
	for {
		p.skipWS()
		if p.consume("]") {
			return &listExpr{items: items}, nil
		}
		if !p.consume(",") {
			return nil, p.errorf(p.pos, "expected ',' or ']'")
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

func (e *litExpr) eval(*renderer) (interface{}, bool, error) {
	return e.value, true, nil
}

func (e *refExpr) eval(r *renderer) (interface{}, bool, error) {
	return r.resolve(e.ref)
}

func (e *strExpr) eval(r *renderer) (interface{}, bool, error) {
	sub := &renderer{tmpl: r.tmpl, ctx: r.ctx, logger: r.logger}
	if err := sub.render(e.nodes); err != nil {
		return nil, false, err
	}
	return sub.out.String(), true, nil
}

func (e *listExpr) eval(r *renderer) (interface{}, bool, error) {
	out := make([]interface{}, 0, len(e.items))
	for _, item := range e.items {
		v, _, err := item.eval(r)
		if err != nil {
			return nil, false, err
		}
		out = append(out, v)
	}
	return out, true, nil
}

func (e *rangeExpr) eval(r *renderer) (interface{}, bool, error) {
	fv, fok, err := e.from.eval(r)
	if err != nil {
		return nil, false, err
	}
	tv, tok, err := e.to.eval(r)
	if err != nil {
		return nil, false, err
	}
	from, ok1 := toInt(fv)
	to, ok2 := toInt(tv)
	if !fok || !tok || !ok1 || !ok2 {
		return nil, false, nil
	}
	var out []interface{}
	if from <= to {
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
	} else {
		for i := from; i >= to; i-- {
			out = append(out, i)
		}
	}
	return out, true, nil
}

func (e *notExpr) eval(r *renderer) (interface{}, bool, error) {
	v, ok, err := e.x.eval(r)
	if err != nil {
		return nil, false, err
	}
	return !(ok && truthy(v)), true, nil
}

func (e *binExpr) eval(r *renderer) (interface{}, bool, error) {
	lv, lok, err := e.left.eval(r)
	if err != nil {
		return nil, false, err
	}

	switch e.op {
	case "&&":
		if !(lok && truthy(lv)) {
			return false, true, nil
		}
		rv, rok, err := e.right.eval(r)
		if err != nil {
			return nil, false, err
		}
		return rok && truthy(rv), true, nil
	case "||":
		if lok && truthy(lv) {
			return true, true, nil
		}
		rv, rok, err := e.right.eval(r)
		if err != nil {
			return nil, false, err
		}
		return rok && truthy(rv), true, nil
	}

	rv, rok, err := e.right.eval(r)
	if err != nil {
		return nil, false, err
	}
	if !lok {
		lv = nil
	}
	if !rok {
		rv = nil
	}

	switch e.op {
	case "==":
		return equal(lv, rv), true, nil
	case "!=":
		return !equal(lv, rv), true, nil
	}

	cmp, ok := compare(lv, rv)
	if !ok {
		return false, true, nil
	}
	switch e.op {
	case "<":
		return cmp < 0, true, nil
	case "<=":
		return cmp <= 0, true, nil
	case ">":
		return cmp > 0, true, nil
	default:
		return cmp >= 0, true, nil
	}
}

func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ai, aok := a.(int64)
	bi, bok := b.(int64)
	if aok && bok {
		return ai == bi
	}
	return toString(a) == toString(b)
}

// compare orders numbers numerically and everything else as strings.
func compare(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	ai, aok := toInt(a)
	bi, bok := toInt(b)
	if aok && bok {
		switch {
		case ai < bi:
			return -1, true
		case ai > bi:
			return 1, true
		}
		return 0, true
	}
	return strings.Compare(toString(a), toString(b)), true
}
