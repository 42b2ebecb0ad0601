package dfilter

import (
	"fmt"

	"github.com/endorses/colorcat/internal/pkg/dissect"
)

// node is an expression tree node
type node interface {
	isNode()
}

type binaryNode struct {
	or          bool
	left, right node
}

type notNode struct {
	inner node
}

// existsNode tests field presence
type existsNode struct {
	field dissect.FieldInfo
}

// compareNode compares every occurrence of a field against a literal
type compareNode struct {
	field dissect.FieldInfo
	op    string
	raw   token
}

func (binaryNode) isNode()  {}
func (notNode) isNode()     {}
func (existsNode) isNode()  {}
func (compareNode) isNode() {}

type parser struct {
	toks   []token
	pos    int
	fields map[string]struct{}
}

func parse(text string) (node, []string, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{toks: toks, fields: make(map[string]struct{})}
	if p.peek().kind == tokEOF {
		return nil, nil, &SyntaxError{Offset: 0, Msg: "empty filter"}
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, nil, &SyntaxError{Offset: t.pos, Msg: fmt.Sprintf("unexpected %s %q", t.kind, t.text)}
	}

	fields := make([]string, 0, len(p.fields))
	for f := range p.fields {
		fields = append(fields, f)
	}
	return n, fields, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{or: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.peek().kind == tokNot {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, &SyntaxError{Offset: closing.pos, Msg: fmt.Sprintf("expected \")\", got %s", closing.kind)}
		}
		return inner, nil
	case tokWord:
		return p.parseTest(t)
	case tokEOF:
		return nil, &SyntaxError{Offset: t.pos, Msg: "unexpected end of filter"}
	default:
		return nil, &SyntaxError{Offset: t.pos, Msg: fmt.Sprintf("unexpected %s %q", t.kind, t.text)}
	}
}

func (p *parser) parseTest(name token) (node, error) {
	fi, ok := dissect.LookupField(name.text)
	if !ok {
		return nil, &SyntaxError{Offset: name.pos, Msg: fmt.Sprintf("%q is neither a field nor a protocol name", name.text)}
	}
	p.fields[fi.Abbrev] = struct{}{}

	if p.peek().kind != tokOp {
		return existsNode{field: fi}, nil
	}
	op := p.next()
	value := p.next()
	if value.kind != tokWord && value.kind != tokString {
		return nil, &SyntaxError{Offset: value.pos, Msg: fmt.Sprintf("expected a value after %q, got %s", op.text, value.kind)}
	}
	return compareNode{field: fi, op: op.text, raw: value}, nil
}
