package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed type string.
type ParseError struct {
	Input   string
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse type %q at offset %d: %s", e.Input, e.Offset, e.Message)
}

// Parse reads the compact notation produced by Type.String.
//
//	type    := primary { "*" | "@" PLACEMENT }
//	primary := "{" type "}" "@" PLACEMENT
//	         | "<" [ field { "," field } ] ">"
//	         | "(" [ type ] "->" type ")"
//	         | "placement"
//	         | DTYPE [ "[" ( "*" | dim { "," dim } ) "]" ]
//	field   := [ IDENT "=" ] type
//	dim     := INT | "?"
func Parse(s string) (Type, error) {
	p := &parser{src: s}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level fixtures.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.src, Offset: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) expect(tok string) error {
	if !p.accept(tok) {
		if p.pos >= len(p.src) {
			return p.errorf("expected %q, got end of input", tok)
		}
		return p.errorf("expected %q", tok)
	}
	return nil
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) parseType() (Type, error) {
	t, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			t = Sequence(t)
		case '@':
			p.pos++
			pl, err := p.parsePlacement()
			if err != nil {
				return nil, err
			}
			t = &FederatedType{Member: t, Placement: pl, AllEqual: true}
		default:
			return t, nil
		}
	}
}

func (p *parser) parsePlacement() (Placement, error) {
	start := p.pos
	pl := Placement(p.ident())
	if !pl.IsValid() {
		p.pos = start
		return "", p.errorf("unknown placement %q", string(pl))
	}
	return pl, nil
}

func (p *parser) parsePrimary() (Type, error) {
	switch p.peek() {
	case '{':
		p.pos++
		member, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect("}"); err != nil {
			return nil, err
		}
		if err := p.expect("@"); err != nil {
			return nil, err
		}
		pl, err := p.parsePlacement()
		if err != nil {
			return nil, err
		}
		return &FederatedType{Member: member, Placement: pl}, nil
	case '<':
		p.pos++
		return p.parseStruct()
	case '(':
		p.pos++
		return p.parseFunction()
	case 0:
		return nil, p.errorf("unexpected end of input")
	}

	start := p.pos
	name := p.ident()
	if name == "" {
		return nil, p.errorf("unexpected %q", string(p.src[p.pos]))
	}
	if name == "placement" {
		return &PlacementType{}, nil
	}
	dtype := DType(name)
	if !dtype.IsValid() {
		p.pos = start
		return nil, p.errorf("unknown dtype %q", name)
	}
	if p.peek() != '[' {
		return Tensor(dtype), nil
	}
	p.pos++
	if p.accept("*") {
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return TensorOfUnknownRank(dtype), nil
	}
	var shape []int
	for {
		dim, err := p.parseDim()
		if err != nil {
			return nil, err
		}
		shape = append(shape, dim)
		if p.accept(",") {
			continue
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return &TensorType{DType: dtype, Shape: shape}, nil
	}
}

func (p *parser) parseDim() (int, error) {
	if p.accept("?") {
		return UnknownDim, nil
	}
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("expected dimension")
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		p.pos = start
		return 0, p.errorf("invalid dimension: %v", err)
	}
	return n, nil
}

func (p *parser) parseStruct() (Type, error) {
	st := &StructType{}
	if p.accept(">") {
		return st, nil
	}
	for {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		st.Fields = append(st.Fields, f)
		if p.accept(",") {
			continue
		}
		if err := p.expect(">"); err != nil {
			return nil, err
		}
		return st, nil
	}
}

func (p *parser) parseField() (Field, error) {
	p.skipSpace()
	save := p.pos
	if name := p.ident(); name != "" && p.accept("=") {
		t, err := p.parseType()
		if err != nil {
			return Field{}, err
		}
		return Field{Name: name, Type: t}, nil
	}
	p.pos = save
	t, err := p.parseType()
	if err != nil {
		return Field{}, err
	}
	return Field{Type: t}, nil
}

func (p *parser) parseFunction() (Type, error) {
	var param Type
	if !p.accept("->") {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		param = t
		if err := p.expect("->"); err != nil {
			return nil, err
		}
	}
	result, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return &FunctionType{Parameter: param, Result: result}, nil
}
