package token

import (
	"strconv"
	"strings"
)

// Kind distinguishes random-value placeholders from relative timestamps.
type Kind int

const (
	KindRandomValue Kind = iota + 1
	KindRelativeTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindRandomValue:
		return "randomValue"
	case KindRelativeTimestamp:
		return "relativeTimestamp"
	}
	return "unknown"
}

// timestampName is the reserved name of the relative timestamp form.
const timestampName = "timestamp"

// Token is one parsed placeholder.
//
// Args hold literal values: float64 for numbers, string, bool, nil,
// []any for lists and map[string]any for object literals.
type Token struct {
	Kind Kind
	Name string
	Args []any
}

// segment is either literal text or a placeholder.
type segment struct {
	text string
	tok  *Token
}

// expr is a parsed template string.
type expr struct {
	segments []segment
}

// HasPlaceholder reports whether s contains placeholder syntax at all.
func HasPlaceholder(s string) bool {
	return strings.Contains(s, "{{")
}

// Parse returns the placeholders in s in textual order.
func Parse(s string) ([]Token, error) {
	e, err := parse(s)
	if err != nil {
		return nil, err
	}
	var out []Token
	for _, seg := range e.segments {
		if seg.tok != nil {
			out = append(out, *seg.tok)
		}
	}
	return out, nil
}

func parse(s string) (*expr, error) {
	e := &expr{}
	p := &parser{s: s}

	for p.pos < len(s) {
		i := strings.Index(s[p.pos:], "{{")
		if i < 0 {
			e.segments = append(e.segments, segment{text: s[p.pos:]})
			break
		}
		if i > 0 {
			e.segments = append(e.segments, segment{text: s[p.pos : p.pos+i]})
		}
		p.pos += i + 2

		tok, err := p.call()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !strings.HasPrefix(s[p.pos:], "}}") {
			return nil, p.errorf("expected }}")
		}
		p.pos += 2
		e.segments = append(e.segments, segment{tok: tok})
	}
	return e, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) errorf(reason string) error {
	return &SyntaxError{Input: p.s, Pos: p.pos, Reason: reason}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

// call parses `name` or `name(arg, ...)`.
func (p *parser) call() (*Token, error) {
	p.skipSpace()
	name := p.ident()
	if name == "" {
		return nil, p.errorf("expected generator name")
	}

	tok := &Token{Kind: KindRandomValue, Name: name}
	if name == timestampName {
		tok.Kind = KindRelativeTimestamp
	}

	p.skipSpace()
	if p.peek() != '(' {
		return tok, nil
	}
	p.pos++

	args, err := p.list(')')
	if err != nil {
		return nil, err
	}
	tok.Args = args
	return tok, nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		isLetter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if isLetter || (p.pos > start && (isDigit || c == '.')) {
			p.pos++
			continue
		}
		break
	}
	return p.s[start:p.pos]
}

// list parses comma separated values up to and including closer.
func (p *parser) list(closer byte) ([]any, error) {
	var out []any
	for {
		p.skipSpace()
		if p.peek() == closer {
			p.pos++
			return out, nil
		}
		if len(out) > 0 {
			if p.peek() != ',' {
				return nil, p.errorf("expected , or " + string(closer))
			}
			p.pos++
			p.skipSpace()
			if p.peek() == closer {
				p.pos++
				return out, nil
			}
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func (p *parser) value() (any, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '"' || c == '\'':
		return p.str()
	case c == '[':
		p.pos++
		return p.list(']')
	case c == '{':
		p.pos++
		return p.object()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	}

	word := p.ident()
	switch word {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	case "":
		return nil, p.errorf("unexpected character " + strconv.QuoteRune(rune(c)))
	}
	return nil, p.errorf("unexpected identifier " + strconv.Quote(word))
}

func (p *parser) str() (string, error) {
	quote := p.s[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		p.pos++
		switch {
		case c == quote:
			return b.String(), nil
		case c == '\\' && p.pos < len(p.s):
			b.WriteByte(p.s[p.pos])
			p.pos++
		default:
			b.WriteByte(c)
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) number() (float64, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		isExp := (c == 'e' || c == 'E') && p.pos > start
		isSign := (c == '-' || c == '+') && p.pos > start && (p.s[p.pos-1] == 'e' || p.s[p.pos-1] == 'E')
		if (c >= '0' && c <= '9') || c == '.' || isExp || isSign {
			p.pos++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(p.s[start:p.pos], 64)
	if err != nil {
		p.pos = start
		return 0, p.errorf("invalid number")
	}
	return f, nil
}

// object parses `{key: value, ...}` with bare or quoted keys.
func (p *parser) object() (map[string]any, error) {
	out := map[string]any{}
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}
		if len(out) > 0 {
			if p.peek() != ',' {
				return nil, p.errorf("expected , or }")
			}
			p.pos++
			p.skipSpace()
		}

		var key string
		if c := p.peek(); c == '"' || c == '\'' {
			k, err := p.str()
			if err != nil {
				return nil, err
			}
			key = k
		} else {
			key = p.ident()
		}
		if key == "" {
			return nil, p.errorf("expected object key")
		}

		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected :")
		}
		p.pos++

		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
}
