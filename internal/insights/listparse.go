package insights

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ParseInsightList reads a cell holding a list of notes, written either as a
// JSON array or as a Python list literal (['a', "b"]). Non-string items are
// kept in their literal form. ok is false when the value is not a list.
func ParseInsightList(value string) ([]string, bool) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "[") || !strings.HasSuffix(value, "]") {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal([]byte(value), &items); err == nil {
		out := make([]string, 0, len(items))
		for _, it := range items {
			switch v := it.(type) {
			case string:
				out = append(out, v)
			default:
				b, _ := json.Marshal(v)
				out = append(out, string(b))
			}
		}
		return out, true
	}
	out, err := parsePythonList(value)
	if err != nil {
		return nil, false
	}
	return out, true
}

// parsePythonList handles the repr of a flat list of strings and scalars.
func parsePythonList(s string) ([]string, error) {
	p := &listParser{src: s}
	if !p.consume('[') {
		return nil, fmt.Errorf("expected '['")
	}
	out := []string{}
	for {
		p.skipSpace()
		if p.consume(']') {
			break
		}
		item, err := p.item()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(']') {
			break
		}
		return nil, fmt.Errorf("unexpected %q at %d", p.peek(), p.pos)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("trailing input at %d", p.pos)
	}
	return out, nil
}

type listParser struct {
	src string
	pos int
}

func (p *listParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *listParser) consume(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *listParser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *listParser) item() (string, error) {
	switch c := p.peek(); c {
	case '\'', '"':
		return p.quoted(c)
	case 0:
		return "", fmt.Errorf("unterminated list")
	default:
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] != ',' && p.src[p.pos] != ']' {
			p.pos++
		}
		lit := strings.TrimSpace(p.src[start:p.pos])
		if lit == "" {
			return "", fmt.Errorf("empty item at %d", start)
		}
		return lit, nil
	}
}

func (p *listParser) quoted(q byte) (string, error) {
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == q:
			p.pos++
			return b.String(), nil
		case c == '\\' && p.pos+1 < len(p.src):
			p.pos++
			switch e := p.src[p.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(e)
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
			p.pos++
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
	return "", fmt.Errorf("unterminated string")
}
