package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// Template is a parsed string that may embed expressions
	Template struct {
		parts  []part
		single bool
	}

	// Expr is one parsed expression: a path below $
	Expr struct {
		Source string
		Path   []Segment
	}

	// Segment is one step of an expression path
	Segment struct {
		Key     string
		Index   int
		IsIndex bool
	}

	part struct {
		expr    *Expr
		literal string
	}
)

const (
	OpenMarker  = "<%"
	CloseMarker = "%>"
)

// IsQuery reports whether s embeds at least one expression
func IsQuery(s string) bool {
	return strings.Contains(s, OpenMarker)
}

// ParseTemplate splits s into literal text and expressions
func ParseTemplate(s string) (*Template, error) {
	t := &Template{}
	rest := s
	exprs := 0
	for {
		start := strings.Index(rest, OpenMarker)
		if start < 0 {
			if rest != "" {
				t.parts = append(t.parts, part{literal: rest})
			}
			break
		}
		if start > 0 {
			t.parts = append(t.parts, part{literal: rest[:start]})
		}
		rest = rest[start+len(OpenMarker):]
		end := strings.Index(rest, CloseMarker)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated expression in %q",
				api.ErrQuerySyntax, s,
			)
		}
		e, err := ParseExpr(rest[:end])
		if err != nil {
			return nil, err
		}
		t.parts = append(t.parts, part{expr: e})
		exprs++
		rest = rest[end+len(CloseMarker):]
	}
	t.single = exprs == 1 && !t.hasText()
	return t, nil
}

// ParseExpr parses the body of one expression, without markers
func ParseExpr(src string) (*Expr, error) {
	p := &exprParser{src: strings.TrimSpace(src)}
	segs, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", api.ErrQuerySyntax, src, err)
	}
	return &Expr{Source: p.src, Path: segs}, nil
}

// Single reports whether the template is exactly one expression, in which
// case it evaluates to the raw value rather than a string
func (t *Template) Single() bool {
	return t.single
}

// Exprs returns the expressions embedded in the template
func (t *Template) Exprs() []*Expr {
	var res []*Expr
	for _, p := range t.parts {
		if p.expr != nil {
			res = append(res, p.expr)
		}
	}
	return res
}

func (t *Template) hasText() bool {
	for _, p := range t.parts {
		if p.expr == nil && strings.TrimSpace(p.literal) != "" {
			return true
		}
	}
	return false
}

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return "." + s.Key
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) parse() ([]Segment, error) {
	if !strings.HasPrefix(p.src, "$") {
		return nil, fmt.Errorf("expression must start with $")
	}
	p.pos = 1
	var segs []Segment
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return segs, nil
		}
		var seg Segment
		var err error
		switch p.src[p.pos] {
		case '.':
			p.pos++
			seg, err = p.ident()
		case '[':
			p.pos++
			seg, err = p.bracket()
		default:
			err = fmt.Errorf("unexpected %q at %d", p.src[p.pos], p.pos)
		}
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
}

func (p *exprParser) ident() (Segment, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return Segment{}, fmt.Errorf("expected name at %d", start)
	}
	return Segment{Key: p.src[start:p.pos]}, nil
}

func (p *exprParser) bracket() (Segment, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return Segment{}, fmt.Errorf("unterminated [")
	}
	var seg Segment
	switch q := p.src[p.pos]; q {
	case '"', '\'':
		end := strings.IndexByte(p.src[p.pos+1:], q)
		if end < 0 {
			return Segment{}, fmt.Errorf("unterminated string at %d", p.pos)
		}
		seg = Segment{Key: p.src[p.pos+1 : p.pos+1+end]}
		p.pos += end + 2
	default:
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		idx, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return Segment{}, fmt.Errorf("expected index at %d", start)
		}
		seg = Segment{Index: idx, IsIndex: true}
	}
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != ']' {
		return Segment{}, fmt.Errorf("expected ] at %d", p.pos)
	}
	p.pos++
	return seg, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
