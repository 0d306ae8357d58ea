package marker

import (
	"strings"
	"unicode"

	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/pep440"
)

// Marker is a parsed environment marker such as
// `python_version < "3.8" and sys_platform != "win32"`.
//
// A Marker is immutable and safe for concurrent use.
type Marker struct {
	root node
}

type node interface {
	eval(env Environment) (bool, error)
	write(b *strings.Builder, nested bool)
	vars(seen map[string]bool)
}

// Parse parses a PEP 508 marker expression.
func Parse(s string) (*Marker, error) {
	p := &parser{src: s}
	if err := p.tokenize(); err != nil {
		return nil, err
	}
	if len(p.toks) == 0 {
		return nil, errs.New(errs.ErrCodeInvalidMarker, "empty marker")
	}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, p.errorf("unexpected %q", p.toks[p.pos].text)
	}
	return &Marker{root: root}, nil
}

// MustParse is like [Parse] but panics on error.
func MustParse(s string) *Marker {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Evaluate reports whether the marker holds in env. It fails when a
// variable is missing from env or a comparison is undefined, such as an
// ordering comparison between a version and a non-version string with ~=.
func (m *Marker) Evaluate(env Environment) (bool, error) {
	if m == nil {
		return true, nil
	}
	return m.root.eval(env)
}

// String returns the marker in canonical form.
func (m *Marker) String() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	m.root.write(&b, false)
	return b.String()
}

// Variables lists the distinct variables the marker references, in the order
// of the package-level [Variables].
func (m *Marker) Variables() []string {
	if m == nil {
		return nil
	}
	seen := make(map[string]bool)
	m.root.vars(seen)
	var out []string
	for _, v := range variables {
		if seen[v] {
			out = append(out, v)
		}
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (m *Marker) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Marker) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

// =============================================================================
// AST
// =============================================================================

type boolOp struct {
	or    bool
	terms []node
}

func (n *boolOp) eval(env Environment) (bool, error) {
	// Every term is evaluated so that errors surface regardless of order.
	result := !n.or
	var firstErr error
	for _, t := range n.terms {
		ok, err := t.eval(env)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n.or {
			result = result || ok
		} else {
			result = result && ok
		}
	}
	return result, firstErr
}

func (n *boolOp) write(b *strings.Builder, nested bool) {
	sep := " and "
	if n.or {
		sep = " or "
	}
	if nested {
		b.WriteByte('(')
	}
	for i, t := range n.terms {
		if i > 0 {
			b.WriteString(sep)
		}
		_, inner := t.(*boolOp)
		t.write(b, inner)
	}
	if nested {
		b.WriteByte(')')
	}
}

func (n *boolOp) vars(seen map[string]bool) {
	for _, t := range n.terms {
		t.vars(seen)
	}
}

type operand struct {
	name  string // variable name, empty for literals
	value string // literal value
}

func (o operand) resolve(env Environment) (string, error) {
	if o.name == "" {
		return o.value, nil
	}
	return env.lookup(o.name)
}

func (o operand) String() string {
	if o.name != "" {
		return o.name
	}
	if strings.Contains(o.value, `"`) {
		return "'" + o.value + "'"
	}
	return `"` + o.value + `"`
}

type comparison struct {
	lhs, rhs operand
	op       string
}

func (c *comparison) eval(env Environment) (bool, error) {
	lhs, err := c.lhs.resolve(env)
	if err != nil {
		return false, err
	}
	rhs, err := c.rhs.resolve(env)
	if err != nil {
		return false, err
	}
	if c.lhs.name == Extra || c.rhs.name == Extra {
		lhs, rhs = normalizeName(lhs), normalizeName(rhs)
	}
	return compare(lhs, c.op, rhs)
}

func (c *comparison) write(b *strings.Builder, _ bool) {
	b.WriteString(c.lhs.String())
	b.WriteByte(' ')
	b.WriteString(c.op)
	b.WriteByte(' ')
	b.WriteString(c.rhs.String())
}

func (c *comparison) vars(seen map[string]bool) {
	if c.lhs.name != "" {
		seen[c.lhs.name] = true
	}
	if c.rhs.name != "" {
		seen[c.rhs.name] = true
	}
}

// compare applies version semantics when op+rhs is a valid version
// specifier and falls back to string comparison otherwise.
func compare(lhs, op, rhs string) (bool, error) {
	switch op {
	case "in":
		return strings.Contains(rhs, lhs), nil
	case "not in":
		return !strings.Contains(rhs, lhs), nil
	}
	if set, err := pep440.ParseSpecifierSet(op + rhs); err == nil && len(set) == 1 {
		return set.ContainsString(lhs, true), nil
	}
	switch op {
	case "==":
		return lhs == rhs, nil
	case "!=":
		return lhs != rhs, nil
	case "<":
		return lhs < rhs, nil
	case "<=":
		return lhs <= rhs, nil
	case ">":
		return lhs > rhs, nil
	case ">=":
		return lhs >= rhs, nil
	}
	return false, errs.New(errs.ErrCodeInvalidMarker, "undefined comparison %q %s %q", lhs, op, rhs)
}

// normalizeName applies PEP 503 normalization for extra names.
func normalizeName(s string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r == '-' || r == '_' || r == '.' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('-')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// Parser
// =============================================================================

type tokKind int

const (
	tokLParen tokKind = iota
	tokRParen
	tokString
	tokIdent
	tokOp
	tokAnd
	tokOr
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) errorf(format string, args ...any) error {
	return errs.New(errs.ErrCodeInvalidMarker, "invalid marker %q: "+format, append([]any{p.src}, args...)...)
}

var opTokens = []string{"===", "==", "!=", "<=", ">=", "~=", "<", ">"}

func (p *parser) tokenize() error {
	s := p.src
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			p.toks = append(p.toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			p.toks = append(p.toks, token{tokRParen, ")", i})
			i++
		case c == '"' || c == '\'':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return p.errorf("unterminated string at offset %d", i)
			}
			p.toks = append(p.toks, token{tokString, s[i+1 : i+1+end], i})
			i += end + 2
		case isIdentStart(rune(c)):
			j := i
			for j < len(s) && isIdentPart(rune(s[j])) {
				j++
			}
			word := s[i:j]
			switch word {
			case "and":
				p.toks = append(p.toks, token{tokAnd, word, i})
			case "or":
				p.toks = append(p.toks, token{tokOr, word, i})
			case "in":
				p.toks = append(p.toks, token{tokOp, "in", i})
			case "not":
				k := j
				for k < len(s) && (s[k] == ' ' || s[k] == '\t') {
					k++
				}
				if !strings.HasPrefix(s[k:], "in") || (k+2 < len(s) && isIdentPart(rune(s[k+2]))) {
					return p.errorf(`expected "in" after "not" at offset %d`, i)
				}
				p.toks = append(p.toks, token{tokOp, "not in", i})
				j = k + 2
			default:
				p.toks = append(p.toks, token{tokIdent, word, i})
			}
			i = j
		default:
			matched := false
			for _, op := range opTokens {
				if strings.HasPrefix(s[i:], op) {
					p.toks = append(p.toks, token{tokOp, op, i})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return p.errorf("unexpected character %q at offset %d", c, i)
			}
		}
	}
	return nil
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) parseOr() (node, error) {
	return p.parseBool(tokOr, p.parseAnd)
}

func (p *parser) parseAnd() (node, error) {
	return p.parseBool(tokAnd, p.parseAtom)
}

func (p *parser) parseBool(kind tokKind, next func() (node, error)) (node, error) {
	first, err := next()
	if err != nil {
		return nil, err
	}
	terms := []node{first}
	for {
		t, ok := p.peek()
		if !ok || t.kind != kind {
			break
		}
		p.pos++
		n, err := next()
		if err != nil {
			return nil, err
		}
		terms = append(terms, n)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &boolOp{or: kind == tokOr, terms: terms}, nil
}

func (p *parser) parseAtom() (node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, p.errorf("unexpected end of marker")
	}
	if t.kind == tokLParen {
		p.pos++
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t, ok := p.peek(); !ok || t.kind != tokRParen {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return n, nil
	}

	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, ok := p.peek()
	if !ok || op.kind != tokOp {
		return nil, p.errorf("expected comparison operator after %s", lhs)
	}
	p.pos++
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if lhs.name == "" && rhs.name == "" {
		return nil, p.errorf("comparison between two literals")
	}
	return &comparison{lhs: lhs, op: op.text, rhs: rhs}, nil
}

func (p *parser) parseOperand() (operand, error) {
	t, ok := p.peek()
	if !ok {
		return operand{}, p.errorf("unexpected end of marker")
	}
	switch t.kind {
	case tokString:
		p.pos++
		return operand{value: t.text}, nil
	case tokIdent:
		name, known := canonicalVariable(t.text)
		if !known {
			return operand{}, p.errorf("unknown variable %q", t.text)
		}
		p.pos++
		return operand{name: name}, nil
	}
	return operand{}, p.errorf("expected variable or string at offset %d, got %q", t.pos, t.text)
}
