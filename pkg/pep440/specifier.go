package pep440

import (
	"slices"
	"strings"

	errs "github.com/matzehuels/reqlint/pkg/errors"
)

// Operator is a version comparison operator.
type Operator string

// Supported operators, longest first so that prefix scanning is unambiguous.
const (
	OpArbitrary  Operator = "==="
	OpCompatible Operator = "~="
	OpEqual      Operator = "=="
	OpNotEqual   Operator = "!="
	OpLessEq     Operator = "<="
	OpGreaterEq  Operator = ">="
	OpLess       Operator = "<"
	OpGreater    Operator = ">"
)

var operators = []Operator{
	OpArbitrary, OpCompatible, OpEqual, OpNotEqual,
	OpLessEq, OpGreaterEq, OpLess, OpGreater,
}

// Specifier is a single version clause such as ">=2.0" or "==1.4.*".
type Specifier struct {
	Op       Operator
	Version  Version
	Text     string // version text as written, used by ===
	Wildcard bool
}

// ParseSpecifier parses one clause. Whitespace between the operator and the
// version is allowed.
func ParseSpecifier(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	var op Operator
	for _, o := range operators {
		if strings.HasPrefix(s, string(o)) {
			op = o
			break
		}
	}
	if op == "" {
		return Specifier{}, errs.New(errs.ErrCodeInvalidSpecifier, "missing comparison operator in %q", s)
	}
	text := strings.TrimSpace(s[len(op):])
	if text == "" {
		return Specifier{}, errs.New(errs.ErrCodeInvalidSpecifier, "missing version in %q", s)
	}

	spec := Specifier{Op: op, Text: text}
	if op == OpArbitrary {
		// === compares strings; a version is parsed only for analysis.
		if v, err := Parse(text); err == nil {
			spec.Version = v
		}
		return spec, nil
	}

	if strings.HasSuffix(text, ".*") {
		if op != OpEqual && op != OpNotEqual {
			return Specifier{}, errs.New(errs.ErrCodeInvalidSpecifier, "wildcard not allowed with %s in %q", op, s)
		}
		spec.Wildcard = true
		text = strings.TrimSuffix(text, ".*")
	}

	v, err := Parse(text)
	if err != nil {
		return Specifier{}, errs.Wrap(errs.ErrCodeInvalidSpecifier, err, "invalid version in %q", s)
	}
	if spec.Wildcard && (v.hasPre || v.hasPost || v.hasDev || v.HasLocal()) {
		return Specifier{}, errs.New(errs.ErrCodeInvalidSpecifier, "wildcard must follow a release version in %q", s)
	}
	if v.HasLocal() && op != OpEqual && op != OpNotEqual {
		return Specifier{}, errs.New(errs.ErrCodeInvalidSpecifier, "local version not allowed with %s in %q", op, s)
	}
	if op == OpCompatible && len(v.Release) < 2 {
		return Specifier{}, errs.New(errs.ErrCodeInvalidSpecifier, "%s requires at least two release segments in %q", op, s)
	}
	spec.Version = v
	return spec, nil
}

// String returns the clause in canonical form.
func (s Specifier) String() string {
	if s.Op == OpArbitrary {
		return string(s.Op) + s.Text
	}
	v := s.Version.String()
	if s.Wildcard {
		v += ".*"
	}
	return string(s.Op) + v
}

// Prerelease reports whether the clause explicitly names a pre-release, which
// opts a specifier set into matching pre-releases.
func (s Specifier) Prerelease() bool {
	switch s.Op {
	case OpEqual, OpArbitrary, OpGreaterEq, OpLessEq, OpCompatible, OpLess, OpGreater:
		return s.Version.Release != nil && s.Version.IsPrerelease()
	}
	return false
}

// Contains reports whether v satisfies the clause, ignoring pre-release
// filtering (see [SpecifierSet.Contains]).
func (s Specifier) Contains(v Version) bool {
	switch s.Op {
	case OpArbitrary:
		return strings.EqualFold(strings.TrimSpace(v.raw), s.Text) || strings.EqualFold(v.String(), s.Text)
	case OpEqual:
		return s.equal(v)
	case OpNotEqual:
		return !s.equal(v)
	case OpCompatible:
		prefix := s.Version.Release[:len(s.Version.Release)-1]
		return Compare(v.Public(), s.Version) >= 0 && prefixMatch(v, s.Version.Epoch, prefix)
	case OpLessEq:
		return Compare(v.Public(), s.Version) <= 0
	case OpGreaterEq:
		return Compare(v.Public(), s.Version) >= 0
	case OpLess:
		if Compare(v.Public(), s.Version) >= 0 {
			return false
		}
		if !s.Version.IsPrerelease() && v.IsPrerelease() && Compare(v.Base(), s.Version.Base()) == 0 {
			return false
		}
		return true
	case OpGreater:
		if Compare(v.Public(), s.Version) <= 0 {
			return false
		}
		if !s.Version.IsPostrelease() && v.IsPostrelease() && Compare(v.Base(), s.Version.Base()) == 0 {
			return false
		}
		if v.HasLocal() && Compare(v.Base(), s.Version.Base()) == 0 {
			return false
		}
		return true
	}
	return false
}

func (s Specifier) equal(v Version) bool {
	if s.Wildcard {
		return prefixMatch(v, s.Version.Epoch, s.Version.Release)
	}
	if s.Version.HasLocal() {
		return Compare(v, s.Version) == 0
	}
	return Compare(v.Public(), s.Version) == 0
}

// prefixMatch reports whether v's release, zero-padded, starts with prefix.
func prefixMatch(v Version, epoch int, prefix []int) bool {
	if v.Epoch != epoch {
		return false
	}
	for i, p := range prefix {
		n := 0
		if i < len(v.Release) {
			n = v.Release[i]
		}
		if n != p {
			return false
		}
	}
	return true
}

// SpecifierSet is a conjunction of clauses. The empty set matches every
// final release.
type SpecifierSet []Specifier

// ParseSpecifierSet parses a comma-separated list of clauses. The legacy
// parenthesized form "(>=1.0,<2)" is accepted.
func ParseSpecifierSet(s string) (SpecifierSet, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") {
		if !strings.HasSuffix(s, ")") {
			return nil, errs.New(errs.ErrCodeInvalidSpecifier, "unbalanced parenthesis in %q", s)
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" {
		return nil, nil
	}
	var set SpecifierSet
	for _, part := range strings.Split(s, ",") {
		spec, err := ParseSpecifier(part)
		if err != nil {
			return nil, err
		}
		set = append(set, spec)
	}
	return set, nil
}

// MustParseSpecifierSet is like [ParseSpecifierSet] but panics on error.
func MustParseSpecifierSet(s string) SpecifierSet {
	set, err := ParseSpecifierSet(s)
	if err != nil {
		panic(err)
	}
	return set
}

// String joins the clauses with commas, sorted for stable output.
func (set SpecifierSet) String() string {
	parts := make([]string, len(set))
	for i, s := range set {
		parts[i] = s.String()
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

// Empty reports whether the set has no clauses.
func (set SpecifierSet) Empty() bool { return len(set) == 0 }

// Prerelease reports whether any clause opts into pre-releases.
func (set SpecifierSet) Prerelease() bool {
	return slices.ContainsFunc(set, Specifier.Prerelease)
}

// Contains reports whether v satisfies every clause. Pre-releases only match
// when prereleases is true or a clause names a pre-release.
func (set SpecifierSet) Contains(v Version, prereleases bool) bool {
	if v.IsPrerelease() && !prereleases && !set.Prerelease() {
		return false
	}
	for _, s := range set {
		if !s.Contains(v) {
			return false
		}
	}
	return true
}

// ContainsString parses v and calls [SpecifierSet.Contains]. Unparseable
// versions only match === clauses.
func (set SpecifierSet) ContainsString(v string, prereleases bool) bool {
	ver, err := Parse(v)
	if err != nil {
		for _, s := range set {
			if s.Op != OpArbitrary || !strings.EqualFold(strings.TrimSpace(v), s.Text) {
				return false
			}
		}
		return len(set) > 0
	}
	return set.Contains(ver, prereleases)
}

// Latest returns the highest candidate contained in set.
func Latest(candidates []Version, set SpecifierSet, prereleases bool) (Version, bool) {
	var best Version
	found := false
	for _, c := range candidates {
		if !set.Contains(c, prereleases) {
			continue
		}
		if !found || Compare(c, best) > 0 {
			best, found = c, true
		}
	}
	return best, found
}

// Sort orders versions ascending in place.
func Sort(vs []Version) {
	slices.SortFunc(vs, Compare)
}

// MarshalText implements encoding.TextMarshaler.
func (set SpecifierSet) MarshalText() ([]byte, error) {
	return []byte(set.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (set *SpecifierSet) UnmarshalText(b []byte) error {
	parsed, err := ParseSpecifierSet(string(b))
	if err != nil {
		return err
	}
	*set = parsed
	return nil
}
