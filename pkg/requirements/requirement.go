package requirements

import (
	"regexp"
	"slices"
	"strings"

	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/pep440"
)

var (
	nameRE      = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?`)
	fullNameRE  = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?$`)
	normalizeRE = regexp.MustCompile(`[-_.]+`)
	eggRE       = regexp.MustCompile(`[#&]egg=([A-Za-z0-9._-]+)`)
)

// NormalizeName returns the PEP 503 canonical form of a distribution name:
// lowercase with runs of "-", "_" and "." collapsed to a single "-".
func NormalizeName(name string) string {
	return normalizeRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// Requirement is one dependency specifier: a distribution name with optional
// extras, version constraint or URL, and environment marker.
type Requirement struct {
	Name       string              `json:"name"`
	Extras     []string            `json:"extras,omitempty"`
	Specifiers pep440.SpecifierSet `json:"constraint,omitempty"`
	URL        string              `json:"url,omitempty"`
	Marker     *marker.Marker      `json:"marker,omitempty"`
	Hashes     []string            `json:"hashes,omitempty"`
	Editable   bool                `json:"editable,omitempty"`
	Source     string              `json:"source,omitempty"` // file the line came from
	Line       int                 `json:"line,omitempty"`
	Raw        string              `json:"-"`
}

// Key returns the normalized name used to compare requirements.
func (r *Requirement) Key() string { return NormalizeName(r.Name) }

// Constrained reports whether the requirement restricts versions.
func (r *Requirement) Constrained() bool { return len(r.Specifiers) > 0 || r.URL != "" }

// Applies reports whether the requirement's marker holds in env.
// Requirements without a marker always apply.
func (r *Requirement) Applies(env marker.Environment) (bool, error) {
	return r.Marker.Evaluate(env)
}

// String returns the canonical PEP 508 form.
func (r *Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		extras := slices.Clone(r.Extras)
		slices.Sort(extras)
		b.WriteByte('[')
		b.WriteString(strings.Join(extras, ","))
		b.WriteByte(']')
	}
	switch {
	case r.URL != "" && r.Name == "":
		b.WriteString(r.URL)
	case r.URL != "":
		b.WriteString(" @ ")
		b.WriteString(r.URL)
	default:
		b.WriteString(r.Specifiers.String())
	}
	if r.Marker != nil {
		if r.URL != "" {
			b.WriteByte(' ')
		}
		b.WriteString("; ")
		b.WriteString(r.Marker.String())
	}
	return b.String()
}

// ParseRequirement parses a PEP 508 dependency specifier:
//
//	name [extras] (version-spec | "@" url) [";" marker]
func ParseRequirement(s string) (*Requirement, error) {
	raw := s
	s = strings.TrimSpace(s)
	name := nameRE.FindString(s)
	if name == "" {
		return nil, errs.New(errs.ErrCodeInvalidSpecifier, "expected package name at start of %q", raw)
	}
	r := &Requirement{Name: name, Raw: raw}
	rest := strings.TrimSpace(s[len(name):])

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, errs.New(errs.ErrCodeInvalidSpecifier, "unclosed extras in %q", raw)
		}
		for _, e := range strings.Split(rest[1:end], ",") {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			if !fullNameRE.MatchString(e) {
				return nil, errs.New(errs.ErrCodeInvalidSpecifier, "invalid extra %q in %q", e, raw)
			}
			r.Extras = append(r.Extras, e)
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	var markerText string
	hasMarker := false
	if strings.HasPrefix(rest, "@") {
		url, m, ok := splitURLMarker(strings.TrimSpace(rest[1:]))
		if url == "" {
			return nil, errs.New(errs.ErrCodeInvalidSpecifier, "missing URL after @ in %q", raw)
		}
		r.URL, markerText, hasMarker = url, m, ok
	} else {
		spec, m, ok := strings.Cut(rest, ";")
		markerText, hasMarker = m, ok
		if spec = strings.TrimSpace(spec); spec != "" {
			if !strings.HasPrefix(spec, "(") && !strings.ContainsAny(spec[:1], "<>=!~") {
				return nil, errs.New(errs.ErrCodeInvalidSpecifier, "unexpected %q after package name in %q", spec, raw)
			}
			set, err := pep440.ParseSpecifierSet(spec)
			if err != nil {
				return nil, err
			}
			r.Specifiers = set
		}
	}

	if hasMarker {
		m, err := marker.Parse(strings.TrimSpace(markerText))
		if err != nil {
			return nil, err
		}
		r.Marker = m
	}
	return r, nil
}

// MustParseRequirement is like [ParseRequirement] but panics on error.
func MustParseRequirement(s string) *Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

// splitURLMarker separates "url ; marker". A semicolon only starts a marker
// when preceded by whitespace, since URLs may contain semicolons.
func splitURLMarker(s string) (url, markerText string, ok bool) {
	for i := 1; i < len(s); i++ {
		if s[i] == ';' && (s[i-1] == ' ' || s[i-1] == '\t') {
			return strings.TrimSpace(s[:i]), s[i+1:], true
		}
	}
	return strings.TrimSpace(s), "", false
}

// looksLikeURL reports whether a requirement line is a bare URL or path
// rather than a named specifier.
func looksLikeURL(s string) bool {
	if strings.Contains(s, " @ ") || strings.Contains(s, "@ ") {
		return false
	}
	switch {
	case strings.Contains(s, "://"),
		strings.HasPrefix(s, "."),
		strings.HasPrefix(s, "/"),
		strings.HasPrefix(s, "file:"):
		return true
	}
	base, _, _ := strings.Cut(s, ";")
	base = strings.TrimSpace(base)
	for _, ext := range []string{".whl", ".tar.gz", ".zip", ".tar.bz2", ".tgz"} {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

// parseURLRequirement handles bare URL and path lines. The name comes from
// an #egg= fragment when present.
func parseURLRequirement(s string) (*Requirement, error) {
	url, markerText, hasMarker := splitURLMarker(s)
	r := &Requirement{URL: url, Raw: s}
	if m := eggRE.FindStringSubmatch(url); m != nil {
		r.Name = m[1]
	}
	if hasMarker {
		m, err := marker.Parse(strings.TrimSpace(markerText))
		if err != nil {
			return nil, err
		}
		r.Marker = m
	}
	return r, nil
}
