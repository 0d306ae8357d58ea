package python

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/reqlint/pkg/deps"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/pep440"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

// Pyproject reads pyproject.toml. PEP 621 [project] tables are read as is;
// Poetry's [tool.poetry.dependencies] table is translated to PEP 508,
// including caret and tilde constraints.
type Pyproject struct {
	resolver deps.Resolver
}

func (p *Pyproject) Type() string              { return "pyproject.toml" }
func (p *Pyproject) IncludesTransitive() bool  { return p.resolver != nil }
func (p *Pyproject) Supports(name string) bool { return name == "pyproject.toml" }

type pyprojectFile struct {
	Project struct {
		Name                 string              `toml:"name"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		RequiresPython       string              `toml:"requires-python"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name         string                 `toml:"name"`
			Dependencies map[string]any         `toml:"dependencies"`
			Extras       map[string][]string    `toml:"extras"`
			Group        map[string]poetryGroup `toml:"group"`
			DevDeps      map[string]any         `toml:"dev-dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

type poetryGroup struct {
	Dependencies map[string]any `toml:"dependencies"`
}

func (p *Pyproject) Parse(path string, opts deps.Options) (*deps.ManifestResult, error) {
	doc, err := readPyproject(path)
	if err != nil {
		return nil, err
	}

	res := &deps.ManifestResult{
		Type:               p.Type(),
		IncludesTransitive: p.resolver != nil,
		RootPackage:        doc.Project.Name,
		PythonRequires:     doc.Project.RequiresPython,
		Optional:           map[string][]*requirements.Requirement{},
	}
	if res.RootPackage == "" {
		res.RootPackage = doc.Tool.Poetry.Name
	}

	var errL []error
	seen := map[string]bool{}
	for _, s := range doc.Project.Dependencies {
		req, err := requirements.ParseRequirement(s)
		if err != nil {
			errL = append(errL, err)
			continue
		}
		seen[req.Key()] = true
		res.Requirements = append(res.Requirements, req)
	}
	for extra, list := range doc.Project.OptionalDependencies {
		for _, s := range list {
			req, err := requirements.ParseRequirement(s)
			if err != nil {
				errL = append(errL, err)
				continue
			}
			res.Optional[extra] = append(res.Optional[extra], req)
		}
	}

	optionalOf := map[string][]string{}
	for extra, names := range doc.Tool.Poetry.Extras {
		for _, n := range names {
			optionalOf[normalize(n)] = append(optionalOf[normalize(n)], extra)
		}
	}
	poetryDeps, pyReq, err := poetryRequirements(filepath.Dir(path), doc.Tool.Poetry.Dependencies)
	errL = append(errL, err)
	if res.PythonRequires == "" {
		res.PythonRequires = pyReq
	}
	for _, d := range poetryDeps {
		key := d.req.Key()
		switch {
		case d.optional:
			for _, extra := range optionalOf[key] {
				res.Optional[extra] = append(res.Optional[extra], d.req)
			}
		case !seen[key]:
			seen[key] = true
			res.Requirements = append(res.Requirements, d.req)
		}
	}
	groups := doc.Tool.Poetry.Group
	if len(doc.Tool.Poetry.DevDeps) > 0 {
		groups = mergeGroup(groups, "dev", doc.Tool.Poetry.DevDeps)
	}
	for name, grp := range groups {
		list, _, err := poetryRequirements(filepath.Dir(path), grp.Dependencies)
		errL = append(errL, err)
		for _, d := range list {
			res.Optional["group:"+name] = append(res.Optional["group:"+name], d.req)
		}
	}

	if err := errors.Join(errL...); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "%s", path)
	}
	res.Graph, err = graph(res.RootPackage, res.Requirements, p.resolver, opts)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func mergeGroup(groups map[string]poetryGroup, name string, extra map[string]any) map[string]poetryGroup {
	out := make(map[string]poetryGroup, len(groups)+1)
	for k, v := range groups {
		out[k] = v
	}
	g := out[name]
	if g.Dependencies == nil {
		g.Dependencies = map[string]any{}
	}
	for k, v := range extra {
		g.Dependencies[k] = v
	}
	out[name] = g
	return out
}

func readPyproject(path string) (*pyprojectFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "pyproject.toml %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "read %s", path)
	}
	var doc pyprojectFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	return &doc, nil
}

func extractPyprojectName(dir string) string {
	doc, err := readPyproject(filepath.Join(dir, "pyproject.toml"))
	if err != nil {
		return ""
	}
	if doc.Tool.Poetry.Name != "" {
		return doc.Tool.Poetry.Name
	}
	return doc.Project.Name
}

type poetryDep struct {
	req      *requirements.Requirement
	optional bool
}

// poetryRequirements converts a Poetry dependency table. The "python" entry
// is returned separately as a PEP 440 specifier string.
func poetryRequirements(dir string, table map[string]any) ([]poetryDep, string, error) {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		out     []poetryDep
		pyReq   string
		errList []error
	)
	for _, name := range names {
		if strings.EqualFold(name, "python") {
			if s, ok := table[name].(string); ok {
				spec, err := poetryConstraint(s)
				if err != nil {
					errList = append(errList, fmt.Errorf("python: %w", err))
				}
				pyReq = spec
			}
			continue
		}
		var entries []any
		switch v := table[name].(type) {
		case []any:
			entries = v
		case []map[string]any:
			for _, m := range v {
				entries = append(entries, m)
			}
		default:
			entries = []any{v}
		}
		for _, e := range entries {
			d, err := poetryEntry(dir, name, e)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s: %w", name, err))
				continue
			}
			out = append(out, d)
		}
	}
	return out, pyReq, errors.Join(errList...)
}

func poetryEntry(dir, name string, v any) (poetryDep, error) {
	var (
		d       poetryDep
		spec    string
		url     string
		markers []string
		extras  []string
		err     error
	)
	switch t := v.(type) {
	case string:
		if spec, err = poetryConstraint(t); err != nil {
			return d, err
		}
	case map[string]any:
		if s, ok := t["version"].(string); ok {
			if spec, err = poetryConstraint(s); err != nil {
				return d, err
			}
		}
		switch {
		case t["git"] != nil:
			url = "git+" + fmt.Sprint(t["git"])
			for _, ref := range []string{"rev", "tag", "branch"} {
				if r, ok := t[ref].(string); ok {
					url += "@" + r
					break
				}
			}
		case t["url"] != nil:
			url = fmt.Sprint(t["url"])
		case t["path"] != nil:
			abs, aerr := filepath.Abs(filepath.Join(dir, fmt.Sprint(t["path"])))
			if aerr != nil {
				return d, aerr
			}
			url = "file://" + filepath.ToSlash(abs)
		}
		if m, ok := t["markers"].(string); ok && m != "" {
			markers = append(markers, "("+m+")")
		}
		if py, ok := t["python"].(string); ok {
			m, err := pythonMarker(py)
			if err != nil {
				return d, err
			}
			if m != "" {
				markers = append(markers, m)
			}
		}
		if list, ok := t["extras"].([]any); ok {
			for _, e := range list {
				extras = append(extras, fmt.Sprint(e))
			}
		}
		d.optional, _ = t["optional"].(bool)
	default:
		return d, errs.New(errs.ErrCodeInvalidManifest, "unsupported dependency value %T", v)
	}

	var b strings.Builder
	b.WriteString(name)
	if len(extras) > 0 {
		b.WriteString("[" + strings.Join(extras, ",") + "]")
	}
	if url != "" {
		b.WriteString(" @ " + url)
		if len(markers) > 0 {
			b.WriteString(" ")
		}
	} else {
		b.WriteString(spec)
	}
	if len(markers) > 0 {
		b.WriteString("; " + strings.Join(markers, " and "))
	}
	d.req, err = requirements.ParseRequirement(b.String())
	return d, err
}

// poetryConstraint translates Poetry's constraint syntax to a PEP 440
// specifier set string. "^1.2.3" becomes ">=1.2.3,<2", "~1.2" becomes
// ">=1.2,<1.3", a bare version becomes "==" and "*" means no constraint.
// Unions ("||") have no PEP 440 equivalent and are rejected.
func poetryConstraint(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return "", nil
	}
	if strings.Contains(s, "||") {
		return "", errs.New(errs.ErrCodeUnsupported, "constraint union %q", s)
	}
	var parts []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' }) {
		for _, p := range splitSpaced(f) {
			out, err := poetryPart(p)
			if err != nil {
				return "", err
			}
			parts = append(parts, out...)
		}
	}
	spec := strings.Join(parts, ",")
	if _, err := pep440.ParseSpecifierSet(spec); err != nil {
		return "", err
	}
	return spec, nil
}

// splitSpaced splits "> 1.0 < 2.0" style conjunctions while keeping an
// operator attached to its version.
func splitSpaced(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		if len(out) > 0 && isOperator(out[len(out)-1]) {
			out[len(out)-1] += f
			continue
		}
		out = append(out, f)
	}
	return out
}

func isOperator(s string) bool {
	return slices.Contains([]string{"^", "~", "~=", "==", "!=", "<=", ">=", "<", ">", "=", "==="}, s)
}

func poetryPart(p string) ([]string, error) {
	switch {
	case strings.HasPrefix(p, "^"):
		v, err := pep440.Parse(p[1:])
		if err != nil {
			return nil, err
		}
		return []string{">=" + v.String(), "<" + caretUpper(v.Release)}, nil
	case strings.HasPrefix(p, "~") && !strings.HasPrefix(p, "~="):
		v, err := pep440.Parse(p[1:])
		if err != nil {
			return nil, err
		}
		return []string{">=" + v.String(), "<" + tildeUpper(v.Release)}, nil
	case strings.HasPrefix(p, "==") || strings.HasPrefix(p, "!=") || strings.HasPrefix(p, ">") ||
		strings.HasPrefix(p, "<") || strings.HasPrefix(p, "~="):
		return []string{p}, nil
	case strings.HasPrefix(p, "="):
		return []string{"=" + p}, nil
	default:
		return []string{"==" + p}, nil
	}
}

// caretUpper bumps the left-most non-zero release component.
func caretUpper(release []int) string {
	i := 0
	for i < len(release)-1 && release[i] == 0 {
		i++
	}
	return bump(release, i)
}

// tildeUpper bumps the minor component, or the major one when only the
// major is given.
func tildeUpper(release []int) string {
	if len(release) >= 2 {
		return bump(release, 1)
	}
	return bump(release, 0)
}

func bump(release []int, i int) string {
	parts := make([]string, i+1)
	for j := 0; j < i; j++ {
		parts[j] = strconv.Itoa(release[j])
	}
	parts[i] = strconv.Itoa(release[i] + 1)
	return strings.Join(parts, ".")
}

// pythonMarker turns a Poetry "python" field into a python_version marker.
func pythonMarker(constraint string) (string, error) {
	spec, err := poetryConstraint(constraint)
	if err != nil || spec == "" {
		return "", err
	}
	set, err := pep440.ParseSpecifierSet(spec)
	if err != nil {
		return "", err
	}
	clauses := make([]string, len(set))
	for i, s := range set {
		clauses[i] = fmt.Sprintf("python_version %s %q", s.Op, s.Text)
	}
	return strings.Join(clauses, " and "), nil
}
