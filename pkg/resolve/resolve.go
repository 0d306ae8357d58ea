// Package resolve pins the requirements of a manifest to concrete releases
// from the package index.
//
// Each requirement that applies in the evaluation environment is pinned to
// the highest index release satisfying every specifier given for its package
// (including -c constraint files). Pre-releases are considered when
// [Options.Prereleases] is set, when the manifest carries --pre, or when a
// specifier names a pre-release itself. Dependencies of the pinned packages
// are not resolved.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/integrations"
	"github.com/matzehuels/reqlint/pkg/integrations/pypi"
	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/pep440"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

// DefaultConcurrency bounds in-flight index requests.
const DefaultConcurrency = 8

// Index looks up package releases. *pypi.Client implements it.
type Index interface {
	FetchPackage(ctx context.Context, name string, refresh bool) (*pypi.PackageInfo, error)
}

// Options configures [Pin].
type Options struct {
	Prereleases bool
	Refresh     bool
	Concurrency int
	Logger      func(string, ...any)
}

// Pinned is one resolved requirement.
type Pinned struct {
	Name    string   `json:"name"`
	Extras  []string `json:"extras,omitempty"`
	Version string   `json:"version,omitempty"`
	URL     string   `json:"url,omitempty"`
	Marker  string   `json:"marker,omitempty"`
	Line    int      `json:"line,omitempty"`
}

// String renders the pin as a requirements line.
func (p Pinned) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	if len(p.Extras) > 0 {
		b.WriteString("[" + strings.Join(p.Extras, ",") + "]")
	}
	switch {
	case p.URL != "":
		b.WriteString(" @ " + p.URL)
		if p.Marker != "" {
			b.WriteString(" ")
		}
	case p.Version != "":
		b.WriteString("==" + p.Version)
	}
	if p.Marker != "" {
		b.WriteString("; " + p.Marker)
	}
	return b.String()
}

// Unresolved records a requirement that could not be pinned.
type Unresolved struct {
	Name   string `json:"name"`
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

// Result holds the pins in manifest order.
type Result struct {
	Environment map[string]string `json:"environment"`
	Pins        []Pinned          `json:"pins"`
	Inactive    []string          `json:"inactive,omitempty"` // requirements whose marker is false
	Unresolved  []Unresolved      `json:"unresolved,omitempty"`
}

// WriteTo writes the pins as a requirements file.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString("# Pinned by reqlint for")
	for _, k := range []string{marker.PythonVersion, marker.SysPlatform, marker.PlatformMachine} {
		if v := r.Environment[k]; v != "" {
			fmt.Fprintf(&b, " %s=%s", k, v)
		}
	}
	b.WriteString("\n")
	for _, p := range r.Pins {
		b.WriteString(p.String())
		b.WriteString("\n")
	}
	for _, u := range r.Unresolved {
		fmt.Fprintf(&b, "# unresolved: %s: %s\n", u.Name, u.Reason)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Pin resolves the applicable requirements of m under env. The result lists
// every pin that succeeded; the error is non-nil when some requirement could
// not be pinned or ctx was cancelled.
func Pin(ctx context.Context, m *requirements.Manifest, env marker.Environment, idx Index, opts Options) (*Result, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = func(string, ...any) {}
	}
	pre := opts.Prereleases || m.AllowsPrereleases()

	res := &Result{Environment: env}

	type group struct {
		reqs  []*requirements.Requirement
		specs pep440.SpecifierSet
	}
	groups := map[string]*group{}
	var order []string
	for _, r := range m.Requirements() {
		if r.Name == "" {
			continue
		}
		ok, err := r.Applies(env)
		if err != nil {
			res.Unresolved = append(res.Unresolved, Unresolved{Name: r.Name, Line: r.Line, Reason: errs.UserMessage(err)})
			continue
		}
		if !ok {
			res.Inactive = append(res.Inactive, r.String())
			continue
		}
		k := r.Key()
		g, seen := groups[k]
		if !seen {
			g = &group{}
			groups[k] = g
			order = append(order, k)
		}
		g.reqs = append(g.reqs, r)
		g.specs = append(g.specs, r.Specifiers...)
	}
	for _, c := range m.Constraints() {
		if g, ok := groups[c.Key()]; ok {
			if applies, err := c.Applies(env); err == nil && applies {
				g.specs = append(g.specs, c.Specifiers...)
			}
		}
	}

	pins := make([]*Pinned, len(order))
	var (
		mu         sync.Mutex
		unresolved []Unresolved
	)
	fail := func(r *requirements.Requirement, format string, args ...any) {
		mu.Lock()
		unresolved = append(unresolved, Unresolved{Name: r.Name, Line: r.Line, Reason: fmt.Sprintf(format, args...)})
		mu.Unlock()
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Concurrency)
	for i, k := range order {
		g := groups[k]
		first := g.reqs[0]
		p := &Pinned{Name: first.Name, Extras: mergeExtras(g.reqs), Line: first.Line}
		if first.Marker != nil {
			p.Marker = first.Marker.String()
		}
		if first.URL != "" {
			p.URL = first.URL
			pins[i] = p
			continue
		}
		eg.Go(func() error {
			info, err := idx.FetchPackage(gctx, k, opts.Refresh)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if errors.Is(err, integrations.ErrNotFound) {
					fail(first, "not found on the package index")
				} else {
					opts.Logger("index lookup failed: %s: %v", k, err)
					fail(first, "%s", errs.UserMessage(err))
				}
				return nil
			}
			v, ok := pep440.Latest(info.Versions(), g.specs, pre || g.specs.Prerelease())
			if !ok {
				fail(first, "no release satisfies %q", g.specs.String())
				return nil
			}
			p.Version = v.String()
			pins[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, p := range pins {
		if p != nil {
			res.Pins = append(res.Pins, *p)
		}
	}
	slices.SortFunc(unresolved, func(a, b Unresolved) int { return a.Line - b.Line })
	res.Unresolved = append(res.Unresolved, unresolved...)
	if n := len(res.Unresolved); n > 0 {
		return res, errs.New(errs.ErrCodePackageNotFound, "%d requirement(s) could not be pinned", n)
	}
	return res, nil
}

func mergeExtras(reqs []*requirements.Requirement) []string {
	var out []string
	for _, r := range reqs {
		for _, e := range r.Extras {
			if !slices.Contains(out, e) {
				out = append(out, e)
			}
		}
	}
	return out
}
