package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/reqlint/pkg/deps"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/integrations"
	"github.com/matzehuels/reqlint/pkg/pep440"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

type state struct {
	ctx    context.Context
	opts   Options
	path   string
	m      *requirements.Manifest
	reqs   []*requirements.Requirement
	meta   *deps.ManifestResult
	lock   *deps.ManifestResult
	report *Report
}

// ruleDef runs one or more rules in a single pass.
type ruleDef struct {
	rules []Rule
	skip  func(*state) string
	run   func(*state) ([]Finding, error)
}

func always(*state) string { return "" }

var ruleTable = []ruleDef{
	{[]Rule{RuleSyntax}, always, checkSyntax},
	{[]Rule{RuleMarker}, always, checkMarkers},
	{[]Rule{RuleConflict}, always, checkConflicts},
	{[]Rule{RuleDuplicate}, always, checkDuplicates},
	{[]Rule{RuleUnpinned}, always, checkUnpinned},
	{[]Rule{RuleMissing}, needMetadata, checkMissing},
	{[]Rule{RuleConstraintMismatch}, needMetadata, checkConstraintMismatch},
	{[]Rule{RuleLockMismatch}, needLock, checkLock},
	{[]Rule{RuleUnknownPackage, RuleNoRelease}, needOnline, checkIndex},
}

func needMetadata(s *state) string {
	if s.meta == nil {
		return "no install metadata (setup.cfg or pyproject.toml) found"
	}
	return ""
}

func needLock(s *state) string {
	if s.lock == nil {
		return "no lock file given"
	}
	return ""
}

func needOnline(s *state) string {
	if !s.opts.Online {
		return "online checks disabled"
	}
	if s.opts.Index == nil {
		return "no package index configured"
	}
	return ""
}

// finding builds a finding for r, dropping the source when it is the
// checked manifest itself.
func (s *state) finding(rule Rule, sev Severity, r *requirements.Requirement, format string, args ...any) Finding {
	f := Finding{Rule: rule, Severity: sev, Message: fmt.Sprintf(format, args...)}
	if r != nil {
		f.Line = r.Line
		f.Package = r.Key()
		if r.Source != s.path {
			f.Source = r.Source
		}
	}
	return f
}

func checkSyntax(s *state) ([]Finding, error) {
	var out []Finding
	for _, le := range s.m.AllErrors() {
		f := Finding{Rule: RuleSyntax, Severity: SeverityError, Line: le.Line, Message: le.Message()}
		if le.Path != s.path {
			f.Source = le.Path
		}
		out = append(out, f)
	}
	return out, nil
}

func checkMarkers(s *state) ([]Finding, error) {
	var out []Finding
	all := append(append([]*requirements.Requirement{}, s.reqs...), s.m.Constraints()...)
	for _, r := range all {
		if r.Marker == nil {
			continue
		}
		if _, err := r.Marker.Evaluate(s.opts.Environment); err != nil {
			out = append(out, s.finding(RuleMarker, SeverityError, r, "marker %q: %s", r.Marker, errs.UserMessage(err)))
			continue
		}
		for _, py := range SupportedPythons {
			if _, err := r.Marker.Evaluate(s.opts.Environment.WithPythonVersion(py)); err != nil {
				out = append(out, s.finding(RuleMarker, SeverityError, r, "marker %q under Python %s: %s", r.Marker, py, errs.UserMessage(err)))
				break
			}
		}
	}
	return out, nil
}

// active reports whether r takes part in pairing: unconditional requirements
// always do, conditional ones only when their marker holds.
func (s *state) active(r *requirements.Requirement) bool {
	if r.Marker == nil {
		return true
	}
	holds, err := r.Applies(s.opts.Environment)
	return err == nil && holds
}

// pairable reports whether a and b both apply in the environment and so
// would be installed together.
func (s *state) pairable(a, b *requirements.Requirement) bool {
	return s.active(a) && s.active(b)
}

func groupByKey(reqs []*requirements.Requirement) (map[string][]*requirements.Requirement, []string) {
	groups := map[string][]*requirements.Requirement{}
	var order []string
	for _, r := range reqs {
		if r.Name == "" {
			continue
		}
		k := r.Key()
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	return groups, order
}

func checkConflicts(s *state) ([]Finding, error) {
	var out []Finding
	// Constraints go first so that a clash is reported on the requirement.
	groups, order := groupByKey(append(s.m.Constraints(), s.reqs...))
	for _, k := range order {
		g := groups[k]
		for i := 1; i < len(g); i++ {
			for j := 0; j < i; j++ {
				a, b := g[j], g[i]
				if !s.pairable(a, b) || pep440.Satisfiable(a.Specifiers, b.Specifiers) {
					continue
				}
				out = append(out, s.finding(RuleConflict, SeverityError, b,
					"%s conflicts with %s (%s)", describe(b), describe(a), where(a)))
				break
			}
		}
	}
	return out, nil
}

func checkDuplicates(s *state) ([]Finding, error) {
	var out []Finding
	groups, order := groupByKey(s.reqs)
	for _, k := range order {
		g := groups[k]
		for i := 1; i < len(g); i++ {
			first, dup := g[0], g[i]
			if !s.pairable(first, dup) || !pep440.Satisfiable(first.Specifiers, dup.Specifiers) {
				continue
			}
			out = append(out, s.finding(RuleDuplicate, SeverityWarning, dup,
				"%s is already required by %s", k, where(first)))
		}
	}
	return out, nil
}

func checkUnpinned(s *state) ([]Finding, error) {
	var out []Finding
	for _, r := range s.reqs {
		if r.Name == "" || r.Constrained() {
			continue
		}
		out = append(out, s.finding(RuleUnpinned, SeverityInfo, r, "%s has no version constraint", r.Name))
	}
	return out, nil
}

// metadataRequirements returns the install requirements of the metadata that
// apply in the environment.
func (s *state) metadataRequirements() []*requirements.Requirement {
	var out []*requirements.Requirement
	for _, r := range s.meta.Requirements {
		if s.active(r) {
			out = append(out, r)
		}
	}
	return out
}

func checkMissing(s *state) ([]Finding, error) {
	var out []Finding
	present := map[string]bool{}
	for _, r := range s.reqs {
		present[r.Key()] = true
	}
	for _, r := range s.metadataRequirements() {
		if present[r.Key()] {
			continue
		}
		f := s.finding(RuleMissing, SeverityError, nil, "%s is required by the install metadata but not listed", r)
		f.Package = r.Key()
		out = append(out, f)
	}
	return out, nil
}

func checkConstraintMismatch(s *state) ([]Finding, error) {
	var out []Finding
	for _, want := range s.metadataRequirements() {
		for _, got := range s.m.Lookup(want.Name) {
			if !s.active(got) {
				continue
			}
			if pep440.Satisfiable(want.Specifiers, got.Specifiers) {
				continue
			}
			out = append(out, s.finding(RuleConstraintMismatch, SeverityWarning, got,
				"%s cannot satisfy install metadata %s", describe(got), describe(want)))
		}
	}
	return out, nil
}

func checkLock(s *state) ([]Finding, error) {
	var out []Finding
	for _, r := range s.reqs {
		if r.Name == "" {
			continue
		}
		if !s.active(r) {
			continue
		}
		v, locked := s.lock.Locked[r.Key()]
		if !locked {
			out = append(out, s.finding(RuleLockMismatch, SeverityWarning, r, "%s is not in the lock file", r.Name))
			continue
		}
		if !r.Specifiers.ContainsString(v, true) {
			out = append(out, s.finding(RuleLockMismatch, SeverityError, r,
				"locked version %s does not satisfy %s", v, describe(r)))
		}
	}
	return out, nil
}

// checkIndex looks up every active, index-hosted requirement concurrently.
func checkIndex(s *state) ([]Finding, error) {
	groups, order := groupByKey(s.reqs)
	pre := s.opts.Prereleases || s.m.AllowsPrereleases()

	var (
		mu  sync.Mutex
		out []Finding
	)
	add := func(f Finding) {
		mu.Lock()
		out = append(out, f)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, k := range order {
		var reqs []*requirements.Requirement
		for _, r := range groups[k] {
			if s.active(r) && r.URL == "" {
				reqs = append(reqs, r)
			}
		}
		if len(reqs) == 0 {
			continue
		}
		g.Go(func() error {
			info, err := s.opts.Index.FetchPackage(ctx, k, s.opts.Refresh)
			switch {
			case errors.Is(err, integrations.ErrNotFound):
				add(s.finding(RuleUnknownPackage, SeverityError, reqs[0], "%s does not exist on the package index", reqs[0].Name))
				return nil
			case err != nil:
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.opts.Logger("index lookup failed: %s: %v", k, err)
				add(s.finding(RuleUnknownPackage, SeverityWarning, reqs[0], "could not query the index for %s: %s", k, errs.UserMessage(err)))
				return nil
			}
			versions := info.Versions()
			for _, r := range reqs {
				if r.Specifiers.Empty() {
					continue
				}
				if _, ok := pep440.Latest(versions, r.Specifiers, pre || r.Specifiers.Prerelease()); !ok {
					add(s.finding(RuleNoRelease, SeverityError, r, "no release of %s satisfies %s", info.Name, r.Specifiers))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func describe(r *requirements.Requirement) string {
	if r.Specifiers.Empty() {
		return r.Name
	}
	return r.Name + r.Specifiers.String()
}

func where(r *requirements.Requirement) string {
	var b strings.Builder
	if r.Source != "" {
		b.WriteString(r.Source)
	}
	if r.Line > 0 {
		if b.Len() > 0 {
			b.WriteByte(':')
		} else {
			b.WriteString("line ")
		}
		fmt.Fprintf(&b, "%d", r.Line)
	}
	if b.Len() == 0 {
		return "install metadata"
	}
	return b.String()
}
