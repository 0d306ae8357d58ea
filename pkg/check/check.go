package check

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/reqlint/pkg/cache"
	"github.com/matzehuels/reqlint/pkg/deps"
	"github.com/matzehuels/reqlint/pkg/deps/python"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/integrations/pypi"
	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/observability"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

// DefaultConcurrency bounds in-flight index requests of the online rules.
const DefaultConcurrency = 8

// SupportedPythons are the interpreter versions every marker must evaluate
// under.
var SupportedPythons = []string{"3.7", "3.8", "3.9", "3.10", "3.11", "3.12", "3.13"}

// Index is the package index used by the online rules. *pypi.Client
// implements it.
type Index interface {
	FetchPackage(ctx context.Context, name string, refresh bool) (*pypi.PackageInfo, error)
}

// Input names the files to check. Content, when set, is used instead of
// reading Path; Path is then only a label and the base for includes.
type Input struct {
	Path    string
	Content []byte

	// Metadata is parsed install metadata. When nil, MetadataPath is read,
	// and when that is empty too a setup.cfg or pyproject.toml next to Path
	// is used if [Options.DiscoverMetadata] is set.
	Metadata     *deps.ManifestResult
	MetadataPath string

	// Lock is a parsed lock file; LockPath is read when Lock is nil.
	Lock     *deps.ManifestResult
	LockPath string
}

// Options configures a [Run].
type Options struct {
	Environment      marker.Environment // default: marker.DefaultEnvironment()
	DiscoverMetadata bool

	// Online enables the index rules; Index must then be set.
	Online      bool
	Index       Index
	Refresh     bool
	Prereleases bool // also enabled by --pre in the manifest
	Concurrency int  // default: DefaultConcurrency

	// Disable turns individual rules off.
	Disable []Rule

	// Getenv expands ${VAR} in the manifest. Nil disables expansion.
	Getenv func(string) (string, bool)

	Logger func(string, ...any)
}

func (o Options) withDefaults() Options {
	if o.Environment == nil {
		o.Environment = marker.DefaultEnvironment()
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Logger == nil {
		o.Logger = func(string, ...any) {}
	}
	return o
}

// Run checks the manifest described by in. Invalid lines do not fail the run;
// they become syntax findings. The error is non-nil only when the inputs
// cannot be read or ctx is cancelled.
func Run(ctx context.Context, in Input, opts Options) (rep *Report, err error) {
	opts = opts.withDefaults()
	label := in.Path
	if label == "" {
		label = "<stdin>"
	}

	start := time.Now()
	hooks := observability.Check()
	hooks.OnCheckStart(ctx, label)
	defer func() {
		n := 0
		if rep != nil {
			n = len(rep.Findings)
		}
		hooks.OnCheckComplete(ctx, label, n, time.Since(start), err)
	}()

	content := in.Content
	if content == nil {
		if content, err = readManifest(in.Path); err != nil {
			return nil, err
		}
	}

	popts := requirements.Options{FollowIncludes: in.Path != "", Getenv: opts.Getenv}
	m, _ := requirements.ParseBytes(in.Path, content, popts)
	if m == nil {
		return nil, errs.New(errs.ErrCodeInvalidManifest, "cannot parse %s", label)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "generate report id")
	}
	rep = &Report{
		ID:          id.String(),
		Manifest:    label,
		Digest:      cache.Hash(content),
		Environment: maps.Clone(opts.Environment),
		CreatedAt:   time.Now().UTC(),
	}

	s := &state{
		ctx:    ctx,
		opts:   opts,
		path:   in.Path,
		m:      m,
		reqs:   m.Requirements(),
		report: rep,
	}
	rep.Summary.Requirements = len(s.reqs)

	if s.meta, rep.Metadata, err = loadMetadata(in, opts); err != nil {
		return nil, err
	}
	if s.lock, rep.Lock, err = loadLock(in, opts); err != nil {
		return nil, err
	}

	disabled := map[Rule]bool{}
	for _, r := range opts.Disable {
		disabled[r] = true
	}
	for _, def := range ruleTable {
		var enabled []Rule
		for _, r := range def.rules {
			if !disabled[r] {
				enabled = append(enabled, r)
			}
		}
		if len(enabled) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if reason := def.skip(s); reason != "" {
			for _, r := range enabled {
				rep.Skipped = append(rep.Skipped, Skip{Rule: r, Reason: reason})
			}
			continue
		}
		found, err := def.run(s)
		if err != nil {
			return nil, err
		}
		counts := map[Rule]int{}
		for _, f := range found {
			if disabled[f.Rule] {
				continue
			}
			counts[f.Rule]++
			rep.Findings = append(rep.Findings, f)
		}
		for _, r := range enabled {
			hooks.OnRule(ctx, string(r), counts[r])
		}
	}
	rep.finish()
	return rep, nil
}

func readManifest(path string) ([]byte, error) {
	if path == "" {
		return nil, errs.New(errs.ErrCodeInvalidInput, "no manifest given")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "requirements file %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "read %s", path)
	}
	return data, nil
}

func loadMetadata(in Input, opts Options) (*deps.ManifestResult, string, error) {
	if in.Metadata != nil {
		return in.Metadata, in.MetadataPath, nil
	}
	path := in.MetadataPath
	if path == "" && opts.DiscoverMetadata && in.Path != "" {
		found, ok := python.FindMetadata(filepath.Dir(in.Path))
		if !ok {
			return nil, "", nil
		}
		path = found
		opts.Logger("using install metadata %s", path)
	}
	if path == "" {
		return nil, "", nil
	}
	res, err := python.ParseMetadata(path, deps.Options{Environment: opts.Environment, Logger: opts.Logger})
	if err != nil {
		return nil, "", err
	}
	return res, path, nil
}

func loadLock(in Input, opts Options) (*deps.ManifestResult, string, error) {
	if in.Lock != nil {
		return in.Lock, in.LockPath, nil
	}
	if in.LockPath == "" {
		return nil, "", nil
	}
	res, err := (&python.PoetryLock{}).Parse(in.LockPath, deps.Options{Environment: opts.Environment, Logger: opts.Logger})
	if err != nil {
		return nil, "", err
	}
	return res, in.LockPath, nil
}
