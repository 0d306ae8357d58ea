package python

import (
	"context"
	"os"
	"path/filepath"

	"github.com/matzehuels/reqlint/pkg/dag"
	"github.com/matzehuels/reqlint/pkg/deps"
	"github.com/matzehuels/reqlint/pkg/integrations"
	"github.com/matzehuels/reqlint/pkg/integrations/pypi"
	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

// Language provides Python dependency resolution via PyPI.
// Supports requirements files, setup.cfg, pyproject.toml and poetry.lock.
var Language = &deps.Language{
	Name:            "python",
	DefaultRegistry: "pypi",
	ManifestTypes:   []string{"requirements", "setupcfg", "pyproject", "poetry"},
	ManifestAliases: map[string]string{
		"requirements.txt": "requirements",
		"setup.cfg":        "setupcfg",
		"pyproject.toml":   "pyproject",
		"poetry.lock":      "poetry",
	},
	NewResolver:     newResolver,
	NewManifest:     newManifest,
	ManifestParsers: manifestParsers,
}

func newResolver(opts deps.ResolverOptions) (deps.Resolver, error) {
	c := pypi.NewClient(opts.Cache, opts.CacheTTL)
	if opts.IndexURL != "" {
		c = c.WithIndexURL(opts.IndexURL)
	}
	return deps.NewRegistry("pypi", NewFetcher(c)), nil
}

// NewFetcher adapts a PyPI client to [deps.Fetcher]. Each package's
// Requires-Dist entries are filtered by the environment passed to Fetch.
func NewFetcher(c *pypi.Client) deps.Fetcher { return fetcher{c} }

type fetcher struct{ *pypi.Client }

func (f fetcher) Fetch(ctx context.Context, name string, env map[string]string, refresh bool) (*deps.Package, error) {
	p, err := f.FetchPackage(ctx, name, refresh)
	if err != nil {
		return nil, err
	}
	return &deps.Package{
		Name:         p.Name,
		Version:      p.Version,
		Dependencies: p.Dependencies(marker.Environment(env)),
		Description:  p.Summary,
		License:      p.License,
		Author:       p.Author,
		Repository:   p.Repository,
		HomePage:     p.HomePage,
	}, nil
}

func newManifest(name string, res deps.Resolver) deps.ManifestParser {
	switch name {
	case "requirements":
		return &Requirements{resolver: res}
	case "setupcfg":
		return &SetupCfg{resolver: res}
	case "pyproject":
		return &Pyproject{resolver: res}
	case "poetry":
		return &PoetryLock{}
	default:
		return nil
	}
}

func manifestParsers(res deps.Resolver) []deps.ManifestParser {
	return []deps.ManifestParser{
		&Requirements{resolver: res},
		&SetupCfg{resolver: res},
		&Pyproject{resolver: res},
		&PoetryLock{},
	}
}

func normalize(name string) string {
	return integrations.NormalizePkgName(name)
}

// graph builds the project graph for reqs and expands it through res when
// one is configured.
func graph(root string, reqs []*requirements.Requirement, res deps.Resolver, opts deps.Options) (*dag.DAG, error) {
	g := deps.ProjectGraph(root, reqs, opts)
	if res == nil {
		return g, nil
	}
	return deps.Expand(context.Background(), g, res, opts)
}

// MetadataFiles lists the install-metadata files looked up next to a
// manifest, in order of preference.
var MetadataFiles = []string{"setup.cfg", "pyproject.toml"}

// FindMetadata returns the first metadata file present in dir.
func FindMetadata(dir string) (string, bool) {
	for _, name := range MetadataFiles {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

// ParseMetadata reads install metadata from a setup.cfg or pyproject.toml
// file without contacting the index.
func ParseMetadata(path string, opts deps.Options) (*deps.ManifestResult, error) {
	p, err := deps.DetectManifest(path, &SetupCfg{}, &Pyproject{})
	if err != nil {
		return nil, err
	}
	return p.Parse(path, opts)
}
