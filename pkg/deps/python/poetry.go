package python

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/reqlint/pkg/dag"
	"github.com/matzehuels/reqlint/pkg/deps"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

// PoetryLock parses poetry.lock files. It provides a full transitive closure
// of the dependency graph without needing to contact a registry, and the
// locked version of every package.
type PoetryLock struct{}

func (p *PoetryLock) Type() string              { return "poetry.lock" }
func (p *PoetryLock) IncludesTransitive() bool  { return true }
func (p *PoetryLock) Supports(name string) bool { return name == "poetry.lock" }

func (p *PoetryLock) Parse(path string, opts deps.Options) (*deps.ManifestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "lock file %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "read %s", path)
	}
	var lock lockFile
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", path)
	}

	locked := make(map[string]string, len(lock.Packages))
	reqs := make([]*requirements.Requirement, 0, len(lock.Packages))
	for _, pkg := range lock.Packages {
		locked[normalize(pkg.Name)] = pkg.Version
		text := pkg.Name + "==" + pkg.Version
		if m, ok := pkg.Markers.(string); ok && m != "" {
			text += "; " + m
		}
		req, err := requirements.ParseRequirement(text)
		if err != nil {
			opts.WithDefaults().Logger("skip locked package %s: %v", pkg.Name, err)
			continue
		}
		reqs = append(reqs, req)
	}

	pyReq, _ := poetryConstraint(lock.Metadata.PythonVersions)
	root := extractPyprojectName(filepath.Dir(path))
	g := buildGraph(lock.Packages)
	if n, ok := g.Node(deps.ProjectRoot); ok && root != "" {
		n.Meta["label"] = root
	}

	return &deps.ManifestResult{
		Type:               p.Type(),
		IncludesTransitive: true,
		RootPackage:        root,
		Requirements:       reqs,
		PythonRequires:     pyReq,
		Locked:             locked,
		Graph:              g,
	}, nil
}

type lockFile struct {
	Packages []lockPackage `toml:"package"`
	Metadata struct {
		PythonVersions string `toml:"python-versions"`
		ContentHash    string `toml:"content-hash"`
	} `toml:"metadata"`
}

type lockPackage struct {
	Name         string         `toml:"name"`
	Version      string         `toml:"version"`
	Description  string         `toml:"description"`
	Category     string         `toml:"category"`
	Optional     bool           `toml:"optional"`
	Markers      any            `toml:"markers"`
	Dependencies map[string]any `toml:"dependencies"`
}

func buildGraph(packages []lockPackage) *dag.DAG {
	g := dag.New(nil)
	pkgs := make(map[string]bool, len(packages))

	for _, pkg := range packages {
		name := normalize(pkg.Name)
		pkgs[name] = true
		meta := dag.Metadata{"version": pkg.Version, "name": pkg.Name}
		if pkg.Description != "" {
			meta["description"] = pkg.Description
		}
		if pkg.Category != "" {
			meta["category"] = pkg.Category
		}
		_ = g.AddNode(dag.Node{ID: name, Meta: meta})
	}

	incoming := make(map[string]bool)
	for _, pkg := range packages {
		from := normalize(pkg.Name)
		for dep, v := range pkg.Dependencies {
			to := normalize(dep)
			if !pkgs[to] {
				continue
			}
			meta := dag.Metadata{}
			if spec := lockConstraint(v); spec != "" {
				meta["constraint"] = spec
			}
			_ = g.AddEdge(dag.Edge{From: from, To: to, Meta: meta})
			incoming[to] = true
		}
	}

	_ = g.AddNode(dag.Node{ID: deps.ProjectRoot, Meta: dag.Metadata{"virtual": true, "label": "project"}})
	for _, pkg := range packages {
		name := normalize(pkg.Name)
		if !incoming[name] {
			_ = g.AddEdge(dag.Edge{From: deps.ProjectRoot, To: name})
		}
	}

	return g
}

// lockConstraint extracts the PEP 440 form of a lock file dependency value,
// which is either a constraint string or a table with a "version" key.
func lockConstraint(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case map[string]any:
		s, _ = t["version"].(string)
	}
	spec, err := poetryConstraint(s)
	if err != nil {
		return ""
	}
	return spec
}
