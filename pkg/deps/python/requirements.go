package python

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/reqlint/pkg/deps"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

// Requirements parses pip requirements files (requirements*.txt, *.in).
// Includes are followed and ${VAR} references expand from the process
// environment.
type Requirements struct {
	resolver deps.Resolver
}

func (r *Requirements) Type() string             { return "requirements.txt" }
func (r *Requirements) IncludesTransitive() bool { return r.resolver != nil }

func (r *Requirements) Supports(name string) bool {
	if strings.HasSuffix(name, ".in") {
		return true
	}
	return strings.HasSuffix(name, ".txt") &&
		(strings.HasPrefix(name, "requirements") || strings.HasPrefix(name, "constraints"))
}

// Parse reads the file at path. When some lines are invalid the result is
// still returned, built from the lines that parsed, together with the error.
func (r *Requirements) Parse(path string, opts deps.Options) (*deps.ManifestResult, error) {
	m, perr := requirements.ParseFile(path, requirements.Options{FollowIncludes: true, Getenv: os.LookupEnv})
	if m == nil {
		return nil, perr
	}
	reqs := m.Requirements()
	g, err := graph(projectName(path), reqs, r.resolver, opts)
	if err != nil {
		return nil, err
	}
	return &deps.ManifestResult{
		Type:               r.Type(),
		IncludesTransitive: r.resolver != nil,
		RootPackage:        projectName(path),
		Requirements:       reqs,
		Manifest:           m,
		Graph:              g,
	}, perr
}

// projectName looks for a project name in the metadata files next to path.
func projectName(path string) string {
	dir := filepath.Dir(path)
	if name := extractSetupCfgName(dir); name != "" {
		return name
	}
	return extractPyprojectName(dir)
}
