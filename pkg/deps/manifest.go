package deps

import (
	"path/filepath"

	"github.com/matzehuels/reqlint/pkg/dag"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

// ProjectRoot is the ID of the virtual node standing for the project whose
// manifest was parsed.
const ProjectRoot = "__project__"

// ManifestParser reads dependency information from local manifest files.
type ManifestParser interface {
	// Parse reads the manifest at path.
	Parse(path string, opts Options) (*ManifestResult, error)
	// Supports reports whether this parser handles the given filename.
	Supports(filename string) bool
	// Type returns the manifest type identifier (e.g., "requirements.txt").
	Type() string
	// IncludesTransitive reports whether the result carries the full
	// transitive closure (lock files, or a parser backed by a resolver).
	IncludesTransitive() bool
}

// ManifestResult holds the parsed dependency data from a manifest file.
type ManifestResult struct {
	Type               string
	IncludesTransitive bool
	RootPackage        string // Project name, if the manifest declares one

	// Requirements lists the declared runtime requirements in file order.
	Requirements []*requirements.Requirement
	// Optional maps extra names to their requirements (setup.cfg
	// extras_require, pyproject optional-dependencies).
	Optional map[string][]*requirements.Requirement
	// PythonRequires is the declared interpreter constraint, if any.
	PythonRequires string
	// Locked maps normalized names to pinned versions (lock files only).
	Locked map[string]string
	// Manifest is the full parse for requirements files, nil otherwise.
	Manifest *requirements.Manifest

	Graph *dag.DAG
}

// DetectManifest finds a parser that supports the given file path.
func DetectManifest(path string, parsers ...ManifestParser) (ManifestParser, error) {
	name := filepath.Base(path)
	for _, p := range parsers {
		if p.Supports(name) {
			return p, nil
		}
	}
	return nil, errs.New(errs.ErrCodeUnsupported, "unsupported manifest: %s", name)
}

// ProjectGraph builds the direct-dependency graph of a manifest: the
// [ProjectRoot] node with one edge per requirement. Requirements whose marker
// is false in opts.Environment are kept but flagged "inactive".
func ProjectGraph(root string, reqs []*requirements.Requirement, opts Options) *dag.DAG {
	opts = opts.WithDefaults()
	g := dag.New(dag.Metadata{"root": root})
	_ = g.AddNode(dag.Node{ID: ProjectRoot, Meta: dag.Metadata{"virtual": true, "label": rootLabel(root)}})
	for _, r := range reqs {
		if r.Name == "" {
			continue
		}
		key := r.Key()
		g.EnsureNode(dag.Node{ID: key, Meta: dag.Metadata{"name": r.Name}})
		meta := dag.Metadata{}
		if !r.Specifiers.Empty() {
			meta["constraint"] = r.Specifiers.String()
		}
		if r.Marker != nil {
			meta["marker"] = r.Marker.String()
			if ok, err := r.Applies(opts.Environment); err == nil && !ok {
				meta["inactive"] = true
			}
		}
		_ = g.AddEdge(dag.Edge{From: ProjectRoot, To: key, Meta: meta})
	}
	return g
}

func rootLabel(root string) string {
	if root == "" {
		return "project"
	}
	return root
}
