package deps

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

type mapFetcher struct {
	pkgs  map[string]*Package
	calls atomic.Int32
}

var errMissing = errors.New("missing")

func (f *mapFetcher) Fetch(ctx context.Context, name string, env map[string]string, refresh bool) (*Package, error) {
	f.calls.Add(1)
	if p, ok := f.pkgs[name]; ok {
		return p, nil
	}
	return nil, errMissing
}

func flaskIndex() *mapFetcher {
	return &mapFetcher{pkgs: map[string]*Package{
		"flask":      {Name: "Flask", Version: "3.0.0", Dependencies: []string{"werkzeug", "jinja2", "click"}},
		"werkzeug":   {Name: "Werkzeug", Version: "3.0.1", Dependencies: []string{"markupsafe"}},
		"jinja2":     {Name: "Jinja2", Version: "3.1.2", Dependencies: []string{"markupsafe"}},
		"markupsafe": {Name: "MarkupSafe", Version: "2.1.3"},
	}}
}

func TestRegistryResolve(t *testing.T) {
	f := flaskIndex()
	g, err := NewRegistry("pypi", f).Resolve(context.Background(), "flask", Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// click is missing from the index: kept as a node, fetch failure logged.
	if g.NodeCount() != 5 {
		t.Errorf("NodeCount() = %d, want 5", g.NodeCount())
	}
	if g.EdgeCount() != 5 {
		t.Errorf("EdgeCount() = %d, want 5", g.EdgeCount())
	}
	if got := f.calls.Load(); got != 5 {
		t.Errorf("fetches = %d, want 5 (each package once)", got)
	}
	n, _ := g.Node("jinja2")
	if n.Meta["version"] != "3.1.2" {
		t.Errorf("jinja2 meta = %v", n.Meta)
	}
}

func TestRegistryResolve_RootMissing(t *testing.T) {
	_, err := NewRegistry("pypi", flaskIndex()).Resolve(context.Background(), "nope", Options{})
	if !errors.Is(err, errMissing) {
		t.Errorf("Resolve() error = %v, want errMissing", err)
	}
}

func TestRegistryResolve_MaxDepth(t *testing.T) {
	g, err := NewRegistry("pypi", flaskIndex()).Resolve(context.Background(), "flask", Options{MaxDepth: 1})
	if err != nil {
		t.Fatal(err)
	}
	n, _ := g.Node("markupsafe")
	if n != nil && n.Meta["version"] != nil {
		t.Error("markupsafe is beyond depth 1 and should not be fetched")
	}
}

func TestRegistryResolve_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRegistry("pypi", flaskIndex()).Resolve(ctx, "flask", Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}

func TestExpand(t *testing.T) {
	reqs := []*requirements.Requirement{
		requirements.MustParseRequirement("flask>=2"),
		requirements.MustParseRequirement(`pywin32; sys_platform == "win32"`),
		requirements.MustParseRequirement("ghost"),
	}
	opts := Options{Environment: marker.Platform("linux", "amd64")}
	direct := ProjectGraph("app", reqs, opts)

	var logged []string
	opts.Logger = func(format string, args ...any) { logged = append(logged, format) }
	g, err := Expand(context.Background(), direct, NewRegistry("pypi", flaskIndex()), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !g.HasEdge(ProjectRoot, "flask") || !g.HasEdge("jinja2", "markupsafe") {
		t.Error("transitive edges missing")
	}
	if !g.HasEdge(ProjectRoot, "pywin32") || g.OutDegree("pywin32") != 0 {
		t.Error("inactive requirement should stay a leaf")
	}
	if !g.HasEdge(ProjectRoot, "ghost") {
		t.Error("failed resolution should keep the direct edge")
	}
	if len(logged) == 0 {
		t.Error("resolution failure should be logged")
	}
}
