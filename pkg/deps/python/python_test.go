package python

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/reqlint/pkg/cache"
	"github.com/matzehuels/reqlint/pkg/deps"
	"github.com/matzehuels/reqlint/pkg/integrations/pypi"
	"github.com/matzehuels/reqlint/pkg/marker"
)

func pypiServer(t *testing.T) *httptest.Server {
	t.Helper()
	index := map[string]map[string]any{
		"flask": {"info": map[string]any{
			"name": "Flask", "version": "3.0.0",
			"requires_dist": []string{
				"Werkzeug>=3.0.0",
				`importlib-metadata>=3.6.0; python_version < "3.10"`,
				`asgiref>=3.2; extra == "async"`,
			},
		}},
		"werkzeug":           {"info": map[string]any{"name": "Werkzeug", "version": "3.0.1"}},
		"importlib-metadata": {"info": map[string]any{"name": "importlib-metadata", "version": "7.0.0"}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(filepath.Dir(r.URL.Path))
		body, ok := index[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher_MarkerFiltering(t *testing.T) {
	srv := pypiServer(t)
	client := pypi.NewClient(cache.NewNullCache(), time.Hour).WithIndexURL(srv.URL)
	f := NewFetcher(client)

	tests := []struct {
		python string
		want   int
	}{
		{"3.11", 1},
		{"3.8", 2},
	}
	for _, tt := range tests {
		t.Run(tt.python, func(t *testing.T) {
			env := marker.Platform("linux", "amd64").WithPythonVersion(tt.python)
			pkg, err := f.Fetch(context.Background(), "flask", env, false)
			if err != nil {
				t.Fatal(err)
			}
			if len(pkg.Dependencies) != tt.want {
				t.Errorf("Dependencies = %v, want %d entries", pkg.Dependencies, tt.want)
			}
		})
	}
}

func TestLanguage_ResolveAgainstIndex(t *testing.T) {
	srv := pypiServer(t)
	res, err := Language.Resolver(deps.ResolverOptions{IndexURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	env := marker.Platform("linux", "amd64").WithPythonVersion("3.8")
	g, err := res.Resolve(context.Background(), "flask", deps.Options{Environment: env})
	if err != nil {
		t.Fatal(err)
	}
	if !g.HasEdge("flask", "importlib-metadata") || !g.HasEdge("flask", "werkzeug") {
		t.Errorf("edges = %v", g.Edges())
	}
	if _, ok := g.Node("asgiref"); ok {
		t.Error("extra-only dependency should be dropped")
	}
}

func TestLanguage_Manifests(t *testing.T) {
	for _, name := range []string{"requirements.txt", "setup.cfg", "pyproject.toml", "poetry.lock"} {
		p, err := Language.Detect(filepath.Join("/srv", name), nil)
		if err != nil {
			t.Errorf("Detect(%s) error = %v", name, err)
			continue
		}
		if p.Type() != name {
			t.Errorf("Detect(%s) type = %s", name, p.Type())
		}
		if _, err := Language.Manifest(name, nil); err != nil {
			t.Errorf("Manifest(%s) error = %v", name, err)
		}
	}
}

func TestFindMetadata(t *testing.T) {
	dir := t.TempDir()
	if _, ok := FindMetadata(dir); ok {
		t.Error("empty dir should have no metadata")
	}
	writeFile(t, dir, "pyproject.toml", "[project]\nname = \"x\"\n")
	if p, ok := FindMetadata(dir); !ok || filepath.Base(p) != "pyproject.toml" {
		t.Errorf("FindMetadata() = %s, %v", p, ok)
	}
	writeFile(t, dir, "setup.cfg", "[metadata]\nname = x\n")
	if p, _ := FindMetadata(dir); filepath.Base(p) != "setup.cfg" {
		t.Errorf("setup.cfg should take precedence, got %s", p)
	}

	result, err := ParseMetadata(filepath.Join(dir, "setup.cfg"), deps.Options{})
	if err != nil || result.RootPackage != "x" {
		t.Errorf("ParseMetadata() = %+v, %v", result, err)
	}
	if _, err := ParseMetadata(filepath.Join(dir, "requirements.txt"), deps.Options{}); err == nil {
		t.Error("requirements files are not metadata")
	}
}
