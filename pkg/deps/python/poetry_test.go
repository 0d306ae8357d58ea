package python

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/reqlint/pkg/deps"
	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/pep440"
)

func TestPoetryLock_Supports(t *testing.T) {
	parser := &PoetryLock{}

	tests := []struct {
		filename string
		want     bool
	}{
		{"poetry.lock", true},
		{"Poetry.lock", false},
		{"requirements.txt", false},
		{"pyproject.toml", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := parser.Supports(tt.filename); got != tt.want {
				t.Errorf("Supports(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestPoetryLock_Parse(t *testing.T) {
	dir := t.TempDir()
	lockFile := filepath.Join(dir, "poetry.lock")
	content := `[[package]]
name = "requests"
version = "2.31.0"
description = "Python HTTP for Humans."
category = "main"
optional = false
python-versions = ">=3.7"

[package.dependencies]
certifi = ">=2017.4.17"
urllib3 = ">=1.21.1,<3"

[[package]]
name = "certifi"
version = "2024.2.2"
description = "Python package for providing Mozilla's CA Bundle."
category = "main"
optional = false
python-versions = ">=3.6"

[[package]]
name = "urllib3"
version = "2.2.1"
description = "HTTP library with thread-safe connection pooling."
category = "main"
optional = false
python-versions = ">=3.8"

[metadata]
lock-version = "2.0"
python-versions = "^3.10"
content-hash = "abc123"
`
	if err := os.WriteFile(lockFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	parser := &PoetryLock{}
	result, err := parser.Parse(lockFile, deps.Options{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	g := result.Graph

	if got := g.NodeCount(); got != 4 {
		t.Errorf("NodeCount = %d, want 4", got)
	}

	reqNode, ok := g.Node("requests")
	if !ok {
		t.Fatal("requests node not found")
	}
	if v := reqNode.Meta["version"]; v != "2.31.0" {
		t.Errorf("requests version = %v, want 2.31.0", v)
	}

	children := g.Children("requests")
	if len(children) != 2 {
		t.Errorf("requests has %d children, want 2", len(children))
	}

	projectChildren := g.Children(deps.ProjectRoot)
	if len(projectChildren) != 1 {
		t.Errorf("project root has %d children, want 1", len(projectChildren))
	}

	if result.Locked["urllib3"] != "2.2.1" || len(result.Locked) != 3 {
		t.Errorf("Locked = %v", result.Locked)
	}
	if result.PythonRequires != ">=3.10,<4" {
		t.Errorf("PythonRequires = %q", result.PythonRequires)
	}
	for _, e := range g.Edges() {
		if e.From == "requests" && e.To == "urllib3" && e.Meta["constraint"] != ">=1.21.1,<3" {
			t.Errorf("requests -> urllib3 constraint = %v", e.Meta["constraint"])
		}
	}
	if len(result.Requirements) != 3 {
		t.Fatalf("Requirements = %v", result.Requirements)
	}
	for _, r := range result.Requirements {
		if !r.Specifiers.ContainsString(result.Locked[r.Key()], false) {
			t.Errorf("%s should pin its locked version", r)
		}
	}
}

func TestPoetryLock_MarkersAndRootName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", "[tool.poetry]\nname = \"demo-app\"\n")
	lock := writeFile(t, dir, "poetry.lock", `[[package]]
name = "colorama"
version = "0.4.6"
markers = "sys_platform == \"win32\""

[[package]]
name = "click"
version = "8.1.7"

[package.dependencies]
colorama = {version = "*", markers = "platform_system == \"Windows\""}
`)
	result, err := (&PoetryLock{}).Parse(lock, deps.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if result.RootPackage != "demo-app" {
		t.Errorf("RootPackage = %q", result.RootPackage)
	}
	root, _ := result.Graph.Node(deps.ProjectRoot)
	if root.Meta["label"] != "demo-app" {
		t.Errorf("root label = %v", root.Meta["label"])
	}
	linux := marker.Platform("linux", "amd64")
	for _, r := range result.Requirements {
		ok, err := r.Applies(linux)
		if err != nil {
			t.Fatal(err)
		}
		if r.Key() == "colorama" && ok {
			t.Error("colorama is windows-only")
		}
	}
}

func TestPoetryLock_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := (&PoetryLock{}).Parse(filepath.Join(dir, "poetry.lock"), deps.Options{}); err == nil {
		t.Error("expected error for missing file")
	}
	bad := writeFile(t, dir, "poetry.lock", "[[package]\nname=")
	if _, err := (&PoetryLock{}).Parse(bad, deps.Options{}); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestPoetryConstraint(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"*", "", false},
		{"", "", false},
		{"^1.2.3", ">=1.2.3,<2", false},
		{"^0.2.3", ">=0.2.3,<0.3", false},
		{"^0.0.3", ">=0.0.3,<0.0.4", false},
		{"~1.2.3", ">=1.2.3,<1.3", false},
		{"~1", ">=1,<2", false},
		{"1.4", "==1.4", false},
		{"=1.4", "==1.4", false},
		{">=2.0,<3", ">=2.0,<3", false},
		{">= 2.0 < 3", ">=2.0,<3", false},
		{"~=1.4", "~=1.4", false},
		{"^1.0 || ^2.0", "", true},
		{"^banana", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := poetryConstraint(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("poetryConstraint(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("poetryConstraint(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if got != "" {
				if _, err := pep440.ParseSpecifierSet(got); err != nil {
					t.Errorf("result %q is not a valid specifier set: %v", got, err)
				}
			}
		})
	}
}

func TestPoetryLock_Type(t *testing.T) {
	parser := &PoetryLock{}
	if got := parser.Type(); got != "poetry.lock" {
		t.Errorf("Type() = %q, want %q", got, "poetry.lock")
	}
}

func TestPoetryLock_IncludesTransitive(t *testing.T) {
	parser := &PoetryLock{}
	if !parser.IncludesTransitive() {
		t.Error("IncludesTransitive() = false, want true")
	}
}
