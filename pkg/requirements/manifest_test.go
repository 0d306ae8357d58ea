package requirements

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/marker"
)

const sample = `# Core deps
pyfiglet
importlib-metadata; python_version<"3.8"
requests>=2.28 \
    ,<3  # trailing comment
--index-url https://pypi.example.org/simple
--pre

-e git+https://github.com/org/tool.git#egg=tool
https://files.example.org/pkg/wheel-1.0-py3-none-any.whl#egg=wheelpkg
Flask==2.3.2 --hash=sha256:abc --hash sha256:def
`

func TestParse_Sample(t *testing.T) {
	m, err := Parse(strings.NewReader(sample), Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	reqs := m.Requirements()
	var names []string
	for _, r := range reqs {
		names = append(names, r.Name)
	}
	want := []string{"pyfiglet", "importlib-metadata", "requests", "tool", "wheelpkg", "Flask"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v, want %v", names, want)
	}

	pyfiglet := reqs[0]
	if pyfiglet.Constrained() || pyfiglet.Marker != nil || pyfiglet.Line != 2 {
		t.Errorf("pyfiglet = %+v, want unconstrained without marker on line 2", pyfiglet)
	}
	if got := reqs[1].Marker.String(); got != `python_version < "3.8"` {
		t.Errorf("importlib-metadata marker = %q", got)
	}
	if got := reqs[2].Specifiers.String(); got != "<3,>=2.28" || reqs[2].Line != 4 {
		t.Errorf("requests = %q on line %d, want <3,>=2.28 on line 4", got, reqs[2].Line)
	}
	if !reqs[3].Editable {
		t.Error("tool should be editable")
	}
	if len(reqs[5].Hashes) != 2 {
		t.Errorf("Flask hashes = %v, want 2", reqs[5].Hashes)
	}

	if !m.AllowsPrereleases() {
		t.Error("AllowsPrereleases() = false, want true")
	}
	if urls := m.IndexURLs(); len(urls) != 1 || urls[0] != "https://pypi.example.org/simple" {
		t.Errorf("IndexURLs() = %v", urls)
	}
}

func TestParse_CollectsLineErrors(t *testing.T) {
	input := "good==1.0\nbad===\n--bogus\nfine\nalso bad\n"
	m, err := Parse(strings.NewReader(input), Options{})
	if err == nil {
		t.Fatal("Parse() succeeded, want error")
	}
	if !errs.Is(err, errs.ErrCodeInvalidManifest) {
		t.Errorf("code = %v, want %v", errs.GetCode(err), errs.ErrCodeInvalidManifest)
	}
	if len(m.Errors) != 3 {
		t.Fatalf("len(Errors) = %d, want 3: %v", len(m.Errors), m.Errors)
	}
	lines := []int{m.Errors[0].Line, m.Errors[1].Line, m.Errors[2].Line}
	if lines[0] != 2 || lines[1] != 3 || lines[2] != 5 {
		t.Errorf("error lines = %v, want [2 3 5]", lines)
	}
	var le *LineError
	if !errors.As(err, &le) {
		t.Error("errors.As(*LineError) failed")
	}
	if len(m.Requirements()) != 2 {
		t.Errorf("valid requirements = %d, want 2", len(m.Requirements()))
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	getenv := func(k string) (string, bool) {
		if k == "TOKEN" {
			return "s3cret", true
		}
		return "", false
	}
	m, err := Parse(strings.NewReader("--extra-index-url https://${TOKEN}@x.test/simple\n"), Options{Getenv: getenv})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := m.IndexURLs(); len(got) != 1 || got[0] != "https://s3cret@x.test/simple" {
		t.Errorf("IndexURLs() = %v", got)
	}
}

func TestParseLine_Options(t *testing.T) {
	tests := []struct {
		line  string
		kind  EntryKind
		opt   string
		value string
	}{
		{"-r base.txt", KindInclude, "--requirement", "base.txt"},
		{"-rbase.txt", KindInclude, "--requirement", "base.txt"},
		{"--requirement=base.txt", KindInclude, "--requirement", "base.txt"},
		{"-c constraints.txt", KindConstraint, "--constraint", "constraints.txt"},
		{"--no-binary :all:", KindOption, "--no-binary", ":all:"},
		{"--require-hashes", KindOption, "--require-hashes", ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			e, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine() error: %v", err)
			}
			if e.Kind != tt.kind || e.Option != tt.opt || e.Value != tt.value {
				t.Errorf("ParseLine() = %s %s %q, want %s %s %q", e.Kind, e.Option, e.Value, tt.kind, tt.opt, tt.value)
			}
		})
	}

	for _, bad := range []string{"-r", "--pre now", "--frobnicate x"} {
		if _, err := ParseLine(bad); err == nil {
			t.Errorf("ParseLine(%q) succeeded, want error", bad)
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFile_Includes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.txt", "six\n-c constraints.txt\n")
	writeFile(t, dir, "constraints.txt", "six<2\n")
	path := writeFile(t, dir, "requirements.txt", "attrs\n-r base.txt\nclick\n")

	m, err := ParseFile(path, Options{FollowIncludes: true})
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}

	var names []string
	for _, r := range m.Requirements() {
		names = append(names, r.Name)
	}
	if got := strings.Join(names, ","); got != "attrs,six,click" {
		t.Errorf("Requirements() = %s, want attrs,six,click", got)
	}
	if c := m.Constraints(); len(c) != 1 || c[0].Specifiers.String() != "<2" {
		t.Errorf("Constraints() = %v", c)
	}
	if got := m.Lookup("SIX"); len(got) != 1 || got[0].Source != filepath.Join(dir, "base.txt") {
		t.Errorf("Lookup(SIX) = %v", got)
	}
}

func TestParseFile_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "-r b.txt\n")
	path := writeFile(t, dir, "b.txt", "-r a.txt\nsix\n")

	m, err := ParseFile(path, Options{FollowIncludes: true})
	if err == nil || !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("ParseFile() error = %v, want include cycle", err)
	}
	if m == nil || len(m.Requirements()) != 1 {
		t.Error("requirements outside the cycle should still be parsed")
	}
}

func TestParseFile_NotFound(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt"), Options{})
	if !errs.Is(err, errs.ErrCodeFileNotFound) {
		t.Errorf("code = %v, want %v", errs.GetCode(err), errs.ErrCodeFileNotFound)
	}
}

func TestManifest_Applicable(t *testing.T) {
	m, err := Parse(strings.NewReader("pyfiglet\nimportlib-metadata; python_version<\"3.8\"\n"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	env := marker.Platform("linux", "amd64")

	got, err := m.Applicable(env.WithPythonVersion("3.11"))
	if err != nil {
		t.Fatalf("Applicable() error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "pyfiglet" {
		t.Errorf("Applicable(3.11) = %v, want [pyfiglet]", got)
	}

	got, _ = m.Applicable(env.WithPythonVersion("3.7"))
	if len(got) != 2 {
		t.Errorf("Applicable(3.7) = %d requirements, want 2", len(got))
	}
}
