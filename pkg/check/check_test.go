package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/reqlint/pkg/integrations"
	"github.com/matzehuels/reqlint/pkg/integrations/pypi"
	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/observability"
)

func py(version string) marker.Environment {
	return marker.Platform("linux", "amd64").WithPythonVersion(version)
}

func run(t *testing.T, content string, opts Options) *Report {
	t.Helper()
	rep, err := Run(context.Background(), Input{Path: "requirements.txt", Content: []byte(content)}, opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return rep
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const docsRequirements = `# Keep in sync with setup.cfg install_requires.
pyfiglet
importlib-metadata; python_version<"3.8"
`

func TestRun_DocsManifest(t *testing.T) {
	rep := run(t, docsRequirements, Options{Environment: py("3.11")})

	if rep.Failed(true) {
		t.Errorf("manifest should pass: %+v", rep.Findings)
	}
	if rep.Summary.Requirements != 2 {
		t.Errorf("Requirements = %d, want 2", rep.Summary.Requirements)
	}
	if got := len(rep.ByRule(RuleUnpinned)); got != 2 {
		t.Errorf("unpinned findings = %d, want 2", got)
	}
	if rep.ID == "" || len(rep.Digest) != 64 || rep.CreatedAt.IsZero() {
		t.Errorf("report identity incomplete: %+v", rep)
	}
	if rep.Environment["python_version"] != "3.11" {
		t.Errorf("Environment = %v", rep.Environment)
	}

	skipped := map[Rule]bool{}
	for _, s := range rep.Skipped {
		skipped[s.Rule] = true
	}
	for _, r := range []Rule{RuleMissing, RuleLockMismatch, RuleUnknownPackage, RuleNoRelease} {
		if !skipped[r] {
			t.Errorf("%s should be skipped", r)
		}
	}
}

func TestRun_Syntax(t *testing.T) {
	rep := run(t, "pyfiglet\nfoo>=>1\n-q\nbar==1.0 ; python_version >\n", Options{})
	got := rep.ByRule(RuleSyntax)
	if len(got) != 3 {
		t.Fatalf("syntax findings = %+v", got)
	}
	for i, line := range []int{2, 3, 4} {
		if got[i].Line != line || got[i].Severity != SeverityError {
			t.Errorf("finding %d = %+v, want line %d", i, got[i], line)
		}
	}
	if !rep.Failed(false) {
		t.Error("syntax errors should fail the report")
	}
}

func TestRun_IncludeFailures(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		entry string
		want  string
		line  int
		src   string
	}{
		{
			name:  "missing include",
			files: map[string]string{"requirements.txt": "-r nope.txt\nsix\n"},
			entry: "requirements.txt",
			want:  "cannot read nope.txt",
			line:  1,
		},
		{
			name:  "include cycle",
			files: map[string]string{"a.txt": "-r b.txt\n", "b.txt": "-r a.txt\nsix\n"},
			entry: "b.txt",
			want:  "include cycle",
			line:  1,
			src:   "a.txt",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}
			rep, err := Run(context.Background(), Input{Path: filepath.Join(dir, tt.entry)}, Options{Environment: py("3.11")})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			got := rep.ByRule(RuleSyntax)
			if len(got) != 1 {
				t.Fatalf("syntax findings = %+v, want 1", got)
			}
			if !strings.Contains(got[0].Message, tt.want) || got[0].Line != tt.line {
				t.Errorf("finding = %+v, want %q on line %d", got[0], tt.want, tt.line)
			}
			if tt.src != "" && filepath.Base(got[0].Source) != tt.src {
				t.Errorf("Source = %q, want %s", got[0].Source, tt.src)
			}
			if !rep.Failed(false) {
				t.Error("include failures should fail the report")
			}
		})
	}
}

func TestRun_Conflicts(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		env       marker.Environment
		conflicts int
		dups      int
	}{
		{"disjoint ranges", "requests>=2.30\nrequests<2.0\n", py("3.11"), 1, 0},
		{"exact pins", "six==1.16.0\nsix==1.15.0\n", py("3.11"), 1, 0},
		{"compatible duplicate", "six>=1\nsix>=1.10\n", py("3.11"), 0, 1},
		{"normalized names", "Foo_Bar==1.0\nfoo.bar==2.0\n", py("3.11"), 1, 0},
		{"inactive marker", "foo<1; python_version<\"3.8\"\nfoo>=2; python_version<\"3.9\"\n", py("3.11"), 0, 0},
		{"both markers true", "foo<1; python_version<\"3.8\"\nfoo>=2; python_version<\"3.9\"\n", py("3.7"), 1, 0},
		{"conditional vs unconditional", "foo<1; python_version<\"3.8\"\nfoo>=2\n", py("3.7"), 1, 0},
		{"unconditional vs active marker", "sphinx>=4\nsphinx<3; python_version<\"3.8\"\n", py("3.7"), 1, 0},
		{"unconditional vs inactive marker", "sphinx>=4\nsphinx<3; python_version<\"3.8\"\n", py("3.11"), 0, 0},
		{"duplicate under active marker", "six>=1\nsix>=1.10; python_version<\"3.8\"\n", py("3.7"), 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := run(t, tt.content, Options{Environment: tt.env})
			if got := len(rep.ByRule(RuleConflict)); got != tt.conflicts {
				t.Errorf("conflicts = %d, want %d: %+v", got, tt.conflicts, rep.Findings)
			}
			if got := len(rep.ByRule(RuleDuplicate)); got != tt.dups {
				t.Errorf("duplicates = %d, want %d", got, tt.dups)
			}
		})
	}
}

func TestRun_ConflictWithConstraintsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "constraints.txt", "urllib3<2\n")
	path := writeFile(t, dir, "requirements.txt", "-c constraints.txt\nurllib3>=2.0\n")

	rep, err := Run(context.Background(), Input{Path: path}, Options{Environment: py("3.11")})
	if err != nil {
		t.Fatal(err)
	}
	got := rep.ByRule(RuleConflict)
	if len(got) != 1 || !strings.Contains(got[0].Message, "constraints.txt") {
		t.Errorf("conflict findings = %+v", got)
	}
}

func TestRun_MarkerEvaluation(t *testing.T) {
	env := marker.Environment{"python_version": "3.11"}
	rep := run(t, "colorama; sys_platform == \"win32\"\nrich; python_version >= \"3.8\"\n", Options{Environment: env})
	got := rep.ByRule(RuleMarker)
	if len(got) != 1 || got[0].Package != "colorama" {
		t.Errorf("marker findings = %+v", got)
	}
}

func TestRun_InstallMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "setup.cfg", `[metadata]
name = hello-cli

[options]
install_requires =
    pyfiglet>=0.8
    importlib-metadata; python_version<"3.8"
    click>=8
    requests<2
`)
	path := writeFile(t, dir, "requirements.txt", docsRequirements+"requests>=2.28\n")

	tests := []struct {
		python   string
		missing  []string
		mismatch int
	}{
		{"3.11", []string{"click"}, 1},
		{"3.7", []string{"click"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.python, func(t *testing.T) {
			rep, err := Run(context.Background(), Input{Path: path}, Options{Environment: py(tt.python), DiscoverMetadata: true})
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasSuffix(rep.Metadata, "setup.cfg") {
				t.Errorf("Metadata = %q", rep.Metadata)
			}
			missing := rep.ByRule(RuleMissing)
			if len(missing) != len(tt.missing) {
				t.Fatalf("missing = %+v", missing)
			}
			for i, name := range tt.missing {
				if missing[i].Package != name {
					t.Errorf("missing[%d] = %s, want %s", i, missing[i].Package, name)
				}
			}
			if got := len(rep.ByRule(RuleConstraintMismatch)); got != tt.mismatch {
				t.Errorf("constraint mismatches = %d, want %d", got, tt.mismatch)
			}
		})
	}
}

func TestRun_MetadataSkippedWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "requirements.txt", docsRequirements)
	rep, err := Run(context.Background(), Input{Path: path}, Options{DiscoverMetadata: true})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range rep.Skipped {
		if s.Rule == RuleMissing && strings.Contains(s.Reason, "setup.cfg") {
			found = true
		}
	}
	if !found {
		t.Errorf("Skipped = %+v", rep.Skipped)
	}
}

func TestRun_Lock(t *testing.T) {
	dir := t.TempDir()
	lock := writeFile(t, dir, "poetry.lock", `[[package]]
name = "requests"
version = "2.31.0"

[[package]]
name = "six"
version = "1.16.0"
`)
	rep, err := Run(context.Background(), Input{
		Path:     "requirements.txt",
		Content:  []byte("requests<2.30\nsix>=1.10\nattrs\n"),
		LockPath: lock,
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := rep.ByRule(RuleLockMismatch)
	if len(got) != 2 {
		t.Fatalf("lock findings = %+v", got)
	}
	if got[0].Package != "requests" || got[0].Severity != SeverityError {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Package != "attrs" || got[1].Severity != SeverityWarning {
		t.Errorf("second = %+v", got[1])
	}
}

type fakeIndex struct {
	mu       sync.Mutex
	calls    map[string]int
	releases map[string][]string
	fail     map[string]error
}

func (f *fakeIndex) FetchPackage(ctx context.Context, name string, refresh bool) (*pypi.PackageInfo, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	f.mu.Unlock()
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	rel, ok := f.releases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integrations.ErrNotFound, name)
	}
	return &pypi.PackageInfo{Name: name, Version: rel[len(rel)-1], Releases: rel}, nil
}

func TestRun_Online(t *testing.T) {
	idx := &fakeIndex{
		releases: map[string][]string{
			"pyfiglet": {"0.8.post1", "1.0.2"},
			"requests": {"2.31.0"},
			"rich":     {"13.0.0", "14.0.0b1"},
		},
		fail: map[string]error{"flaky": errors.New("connection reset")},
	}
	content := "pyfiglet>=0.8\nrequests>=3\nnot-a-real-pkg\nrich>=14.0.0b1\nflaky\nwinonly; sys_platform == \"win32\"\npyfiglet\n"
	rep := run(t, content, Options{Environment: py("3.11"), Online: true, Index: idx})

	if got := rep.ByRule(RuleNoRelease); len(got) != 1 || got[0].Package != "requests" {
		t.Errorf("no-release = %+v", got)
	}
	unknown := rep.ByRule(RuleUnknownPackage)
	if len(unknown) != 2 {
		t.Fatalf("unknown-package = %+v", unknown)
	}
	if unknown[0].Package != "not-a-real-pkg" || unknown[0].Severity != SeverityError {
		t.Errorf("unknown[0] = %+v", unknown[0])
	}
	if unknown[1].Package != "flaky" || unknown[1].Severity != SeverityWarning {
		t.Errorf("unknown[1] = %+v", unknown[1])
	}
	if idx.calls["pyfiglet"] != 1 {
		t.Errorf("pyfiglet fetched %d times, want 1", idx.calls["pyfiglet"])
	}
	if idx.calls["winonly"] != 0 {
		t.Error("inactive requirements should not be looked up")
	}
}

func TestRun_Disable(t *testing.T) {
	rep := run(t, "requests>=2.30\nrequests<2.0\nsix\n", Options{Disable: []Rule{RuleConflict, RuleUnpinned}})
	if len(rep.Findings) != 0 {
		t.Errorf("disabled rules produced findings: %+v", rep.Findings)
	}
}

func TestRun_Errors(t *testing.T) {
	if _, err := Run(context.Background(), Input{}, Options{}); err == nil {
		t.Error("expected error without a manifest")
	}
	if _, err := Run(context.Background(), Input{Path: filepath.Join(t.TempDir(), "nope.txt")}, Options{}); err == nil {
		t.Error("expected error for missing file")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, Input{Path: "r.txt", Content: []byte("six\n")}, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled run error = %v", err)
	}
}

type recordingHooks struct {
	observability.NoopCheckHooks
	mu       sync.Mutex
	started  int
	complete int
	rules    map[string]int
}

func (h *recordingHooks) OnCheckStart(context.Context, string) { h.started++ }
func (h *recordingHooks) OnCheckComplete(context.Context, string, int, time.Duration, error) {
	h.complete++
}
func (h *recordingHooks) OnRule(_ context.Context, rule string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rules[rule] = n
}

func TestRun_Hooks(t *testing.T) {
	h := &recordingHooks{rules: map[string]int{}}
	observability.SetCheckHooks(h)
	defer observability.Reset()

	run(t, "six\nsix\n", Options{})
	if h.started != 1 || h.complete != 1 {
		t.Errorf("start/complete = %d/%d", h.started, h.complete)
	}
	if h.rules["duplicate"] != 1 || h.rules["unpinned"] != 2 {
		t.Errorf("rule counts = %v", h.rules)
	}
}

func TestReportFailed(t *testing.T) {
	tests := []struct {
		summary Summary
		strict  bool
		want    bool
	}{
		{Summary{}, true, false},
		{Summary{Infos: 3}, true, false},
		{Summary{Warnings: 1}, false, false},
		{Summary{Warnings: 1}, true, true},
		{Summary{Errors: 1}, false, true},
	}
	for _, tt := range tests {
		r := &Report{Summary: tt.summary}
		if got := r.Failed(tt.strict); got != tt.want {
			t.Errorf("Failed(%v) with %+v = %v, want %v", tt.strict, tt.summary, got, tt.want)
		}
	}
}
