package resolve

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/integrations"
	"github.com/matzehuels/reqlint/pkg/integrations/pypi"
	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/requirements"
)

type fakeIndex map[string][]string

func (f fakeIndex) FetchPackage(ctx context.Context, name string, refresh bool) (*pypi.PackageInfo, error) {
	rel, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integrations.ErrNotFound, name)
	}
	return &pypi.PackageInfo{Name: name, Releases: rel}, nil
}

var index = fakeIndex{
	"pyfiglet":           {"0.8.post1", "1.0.2"},
	"importlib-metadata": {"6.8.0", "7.0.0"},
	"requests":           {"2.28.2", "2.31.0", "3.0.0a1"},
	"rich":               {"13.7.0", "14.0.0b1"},
}

func parse(t *testing.T, content string) *requirements.Manifest {
	t.Helper()
	m, err := requirements.Parse(strings.NewReader(content), requirements.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestPin(t *testing.T) {
	m := parse(t, `pyfiglet
importlib-metadata; python_version<"3.8"
requests[socks]>=2.28
requests<2.31
rich
`)
	tests := []struct {
		python string
		want   []string
	}{
		{"3.11", []string{"pyfiglet==1.0.2", "requests[socks]==2.28.2", "rich==13.7.0"}},
		{"3.7", []string{"pyfiglet==1.0.2", `importlib-metadata==7.0.0; python_version < "3.8"`, "requests[socks]==2.28.2", "rich==13.7.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.python, func(t *testing.T) {
			env := marker.Platform("linux", "amd64").WithPythonVersion(tt.python)
			res, err := Pin(context.Background(), m, env, index, Options{})
			if err != nil {
				t.Fatalf("Pin() error = %v", err)
			}
			if len(res.Pins) != len(tt.want) {
				t.Fatalf("pins = %v", res.Pins)
			}
			for i, want := range tt.want {
				if got := res.Pins[i].String(); got != want {
					t.Errorf("pin %d = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestPin_Prereleases(t *testing.T) {
	env := marker.Platform("linux", "amd64")
	tests := []struct {
		name    string
		content string
		opts    Options
		want    string
	}{
		{"stable by default", "rich\n", Options{}, "rich==13.7.0"},
		{"option", "rich\n", Options{Prereleases: true}, "rich==14.0.0b1"},
		{"--pre in manifest", "--pre\nrich\n", Options{}, "rich==14.0.0b1"},
		{"specifier names a pre-release", "rich>=14.0.0b1\n", Options{}, "rich==14.0.0b1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Pin(context.Background(), parse(t, tt.content), env, index, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if got := res.Pins[0].String(); got != tt.want {
				t.Errorf("pin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPin_Unresolved(t *testing.T) {
	m := parse(t, "pyfiglet>=5\nghost\nmylib @ https://example.com/mylib-1.0.tar.gz\n")
	res, err := Pin(context.Background(), m, marker.Platform("linux", "amd64"), index, Options{})
	if !errs.Is(err, errs.ErrCodePackageNotFound) {
		t.Fatalf("Pin() error = %v", err)
	}
	if len(res.Unresolved) != 2 || res.Unresolved[0].Name != "pyfiglet" || res.Unresolved[1].Name != "ghost" {
		t.Errorf("Unresolved = %+v", res.Unresolved)
	}
	if len(res.Pins) != 1 || res.Pins[0].URL == "" {
		t.Errorf("URL requirement should be kept: %+v", res.Pins)
	}
}

func TestResultWriteTo(t *testing.T) {
	env := marker.Platform("linux", "amd64").WithPythonVersion("3.11")
	res, err := Pin(context.Background(), parse(t, "pyfiglet\n"), env, index, Options{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := res.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "# Pinned by reqlint for python_version=3.11 sys_platform=linux") {
		t.Errorf("header = %q", out)
	}
	if !strings.Contains(out, "\npyfiglet==1.0.2\n") {
		t.Errorf("output = %q", out)
	}
	again, err := requirements.Parse(strings.NewReader(out), requirements.Options{})
	if err != nil || len(again.Requirements()) != 1 {
		t.Errorf("pinned output should parse back: %v", err)
	}
}
