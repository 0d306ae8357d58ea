package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matzehuels/reqlint/pkg/check"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/store"
)

const docsManifest = `sphinx>=4.0
pygame
pyfiglet
importlib-metadata; python_version<"3.8"
`

func newTestServer(t *testing.T, st store.Store) *httptest.Server {
	t.Helper()
	srv := New(Options{
		Store:       st,
		Environment: marker.Platform("linux", "amd64").WithPythonVersion("3.11"),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := get(t, ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestParse(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := post(t, ts.URL+"/v1/parse", docsManifest+"not a valid ==\n")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Manifest struct {
			Entries []struct {
				Kind        string `json:"kind"`
				Requirement struct {
					Name   string `json:"name"`
					Marker string `json:"marker"`
				} `json:"requirement"`
			} `json:"entries"`
		} `json:"manifest"`
		Errors []LineError `json:"errors"`
	}
	decode(t, resp, &out)

	if len(out.Manifest.Entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(out.Manifest.Entries))
	}
	last := out.Manifest.Entries[3].Requirement
	if last.Name != "importlib-metadata" || last.Marker != `python_version < "3.8"` {
		t.Errorf("entry 4 = %+v", last)
	}
	if len(out.Errors) != 1 || out.Errors[0].Line != 5 {
		t.Errorf("errors = %+v, want one on line 5", out.Errors)
	}
}

func TestCheck(t *testing.T) {
	st := store.NewMemory()
	ts := newTestServer(t, st)

	body, _ := json.Marshal(CheckRequest{
		Manifest: docsManifest + "sphinx<4\n",
		Name:     "docs/requirements.txt",
		Metadata: "[options]\ninstall_requires =\n    sphinx\n    docutils\n",
	})
	resp := post(t, ts.URL+"/v1/check", string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var rep check.Report
	decode(t, resp, &rep)

	if rep.Manifest != "docs/requirements.txt" {
		t.Errorf("Manifest = %q", rep.Manifest)
	}
	if len(rep.ByRule(check.RuleConflict)) != 1 {
		t.Errorf("conflict findings = %+v", rep.ByRule(check.RuleConflict))
	}
	missing := rep.ByRule(check.RuleMissing)
	if len(missing) != 1 || missing[0].Package != "docutils" {
		t.Errorf("missing findings = %+v", missing)
	}

	resp = get(t, ts.URL+"/v1/reports/"+rep.ID)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stored report status = %d", resp.StatusCode)
	}

	var list []store.ReportSummary
	decode(t, get(t, ts.URL+"/v1/reports?manifest=docs/requirements.txt"), &list)
	if len(list) != 1 || list[0].ID != rep.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestCheck_NoRecord(t *testing.T) {
	st := store.NewMemory()
	ts := newTestServer(t, st)

	resp := post(t, ts.URL+"/v1/check", `{"manifest":"pyfiglet\n","record":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	list, _ := st.ListReports(t.Context(), store.ListOptions{})
	if len(list) != 0 {
		t.Errorf("stored %d reports, want 0", len(list))
	}
}

func TestEvaluate(t *testing.T) {
	ts := newTestServer(t, nil)
	tests := []struct {
		python string
		want   bool
	}{
		{"3.7", true},
		{"3.9", false},
		{"3.11", false},
	}
	for _, tt := range tests {
		t.Run(tt.python, func(t *testing.T) {
			body, _ := json.Marshal(EvaluateRequest{
				Marker:      `python_version<"3.8"`,
				Environment: map[string]string{"python_version": tt.python},
			})
			resp := post(t, ts.URL+"/v1/markers/evaluate", string(body))
			var out EvaluateResponse
			decode(t, resp, &out)
			if out.Result != tt.want {
				t.Errorf("result = %v, want %v", out.Result, tt.want)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	ts := newTestServer(t, store.NewMemory())
	noStore := newTestServer(t, nil)

	tests := []struct {
		name   string
		resp   func() *http.Response
		status int
		code   errs.Code
	}{
		{"bad marker", func() *http.Response {
			return post(t, ts.URL+"/v1/markers/evaluate", `{"marker":"python_version <"}`)
		}, http.StatusBadRequest, errs.ErrCodeInvalidMarker},
		{"bad json", func() *http.Response {
			return post(t, ts.URL+"/v1/check", `{`)
		}, http.StatusBadRequest, errs.ErrCodeInvalidInput},
		{"empty manifest", func() *http.Response {
			return post(t, ts.URL+"/v1/check", `{"manifest":""}`)
		}, http.StatusBadRequest, errs.ErrCodeInvalidInput},
		{"bad metadata type", func() *http.Response {
			return post(t, ts.URL+"/v1/check", `{"manifest":"x","metadata":"a","metadata_type":"setup.py"}`)
		}, http.StatusBadRequest, errs.ErrCodeInvalidInput},
		{"name escapes root", func() *http.Response {
			return post(t, ts.URL+"/v1/check", `{"manifest":"sphinx","name":"../etc/requirements.txt"}`)
		}, http.StatusBadRequest, errs.ErrCodeInvalidPath},
		{"unknown report", func() *http.Response {
			return get(t, ts.URL+"/v1/reports/nope")
		}, http.StatusNotFound, errs.ErrCodeReportNotFound},
		{"bad limit", func() *http.Response {
			return get(t, ts.URL+"/v1/reports?limit=x")
		}, http.StatusBadRequest, errs.ErrCodeInvalidInput},
		{"no store", func() *http.Response {
			return get(t, noStore.URL+"/v1/reports")
		}, http.StatusInternalServerError, errs.ErrCodeUnsupported},
		{"online without index", func() *http.Response {
			return post(t, ts.URL+"/v1/check", `{"manifest":"x","online":true}`)
		}, http.StatusInternalServerError, errs.ErrCodeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.resp()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var out ErrorResponse
			decode(t, resp, &out)
			if out.Code != tt.code {
				t.Errorf("code = %q, want %q", out.Code, tt.code)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[errs.Code]int{
		errs.ErrCodeInvalidSpecifier: http.StatusBadRequest,
		errs.ErrCodeInvalidManifest:  http.StatusBadRequest,
		errs.ErrCodePackageNotFound:  http.StatusNotFound,
		errs.ErrCodeNotFound:         http.StatusNotFound,
		errs.ErrCodeNetwork:          http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := statusFor(code); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", code, got, want)
		}
	}
}
