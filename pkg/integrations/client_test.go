package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/reqlint/pkg/cache"
	errs "github.com/matzehuels/reqlint/pkg/errors"
)

func newTestClient(t *testing.T, srv *httptest.Server, headers map[string]string) *Client {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewClient(c, "test:", time.Hour, headers).WithHTTPClient(srv.Client())
}

func TestNewClient_NilCache(t *testing.T) {
	client := NewClient(nil, "test:", time.Hour, nil)
	if client.cache == nil {
		t.Error("nil backend should fall back to a null cache")
	}
	if client.headers != nil {
		t.Error("nil headers should stay nil")
	}
}

func TestClientGet(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.Header.Get("User-Agent"); got != "reqlint-test" {
			t.Errorf("User-Agent = %q", got)
		}
		_ = json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, map[string]string{"User-Agent": "reqlint-test"})
	var resp response
	if err := client.Get(context.Background(), srv.URL, &resp); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("message = %q, want hello", resp.Message)
	}
}

func TestClientGetWithHeaders_OverridesDefaults(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, map[string]string{"Accept": "text/html"})
	var v map[string]any
	if err := client.GetWithHeaders(context.Background(), srv.URL, map[string]string{"Accept": "application/json"}, &v); err != nil {
		t.Fatal(err)
	}
	if got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}
}

func TestClientGetText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Metadata-Version: 2.1\n"))
	}))
	defer srv.Close()

	text, err := newTestClient(t, srv, nil).GetText(context.Background(), srv.URL)
	if err != nil || text != "Metadata-Version: 2.1\n" {
		t.Errorf("GetText() = %q, %v", text, err)
	}
}

func TestClientGet_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"404", http.StatusNotFound, func(err error) bool { return errors.Is(err, ErrNotFound) }},
		{"500 retryable", http.StatusInternalServerError, cache.IsRetryable},
		{"429 rate limited", http.StatusTooManyRequests, func(err error) bool {
			var rl *errs.RateLimitedError
			return errors.As(err, &rl) && rl.RetryAfter == 7 && cache.IsRetryable(err)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			var v any
			err := newTestClient(t, srv, nil).Get(context.Background(), srv.URL, &v)
			if err == nil || !tt.check(err) {
				t.Errorf("Get() error = %v (%T)", err, err)
			}
		})
	}
}

func TestClientCached(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	client := newTestClient(t, srv, nil)

	type payload struct {
		Value string `json:"value"`
	}
	var fetches int32
	fetch := func(v *payload) func() error {
		return func() error {
			atomic.AddInt32(&fetches, 1)
			v.Value = "fetched"
			return nil
		}
	}

	var first payload
	if err := client.Cached(context.Background(), "requests", false, &first, fetch(&first)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	var second payload
	if err := client.Cached(context.Background(), "requests", false, &second, fetch(&second)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1 (second call should hit the cache)", fetches)
	}
	if second.Value != "fetched" {
		t.Errorf("cached value = %q", second.Value)
	}

	var third payload
	_ = client.Cached(context.Background(), "requests", true, &third, fetch(&third))
	if fetches != 2 {
		t.Errorf("refresh should bypass the cache, fetches = %d", fetches)
	}
}

func TestClientCached_FetchError(t *testing.T) {
	client := NewClient(cache.NewNullCache(), "test:", time.Hour, nil)
	var v string
	err := client.Cached(context.Background(), "missing", false, &v, func() error { return ErrNotFound })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Cached() error = %v, want ErrNotFound", err)
	}
}

func TestClientCached_ScopedKeyer(t *testing.T) {
	backend, _ := cache.NewFileCache(t.TempDir())
	pypi := NewClient(backend, "pypi:", time.Hour, nil)
	private := pypi.WithKeyer(cache.NewScopedKeyer(nil, "index:corp:"))

	var a, b string
	_ = pypi.Cached(context.Background(), "six", false, &a, func() error { a = "public"; return nil })
	_ = private.Cached(context.Background(), "six", false, &b, func() error { b = "private"; return nil })
	if b != "private" {
		t.Errorf("scoped client read the unscoped entry: %q", b)
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		code      int
		wantErr   bool
		retryable bool
	}{
		{200, false, false},
		{404, true, false},
		{400, true, false},
		{403, true, false},
		{429, true, true},
		{500, true, true},
		{502, true, true},
		{503, true, true},
	}
	for _, tt := range tests {
		err := checkStatus(tt.code)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkStatus(%d) = %v, wantErr %v", tt.code, err, tt.wantErr)
		}
		if cache.IsRetryable(err) != tt.retryable {
			t.Errorf("checkStatus(%d) retryable = %v, want %v", tt.code, !tt.retryable, tt.retryable)
		}
	}
}
