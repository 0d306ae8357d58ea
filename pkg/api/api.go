package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/reqlint/pkg/check"
	"github.com/matzehuels/reqlint/pkg/deps"
	"github.com/matzehuels/reqlint/pkg/deps/python"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/marker"
	"github.com/matzehuels/reqlint/pkg/requirements"
	"github.com/matzehuels/reqlint/pkg/store"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// Options configures a [Server].
type Options struct {
	// Store records check reports. Nil disables /v1/reports and recording.
	Store store.Store
	// Index enables online checks when set.
	Index check.Index
	// Environment is the default marker environment.
	Environment marker.Environment
	Logger      *log.Logger
	Timeout     time.Duration // per request, default 60s
}

// Server is the HTTP API.
type Server struct {
	opts Options
}

// New returns a server with defaults applied.
func New(opts Options) *Server {
	if opts.Environment == nil {
		opts.Environment = marker.DefaultEnvironment()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Server{opts: opts}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.Timeout))

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/parse", s.parse)
		r.Post("/check", s.check)
		r.Post("/markers/evaluate", s.evaluate)
		r.Get("/reports", s.listReports)
		r.Get("/reports/{id}", s.getReport)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.opts.Logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(errs.ErrCodeNetwork, err, "serve %s", addr)
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return errs.Wrap(errs.ErrCodeInternal, err, "shutdown")
		}
		return ctx.Err()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ParseResponse is returned by /v1/parse.
type ParseResponse struct {
	Manifest *requirements.Manifest `json:"manifest"`
	Errors   []LineError            `json:"errors"`
}

// LineError is a syntax error in API form.
type LineError struct {
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

func (s *Server) parse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, errs.Wrap(errs.ErrCodeInvalidInput, err, "read body"))
		return
	}
	m, err := requirements.ParseBytes("", body, requirements.Options{})
	if m == nil {
		writeError(w, err)
		return
	}
	resp := ParseResponse{Manifest: m, Errors: []LineError{}}
	for _, le := range m.AllErrors() {
		resp.Errors = append(resp.Errors, LineError{Line: le.Line, Text: le.Text, Message: le.Message()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CheckRequest is the body of /v1/check.
type CheckRequest struct {
	Manifest      string `json:"manifest"`
	Name          string `json:"name,omitempty"` // label stored with the report
	Metadata      string `json:"metadata,omitempty"`
	MetadataType  string `json:"metadata_type,omitempty"` // setup.cfg or pyproject.toml
	PythonVersion string `json:"python_version,omitempty"`
	Online        bool   `json:"online,omitempty"`
	Record        *bool  `json:"record,omitempty"` // default true when a store is set
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Manifest) == "" {
		writeError(w, errs.New(errs.ErrCodeInvalidInput, "manifest is required"))
		return
	}
	if req.Name != "" {
		if err := errs.ValidatePath(req.Name); err != nil {
			writeError(w, err)
			return
		}
	}

	env := s.opts.Environment
	if req.PythonVersion != "" {
		env = env.WithPythonVersion(req.PythonVersion)
	}
	meta, err := parseMetadata(req.Metadata, req.MetadataType, env)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Online && s.opts.Index == nil {
		writeError(w, errs.New(errs.ErrCodeUnsupported, "online checks are not enabled on this server"))
		return
	}

	rep, err := check.Run(r.Context(), check.Input{Content: []byte(req.Manifest), Metadata: meta}, check.Options{
		Environment: env,
		Online:      req.Online,
		Index:       s.opts.Index,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Name != "" {
		rep.Manifest = req.Name
	}
	if s.opts.Store != nil && (req.Record == nil || *req.Record) {
		if err := s.opts.Store.SaveReport(r.Context(), rep); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, rep)
}

// parseMetadata parses uploaded install metadata through the file parsers.
func parseMetadata(content, kind string, env marker.Environment) (*deps.ManifestResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	if kind == "" {
		kind = "pyproject.toml"
		if strings.Contains(content, "[options]") || strings.Contains(content, "[metadata]") {
			kind = "setup.cfg"
		}
	}
	switch kind {
	case "setup.cfg", "pyproject.toml":
	default:
		return nil, errs.New(errs.ErrCodeInvalidInput, "metadata_type must be setup.cfg or pyproject.toml, got %q", kind)
	}

	dir, err := os.MkdirTemp("", "reqlint-api-*")
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "create temp dir")
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, kind)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "write metadata")
	}
	res, err := python.ParseMetadata(path, deps.Options{Environment: env})
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", kind)
	}
	res.Type = kind
	return res, nil
}

// EvaluateRequest is the body of /v1/markers/evaluate. Environment entries
// override the server default; python_version also sets
// python_full_version.
type EvaluateRequest struct {
	Marker      string            `json:"marker"`
	Environment map[string]string `json:"environment,omitempty"`
}

type EvaluateResponse struct {
	Marker string `json:"marker"`
	Result bool   `json:"result"`
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	m, err := marker.Parse(req.Marker)
	if err != nil {
		writeError(w, err)
		return
	}
	env := s.opts.Environment
	if v, ok := req.Environment[marker.PythonVersion]; ok {
		env = env.WithPythonVersion(v)
	}
	env = env.Clone()
	for k, v := range req.Environment {
		if k != marker.PythonVersion {
			env[k] = v
		}
	}
	ok, err := m.Evaluate(env)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{Marker: m.String(), Result: ok})
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, errs.New(errs.ErrCodeUnsupported, "no report store configured"))
		return
	}
	opts := store.ListOptions{Manifest: r.URL.Query().Get("manifest")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, errs.New(errs.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		opts.Limit = n
	}
	list, err := s.opts.Store.ListReports(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, errs.New(errs.ErrCodeUnsupported, "no report store configured"))
		return
	}
	rep, err := s.opts.Store.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "decode request body")
	}
	return nil
}
