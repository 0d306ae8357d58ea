// Package sqlite stores check reports in a SQLite database.
//
// The schema is managed with goose migrations embedded in the binary and
// applied by [Open]. The full report is kept as a JSON document next to the
// columns used for listing.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/matzehuels/reqlint/pkg/check"
	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/store"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store is a SQLite-backed [store.Store].
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to the database file at path, creating it and its directory
// when missing, and applies pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "create %s", dir)
		}
	}
	db, err := sqlx.Connect("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "connect to %s", path)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "set migration dialect")
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "apply migrations")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close report store: %w", err)
	}
	return nil
}

type row struct {
	ID        string    `db:"id"`
	Manifest  string    `db:"manifest"`
	Digest    string    `db:"digest"`
	CreatedAt time.Time `db:"created_at"`
	Reqs      int       `db:"requirements"`
	Errors    int       `db:"errors"`
	Warnings  int       `db:"warnings"`
	Infos     int       `db:"infos"`
	Body      []byte    `db:"body"`
}

func (s *Store) SaveReport(ctx context.Context, r *check.Report) error {
	if r == nil || r.ID == "" {
		return errs.New(errs.ErrCodeInvalidInput, "report has no id")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "encode report")
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO reports (id, manifest, digest, created_at, requirements, errors, warnings, infos, body)
		VALUES (:id, :manifest, :digest, :created_at, :requirements, :errors, :warnings, :infos, :body)
		ON CONFLICT(id) DO UPDATE SET
			manifest = excluded.manifest, digest = excluded.digest,
			created_at = excluded.created_at, requirements = excluded.requirements,
			errors = excluded.errors,
			warnings = excluded.warnings, infos = excluded.infos, body = excluded.body`,
		row{
			ID:        r.ID,
			Manifest:  r.Manifest,
			Digest:    r.Digest,
			CreatedAt: r.CreatedAt.UTC(),
			Reqs:      r.Summary.Requirements,
			Errors:    r.Summary.Errors,
			Warnings:  r.Summary.Warnings,
			Infos:     r.Summary.Infos,
			Body:      body,
		})
	if err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "save report %s", r.ID)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*check.Report, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, `SELECT body FROM reports WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.ErrCodeReportNotFound, "report %s not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "load report %s", id)
	}
	var r check.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "decode report %s", id)
	}
	return &r, nil
}

func (s *Store) ListReports(ctx context.Context, opts store.ListOptions) ([]store.ReportSummary, error) {
	opts = opts.WithDefaults()
	query := `SELECT id, manifest, digest, created_at, requirements, errors, warnings, infos FROM reports`
	var args []any
	if opts.Manifest != "" {
		query += ` WHERE manifest = ?`
		args = append(args, opts.Manifest)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, opts.Limit)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "list reports")
	}
	out := make([]store.ReportSummary, len(rows))
	for i, r := range rows {
		out[i] = store.ReportSummary{
			ID:        r.ID,
			Manifest:  r.Manifest,
			Digest:    r.Digest,
			CreatedAt: r.CreatedAt,
			Summary:   check.Summary{Requirements: r.Reqs, Errors: r.Errors, Warnings: r.Warnings, Infos: r.Infos},
		}
	}
	return out, nil
}
