// Package store persists check reports.
//
// Three backends implement [Store]: an in-memory store for tests and
// short-lived servers, SQLite (package sqlite, the CLI default) and MongoDB
// (package mongo, for shared server deployments).
package store

import (
	"context"
	"time"

	"github.com/matzehuels/reqlint/pkg/check"
)

// DefaultListLimit caps [Store.ListReports] when no limit is given.
const DefaultListLimit = 50

// Store saves and retrieves check reports.
type Store interface {
	// SaveReport stores r, replacing any report with the same ID.
	SaveReport(ctx context.Context, r *check.Report) error
	// GetReport returns the report with the given ID, or an error with code
	// REPORT_NOT_FOUND.
	GetReport(ctx context.Context, id string) (*check.Report, error)
	// ListReports returns report summaries, newest first.
	ListReports(ctx context.Context, opts ListOptions) ([]ReportSummary, error)
	Close() error
}

// ListOptions filters [Store.ListReports].
type ListOptions struct {
	Limit    int    // default DefaultListLimit
	Manifest string // only reports for this manifest label
}

// WithDefaults fills zero values.
func (o ListOptions) WithDefaults() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	return o
}

// ReportSummary is the listing form of a report.
type ReportSummary struct {
	ID        string        `json:"id" bson:"_id" db:"id"`
	Manifest  string        `json:"manifest" bson:"manifest" db:"manifest"`
	Digest    string        `json:"digest" bson:"digest" db:"digest"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at" db:"created_at"`
	Summary   check.Summary `json:"summary" bson:"summary" db:"-"`
}

// Summarize returns the listing form of r.
func Summarize(r *check.Report) ReportSummary {
	return ReportSummary{
		ID:        r.ID,
		Manifest:  r.Manifest,
		Digest:    r.Digest,
		CreatedAt: r.CreatedAt,
		Summary:   r.Summary,
	}
}
