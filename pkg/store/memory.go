package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/reqlint/pkg/check"
	errs "github.com/matzehuels/reqlint/pkg/errors"
)

// Memory is a [Store] held in process memory. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	reports map[string]*check.Report
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{reports: make(map[string]*check.Report)}
}

func (m *Memory) SaveReport(_ context.Context, r *check.Report) error {
	if r == nil || r.ID == "" {
		return errs.New(errs.ErrCodeInvalidInput, "report has no id")
	}
	cp := *r
	m.mu.Lock()
	m.reports[r.ID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetReport(_ context.Context, id string) (*check.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, errs.New(errs.ErrCodeReportNotFound, "report %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) ListReports(_ context.Context, opts ListOptions) ([]ReportSummary, error) {
	opts = opts.WithDefaults()
	m.mu.RLock()
	out := make([]ReportSummary, 0, len(m.reports))
	for _, r := range m.reports {
		if opts.Manifest != "" && r.Manifest != opts.Manifest {
			continue
		}
		out = append(out, Summarize(r))
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b ReportSummary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
