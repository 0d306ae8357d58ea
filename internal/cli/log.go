package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, e.g. "Checked 12 requirements (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// logf adapts the logger to the func(string, ...any) callbacks taken by the
// library packages. Library progress is debug output.
func logf(l *log.Logger) func(string, ...any) {
	return func(format string, args ...any) { l.Debugf(format, args...) }
}

// logHooks reports observability events at debug level.
type logHooks struct{ l *log.Logger }

func (h logHooks) OnCheckStart(_ context.Context, manifest string) {
	h.l.Debug("check started", "manifest", manifest)
}

func (h logHooks) OnCheckComplete(_ context.Context, manifest string, findings int, d time.Duration, err error) {
	if err != nil {
		h.l.Debug("check failed", "manifest", manifest, "error", err)
		return
	}
	h.l.Debug("check complete", "manifest", manifest, "findings", findings, "duration", d.Round(time.Millisecond))
}

func (h logHooks) OnRule(_ context.Context, rule string, findings int) {
	h.l.Debug("rule", "name", rule, "findings", findings)
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.l.Debug("cache hit", "key", keyType)
}

func (h logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.l.Debug("cache miss", "key", keyType)
}

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.l.Debug("cache set", "key", keyType, "bytes", size)
}

func (h logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.l.Debug("http request", "method", method, "host", host, "path", path)
}

func (h logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.l.Debug("http response", "host", host, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.l.Warn("http error", "method", method, "host", host, "path", path, "error", err)
}
