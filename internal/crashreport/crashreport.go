// Package crashreport forwards unexpected errors to an error sink.
package crashreport

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Reporter receives errors that are worth a crash report.
type Reporter interface {
	ReportIfNeeded(err error)
}

// Nop drops every report.
type Nop struct{}

func (Nop) ReportIfNeeded(error) {}

// Logger writes reports to a zap logger at error level. Cancellations are
// expected during shutdown and are not reported.
type Logger struct {
	log *zap.Logger
}

func NewLogger(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log.Named("crashreport")}
}

func (l *Logger) ReportIfNeeded(err error) {
	if !ShouldReport(err) {
		return
	}
	l.log.Error("unexpected error", zap.Error(err))
}

// ShouldReport filters out nil errors and context cancellation.
func ShouldReport(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Recorder keeps reports in memory; useful in tests and for a status panel.
type Recorder struct {
	mu     sync.Mutex
	errors []error
}

func (r *Recorder) ReportIfNeeded(err error) {
	if !ShouldReport(err) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *Recorder) Reports() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}
