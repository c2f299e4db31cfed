package optimistic

import (
	"log/slog"
)

// ErrorReporter receives every error that rolled a mutation back.
// Implementations must be safe for concurrent use.
type ErrorReporter interface {
	ReportError(m *Mutation, err error)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(m *Mutation, err error)

// ReportError implements ErrorReporter.
func (f ReporterFunc) ReportError(m *Mutation, err error) { f(m, err) }

// LogReporter reports errors through slog.
type LogReporter struct {
	Logger *slog.Logger
}

// ReportError implements ErrorReporter.
func (r LogReporter) ReportError(m *Mutation, err error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("mutation rolled back",
		"kind", m.Kind(),
		"subject", m.Subject(),
		"error", err)
}
