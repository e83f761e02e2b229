package hashindex

import (
	"io"
	"log/slog"
)

// Logger is the narrow structured-logging surface the index depends
// on, wrapping *slog.Logger so tests can inject a discard logger
// without pulling in slog's handler plumbing.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// discardLogger implements Logger by dropping everything; used when no
// Logger is configured.
type discardLogger struct{ l *slog.Logger }

func newDiscardLogger() Logger {
	return discardLogger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (d discardLogger) Info(msg string, args ...any)  { d.l.Info(msg, args...) }
func (d discardLogger) Warn(msg string, args ...any)  { d.l.Warn(msg, args...) }
func (d discardLogger) Error(msg string, args ...any) { d.l.Error(msg, args...) }

// NewSlogLogger adapts an existing *slog.Logger to the Logger
// interface, for production callers that already configure slog (e.g.
// the hashidx CLI).
func NewSlogLogger(l *slog.Logger) Logger {
	return slogLogger{l: l}
}

type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
