package torque

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is torque's leveled logging surface. It wraps log/slog rather
// than reinventing formatting, since nothing in the ecosystem this module
// draws on rolls its own logging library.
type Logger struct {
	slog *slog.Logger
}

// newLogger returns a Logger writing structured text to os.Stdout at debug
// level when debug is true, info level otherwise.
func newLogger(appName string, debug bool) *Logger {
	return NewLogger(os.Stdout, appName, debug)
}

// NewLogger returns a Logger writing structured text to w, for callers
// that want torque's log lines routed somewhere other than stdout (a
// file, a test buffer, a log-shipping pipe).
func NewLogger(w io.Writer, appName string, debug bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{slog: slog.New(h).With("app", appName)}
}

// With returns a Logger that attaches the given key/value pairs to every
// subsequent log line, e.g. per-request request-id correlation.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// ErrorCtx logs at error level with an associated context, so a slog
// handler wired to a tracing backend can pull a span out of ctx.
func (l *Logger) ErrorCtx(ctx context.Context, msg string, args ...any) {
	l.slog.ErrorContext(ctx, msg, args...)
}
