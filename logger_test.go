package torque

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{slog: slog.New(slog.NewTextHandler(&buf, nil)).With("app", "test")}

	l.Info("handled request", "path", "/users/42", "status", 200)

	out := buf.String()
	assert.Contains(t, out, "handled request")
	assert.Contains(t, out, "app=test")
	assert.Contains(t, out, "status=200")
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{slog: slog.New(slog.NewTextHandler(&buf, nil))}

	scoped := l.With("request_id", "abc-123")
	scoped.Error("boom")

	assert.Contains(t, buf.String(), "request_id=abc-123")
}
