// Package testutil provides shared test helpers.
package testutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// NewTestLogger returns a debug-level logger that writes to t.Log, so
// records only show for failing tests or with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	logger, _ := NewCaptureLogger(t)
	return logger
}

// NewCaptureLogger is NewTestLogger that also keeps every record for
// assertions.
func NewCaptureLogger(t testing.TB) (*slog.Logger, *LogBuffer) {
	t.Helper()
	buf := &LogBuffer{}
	handler := slog.NewTextHandler(&tbWriter{t: t, capture: buf}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return slog.New(handler), buf
}

// LogBuffer holds captured log output. It is safe for concurrent use.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Contains reports whether any record contains s.
func (b *LogBuffer) Contains(s string) bool {
	return strings.Contains(b.String(), s)
}

type tbWriter struct {
	t       testing.TB
	capture *LogBuffer
}

func (w *tbWriter) Write(p []byte) (int, error) {
	w.capture.mu.Lock()
	w.capture.buf.Write(p)
	w.capture.mu.Unlock()

	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
