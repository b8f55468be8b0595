// Package file implements the newline-delimited file sink used for dead
// letters: messages a stage could not decode or could not handle are written
// here instead of being re-queued.
//
// Pipeline position:
//
//	transport/redis (Pop) → runner (decode / dispatch fails) → transport/file
package file

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Transport interface
// ─────────────────────────────────────────────────────────────────────────────

// Transport delivers one pre-formatted record per Send call.
// Close flushes and releases resources.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config controls WriterTransport behaviour.
type Config struct {
	// Writer is the destination. nil defaults to os.Stderr so dead letters
	// show up next to the log when no file is configured.
	Writer io.Writer

	// Newline appended after each record. Default "\n".
	Newline string
}

// ─────────────────────────────────────────────────────────────────────────────
// WriterTransport
// ─────────────────────────────────────────────────────────────────────────────

// WriterTransport implements Transport by writing each record to an io.Writer
// followed by a newline. It is safe for concurrent use. When the writer is an
// io.Closer (e.g. a RotatingFile) Close closes it.
type WriterTransport struct {
	mu     sync.Mutex
	w      io.Writer
	nl     []byte
	logger *slog.Logger
}

// New constructs a WriterTransport.
func New(cfg Config, logger *slog.Logger) *WriterTransport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	nl := cfg.Newline
	if nl == "" {
		nl = "\n"
	}
	return &WriterTransport{
		w:      w,
		nl:     []byte(nl),
		logger: logger,
	}
}

// Send writes data and the newline as one locked operation so concurrent
// workers never interleave records.
func (t *WriterTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := make([]byte, 0, len(data)+len(t.nl))
	buf = append(buf, data...)
	buf = append(buf, t.nl...)
	if _, err := t.w.Write(buf); err != nil {
		t.logger.Error("transport/file: write failed", "error", err.Error(), "bytes", len(data))
		return fmt.Errorf("transport/file: write: %w", err)
	}
	t.logger.Debug("transport/file: wrote record", "bytes", len(data))
	return nil
}

// Close closes the writer when it is an io.Closer other than the process's
// standard streams.
func (t *WriterTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.w == os.Stdout || t.w == os.Stderr {
		return nil
	}
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
