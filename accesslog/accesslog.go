// Package accesslog persists request log entries.
package accesslog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Skryldev/image-api/core"
)

// FileConfig configures a rotating JSON-lines log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Writer appends one JSON object per line to an io.Writer. Writes are
// serialized so concurrent requests never interleave lines.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a sink writing to w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// NewFile returns a sink backed by a size-rotated file.
func NewFile(cfg FileConfig) *Writer {
	return NewWriter(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// Log appends entry. The context is ignored so that requests cancelled
// mid-flight still leave a record.
func (s *Writer) Log(_ context.Context, entry core.LogEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("accesslog: encode: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("accesslog: write: %w", err)
	}
	return nil
}

// Close closes the underlying writer when it is closable.
func (s *Writer) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Slog routes entries through an slog.Logger; used when no file is configured.
type Slog struct {
	log *slog.Logger
}

// NewSlog returns a sink logging through l.
func NewSlog(l *slog.Logger) *Slog { return &Slog{log: l} }

func (s *Slog) Log(ctx context.Context, e core.LogEntry) error {
	level := slog.LevelInfo
	if e.Level == core.LevelError {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("endpoint", e.Endpoint),
		slog.Any("params", e.Params),
		slog.Int64("duration_ms", e.Duration.Milliseconds()),
		slog.String("result", string(e.Result)),
	}
	if e.User != "" {
		attrs = append(attrs, slog.String("user", e.User))
	}
	if e.Message != "" {
		attrs = append(attrs, slog.String("message", e.Message))
	}
	s.log.LogAttrs(ctx, level, "request", attrs...)
	return nil
}

var (
	_ core.EntryLogger = (*Writer)(nil)
	_ core.EntryLogger = (*Slog)(nil)
)
