// Package hooks provides Hook and Logger implementations for the pipeline runner.
package hooks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...any) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...any)  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...any)  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...any) { s.log.Error(msg, fields...) }

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each pipeline step.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStep(_ context.Context, index int, kind core.OperationKind, input []byte) {
	h.logger.Debug("pipeline.step.start",
		"step", index,
		"op", kind,
		"input_bytes", len(input),
	)
}

func (h *LoggingHook) AfterStep(_ context.Context, index int, kind core.OperationKind, out *core.Response, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("pipeline.step.error",
			"step", index,
			"op", kind,
			"duration_ms", d.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	h.logger.Debug("pipeline.step.done",
		"step", index,
		"op", kind,
		"duration_ms", d.Milliseconds(),
		"output_bytes", len(out.Body),
		"content_type", out.ContentType,
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics; safe for concurrent use. It backs the
// metrics hook when Prometheus is disabled.
type InMemoryMetrics struct {
	mu sync.RWMutex

	stepDurationsMs map[core.OperationKind]int64 // cumulative ms per op
	stepCalls       map[core.OperationKind]int64 // call count per op
	stepErrors      map[core.OperationKind]int64

	totalThroughputB int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		stepDurationsMs: make(map[core.OperationKind]int64),
		stepCalls:       make(map[core.OperationKind]int64),
		stepErrors:      make(map[core.OperationKind]int64),
	}
}

func (m *InMemoryMetrics) RecordProcessingTime(step core.OperationKind, d time.Duration) {
	m.mu.Lock()
	m.stepDurationsMs[step] += d.Milliseconds()
	m.stepCalls[step]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.totalThroughputB, bytes)
}

func (m *InMemoryMetrics) RecordError(step core.OperationKind, _ string) {
	m.mu.Lock()
	m.stepErrors[step]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		StepDurationsMs:  make(map[core.OperationKind]int64, len(m.stepDurationsMs)),
		StepCalls:        make(map[core.OperationKind]int64, len(m.stepCalls)),
		StepErrors:       make(map[core.OperationKind]int64, len(m.stepErrors)),
		TotalThroughputB: atomic.LoadInt64(&m.totalThroughputB),
	}
	for k, v := range m.stepDurationsMs {
		snap.StepDurationsMs[k] = v
	}
	for k, v := range m.stepCalls {
		snap.StepCalls[k] = v
	}
	for k, v := range m.stepErrors {
		snap.StepErrors[k] = v
	}
	return snap
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	StepDurationsMs  map[core.OperationKind]int64
	StepCalls        map[core.OperationKind]int64
	StepErrors       map[core.OperationKind]int64
	TotalThroughputB int64
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds pipeline step events into a MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeStep(context.Context, int, core.OperationKind, []byte) {}

func (h *MetricsHook) AfterStep(_ context.Context, _ int, kind core.OperationKind, out *core.Response, d time.Duration, err error) {
	h.collector.RecordProcessingTime(kind, d)
	if err != nil {
		category := string(apperrors.CategoryOf(err))
		if category == "" {
			category = "unknown"
		}
		h.collector.RecordError(kind, category)
		return
	}
	if out != nil {
		h.collector.RecordThroughput(int64(len(out.Body)))
	}
}

var (
	_ core.Hook             = (*LoggingHook)(nil)
	_ core.Hook             = (*MetricsHook)(nil)
	_ core.Logger           = (*SlogLogger)(nil)
	_ core.MetricsCollector = (*InMemoryMetrics)(nil)
)
