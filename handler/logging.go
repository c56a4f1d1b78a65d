package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

// LoggingOption customises WithLogging.
type LoggingOption func(*loggingConfig)

type loggingConfig struct {
	now       func() time.Time
	logger    *slog.Logger
	onFailure func(error)
}

// WithClock overrides the time source used for timestamps and durations.
func WithClock(now func() time.Time) LoggingOption {
	return func(c *loggingConfig) { c.now = now }
}

// WithAppLogger sets the logger that reports sink failures.
func WithAppLogger(l *slog.Logger) LoggingOption {
	return func(c *loggingConfig) { c.logger = l }
}

// OnSinkFailure registers a callback invoked when the sink rejects an entry.
func OnSinkFailure(fn func(error)) LoggingOption {
	return func(c *loggingConfig) { c.onFailure = fn }
}

// WithLogging records one LogEntry per invocation of next. The entry is
// written before the decorator returns; a sink failure is reported and never
// changes the outcome returned to the caller.
func WithLogging(sink core.EntryLogger, opts ...LoggingOption) Decorator {
	cfg := loggingConfig{now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	return func(next core.Handler) core.Handler {
		return core.HandlerFunc(func(ctx context.Context, req *core.Request) (*core.Response, error) {
			start := cfg.now()
			resp, err := next.Handle(ctx, req)

			entry := core.LogEntry{
				Timestamp: start,
				Level:     core.LevelInfo,
				Endpoint:  req.Endpoint,
				Params:    req.Params,
				Duration:  cfg.now().Sub(start),
				Result:    core.OutcomeSuccess,
			}
			if req.Identity != nil {
				entry.User = req.Identity.Label()
			}
			if err != nil {
				entry.Level = core.LevelError
				entry.Result = core.OutcomeError
				entry.Message = apperrors.Message(err)
			}

			// Cancelled and failed requests are logged too.
			if logErr := sink.Log(context.WithoutCancel(ctx), entry); logErr != nil {
				cfg.logger.Warn("request log write failed",
					"endpoint", req.Endpoint,
					"error", logErr.Error(),
				)
				if cfg.onFailure != nil {
					cfg.onFailure(logErr)
				}
			}
			return resp, err
		})
	}
}
