// Package imageapi wires a Config into a ready-to-serve image API: user
// store, token verification, request log sink, transformation engine,
// handler chain, pipeline runner, result archive and HTTP routes.
package imageapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Skryldev/image-api/accesslog"
	"github.com/Skryldev/image-api/adapters/decoder"
	"github.com/Skryldev/image-api/adapters/encoder"
	"github.com/Skryldev/image-api/adapters/storage"
	"github.com/Skryldev/image-api/auth"
	"github.com/Skryldev/image-api/config"
	"github.com/Skryldev/image-api/core"
	"github.com/Skryldev/image-api/handler"
	"github.com/Skryldev/image-api/hooks"
	"github.com/Skryldev/image-api/metrics"
	"github.com/Skryldev/image-api/operations"
	"github.com/Skryldev/image-api/pipeline"
	"github.com/Skryldev/image-api/server"
)

// Re-export Format constants for convenience.
const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
	WebP = core.FormatWebP
)

// DefaultConfig returns a sensible production configuration. JWTSecret must
// still be set.
func DefaultConfig() config.Config { return config.Default() }

// Option customises New.
type Option func(*options)

type options struct {
	operations map[core.OperationKind]core.Operation
	registry   *prometheus.Registry
	sink       core.EntryLogger
	hooks      []core.Hook
}

// WithOperations replaces the native engine's operations, e.g. with the
// libvips backend.
func WithOperations(ops map[core.OperationKind]core.Operation) Option {
	return func(o *options) { o.operations = ops }
}

// WithPrometheusRegistry registers metrics on reg instead of a private registry.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithEntryLogger replaces the configured request log sink.
func WithEntryLogger(sink core.EntryLogger) Option {
	return func(o *options) { o.sink = sink }
}

// WithHook registers an extra pipeline step observer.
func WithHook(h core.Hook) Option {
	return func(o *options) { o.hooks = append(o.hooks, h) }
}

// App is a fully wired service.
type App struct {
	router  *gin.Engine
	stats   *hooks.InMemoryMetrics
	closers []func() error
}

// New builds the service described by cfg. On error every resource opened so
// far is released.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (app *App, err error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Engine.Backend == "vips" && o.operations == nil {
		return nil, errors.New("imageapi: engine backend vips requires a build with -tags vips")
	}
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	app = &App{stats: hooks.NewInMemoryMetrics()}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	// ── Accounts ──
	accounts, err := app.openAccounts(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// ── Observability ──
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		if collector, err = metrics.New(cfg.Metrics.Namespace, o.registry); err != nil {
			return nil, fmt.Errorf("imageapi: metrics: %w", err)
		}
	}
	sink := o.sink
	if sink == nil {
		sink = app.openSink(cfg.AccessLog, logger)
	}
	logOpts := []handler.LoggingOption{handler.WithAppLogger(logger)}
	if collector != nil {
		logOpts = append(logOpts, handler.OnSinkFailure(collector.RecordSinkFailure))
	}

	// ── Engine ──
	codecs := core.NewCodecRegistry()
	decoder.Register(codecs)
	encoder.Register(codecs, cfg.Engine.DefaultQuality)
	ops := core.NewOperationRegistry()
	engine := operations.NewEngine(codecs, cfg.Engine.DefaultQuality)
	engine.MaxDimension = cfg.Limits.MaxDimension
	operations.Register(ops, engine)
	for kind, op := range o.operations {
		ops.Register(kind, op)
	}

	chain := handler.Standard(ops, accounts, sink, logOpts...)
	runner := pipeline.NewRunner(chain).
		AddHook(hooks.NewLoggingHook(hooks.NewSlogLogger(logger))).
		AddHook(hooks.NewMetricsHook(app.stats))
	if collector != nil {
		runner.AddHook(hooks.NewMetricsHook(collector))
	}
	for _, h := range o.hooks {
		runner.AddHook(h)
	}

	// ── Result archive ──
	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	app.router = server.New(server.Deps{
		Chain:          chain,
		Runner:         runner,
		Validator:      pipeline.NewValidator(cfg.Limits.MaxDimension),
		Accounts:       accounts,
		Storage:        store,
		Metrics:        collector,
		Logger:         logger,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AllowedTypes:   cfg.Upload.AllowedTypes,
		ChunkSize:      cfg.Upload.ChunkSize,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})
	logger.Info("image api ready",
		"engine", cfg.Engine.Backend,
		"revocation", cfg.Auth.Revocation,
		"storage", string(cfg.Storage.Backend),
		"metrics", cfg.Metrics.Enabled,
	)
	return app, nil
}

func (a *App) openAccounts(ctx context.Context, cfg config.Config) (*auth.Service, error) {
	db, err := auth.OpenDatabase(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	users, err := auth.NewGormStore(db)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}

	var revoker auth.Revoker
	if cfg.Auth.Revocation == "redis" {
		if revoker, err = auth.NewRedisRevoker(ctx, auth.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}); err != nil {
			return nil, err
		}
	}
	accounts := auth.NewService(users, tokens, revoker, cfg.Auth.BcryptCost)
	a.closers = append(a.closers, accounts.Close)
	return accounts, nil
}

func (a *App) openSink(cfg config.AccessLogConfig, logger *slog.Logger) core.EntryLogger {
	if cfg.Path == "" {
		return accesslog.NewSlog(logger)
	}
	w := accesslog.NewFile(accesslog.FileConfig{
		Path:       cfg.Path,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	a.closers = append(a.closers, w.Close)
	return w
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (core.StorageAdapter, error) {
	switch cfg.Backend {
	case config.StorageLocal:
		return storage.NewLocal(cfg.Local.RootDir, os.FileMode(cfg.Local.Permissions))
	case config.StorageS3:
		client, err := storage.NewAWSClient(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3(client, cfg.S3.Bucket)
	}
	return nil, nil
}

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler { return a.router }

// Stats returns per-operation pipeline step counters.
func (a *App) Stats() hooks.MetricsSnapshot { return a.stats.Snapshot() }

// Close releases the database, revocation store and log file, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
