// Package server exposes the image API over HTTP with gin.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Skryldev/image-api/auth"
	"github.com/Skryldev/image-api/core"
	"github.com/Skryldev/image-api/metrics"
	"github.com/Skryldev/image-api/pipeline"
)

// Accounts is the account surface the auth routes need.
type Accounts interface {
	core.TokenVerifier
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, token string) error
}

// Deps carries everything the router serves. Storage and Metrics are
// optional; a nil value disables the matching routes.
type Deps struct {
	Chain     core.Handler
	Runner    *pipeline.Runner
	Validator *pipeline.Validator
	Accounts  Accounts
	Storage   core.StorageAdapter
	Metrics   *metrics.Collector
	Logger    *slog.Logger

	// MaxUploadBytes caps the image part; zero means 10 MiB.
	MaxUploadBytes int64
	// AllowedTypes lists accepted sniffed MIME types; empty means jpeg, png, webp.
	AllowedTypes []string
	ChunkSize    int
	CORSOrigins  []string

	// Now stamps error bodies; defaults to time.Now.
	Now func() time.Time
}

// Server holds the routes' shared state.
type Server struct {
	deps    Deps
	allowed map[string]bool
}

// New builds the gin engine serving d.
func New(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	if d.ChunkSize <= 0 {
		d.ChunkSize = 32 * 1024
	}
	if len(d.AllowedTypes) == 0 {
		d.AllowedTypes = []string{"image/jpeg", "image/png", "image/webp"}
	}
	s := &Server{deps: d, allowed: make(map[string]bool, len(d.AllowedTypes))}
	for _, t := range d.AllowedTypes {
		s.allowed[t] = true
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(s.recovered))
	r.Use(s.requestLogger())
	if d.Metrics != nil {
		r.Use(s.observe())
	}
	if len(d.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = d.CORSOrigins
		cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
		cfg.ExposeHeaders = []string{"Content-Disposition", "X-Result-Id"}
		r.Use(cors.New(cfg))
	}
	r.Use(s.renderErrors())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	a := r.Group("/auth")
	a.POST("/register", s.register)
	a.POST("/login", s.login)
	a.POST("/logout", s.logout)

	img := r.Group("/images")
	img.POST("/resize", s.single(core.OpResize))
	img.POST("/rotate", s.single(core.OpRotate))
	img.POST("/filter", s.single(core.OpFilter))
	img.POST("/format", s.single(core.OpFormat))
	img.POST("/process", s.process)
	if d.Storage != nil {
		img.GET("/results/:id", s.result)
		img.DELETE("/results/:id", s.deleteResult)
	}
	return r
}
