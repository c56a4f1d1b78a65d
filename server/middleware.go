package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Skryldev/image-api/errors"
)

// fail records err for renderErrors and stops the handler chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// renderErrors is the single writer of error bodies:
// {"error", "code", "timestamp"[, "step"]}.
func (s *Server) renderErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		pub := apperrors.HTTP(err)
		if pub.Status >= http.StatusInternalServerError {
			s.deps.Logger.Error("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"error", err.Error(),
			)
		}
		body := gin.H{
			"error":     pub.Message,
			"code":      pub.Code,
			"timestamp": s.deps.Now().UTC().Format(time.RFC3339Nano),
		}
		if pub.Step != nil {
			body["step"] = *pub.Step
		}
		c.JSON(pub.Status, body)
	}
}

func (s *Server) recovered(c *gin.Context, rec any) {
	s.deps.Logger.Error("panic recovered", "path", c.Request.URL.Path, "panic", rec)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":     "Internal server error",
		"code":      apperrors.CodeInternal,
		"timestamp": s.deps.Now().UTC().Format(time.RFC3339Nano),
	})
}

// requestLogger writes one slog line per HTTP request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.deps.Logger.LogAttrs(c.Request.Context(), level, "http",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Int("bytes", c.Writer.Size()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// observe feeds the Prometheus collector.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.deps.Metrics.ObserveHTTP(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
