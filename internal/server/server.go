// Package server exposes the check pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ppiankov/verity/internal/auth"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/pipeline"
)

// ServiceName is reported on spans from the HTTP layer
const ServiceName = "verity"

// Checker runs one claim check
type Checker interface {
	Check(ctx context.Context, claim model.Claim, apiKey string) (*pipeline.Result, error)
}

// KeyManager administers the key pool
type KeyManager interface {
	Assign(ctx context.Context, owner string) (*auth.AccessKey, error)
	Revoke(ctx context.Context, raw string) (*auth.AccessKey, error)
	Quota(ctx context.Context, raw string) (auth.Quota, error)
}

// Config holds the transport settings
type Config struct {
	Addr           string
	RequestTimeout time.Duration
	AdminToken     string
}

// Server is the HTTP front end
type Server struct {
	checker  Checker
	keys     KeyManager
	gatherer prometheus.Gatherer
	cfg      Config
	logger   *slog.Logger
	router   *gin.Engine
}

// New creates the server and registers its routes. keys may be nil, in which
// case the key administration routes are not registered.
func New(checker Checker, keys KeyManager, gatherer prometheus.Gatherer, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		checker:  checker,
		keys:     keys,
		gatherer: gatherer,
		cfg:      cfg,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(ServiceName))
	r.Use(s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.POST("/check", s.handleCheck)
	if s.keys != nil {
		v1.GET("/quota", s.handleQuota)
		v1.POST("/keys", s.handleAssignKey)
		v1.DELETE("/keys/:key", s.requireAdmin(), s.handleRevokeKey)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
