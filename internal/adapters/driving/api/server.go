// Package api serves the archive over HTTP: search, document browsing,
// statistics and a streaming chat endpoint.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Default configuration values. Limits are requests per minute per client IP.
const (
	DefaultAddr               = ":8000"
	DefaultSearchRateLimit    = 30
	DefaultDocumentsRateLimit = 60
	DefaultFileRateLimit      = 20
	DefaultShutdownTimeout    = 10 * time.Second
)

// Config holds configuration for the HTTP server.
type Config struct {
	Addr               string
	SearchRateLimit    int
	DocumentsRateLimit int
	FileRateLimit      int
}

// Services are the driving ports the server exposes.
// Metrics is optional.
type Services struct {
	Search      driving.SearchService
	Documents   driving.DocumentService
	Stats       driving.StatsService
	Acquisition driving.AcquisitionService
	Chat        driving.ChatService
	Metrics     http.Handler
}

// Server is the echo-based HTTP boundary.
type Server struct {
	echo *echo.Echo
	cfg  Config
	svc  Services
}

// NewServer creates the server and registers its routes.
func NewServer(cfg Config, svc Services) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.SearchRateLimit <= 0 {
		cfg.SearchRateLimit = DefaultSearchRateLimit
	}
	if cfg.DocumentsRateLimit <= 0 {
		cfg.DocumentsRateLimit = DefaultDocumentsRateLimit
	}
	if cfg.FileRateLimit <= 0 {
		cfg.FileRateLimit = DefaultFileRateLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("%d %s %s from %s in %s", v.Status, v.Method, v.URI, v.RemoteIP, v.Latency.Round(time.Millisecond))
			return nil
		},
	}))

	s := &Server{echo: e, cfg: cfg, svc: svc}
	s.routes()
	return s
}

func (s *Server) routes() {
	searchLimit := perIPLimit(s.cfg.SearchRateLimit)
	documentsLimit := perIPLimit(s.cfg.DocumentsRateLimit)
	fileLimit := perIPLimit(s.cfg.FileRateLimit)

	g := s.echo.Group("/api")
	g.GET("/health", s.health)
	g.GET("/search", s.search, searchLimit)
	g.GET("/documents", s.listDocuments, documentsLimit)
	g.GET("/documents/:id", s.getDocument, documentsLimit)
	g.GET("/documents/:id/file", s.documentFile, fileLimit)
	g.GET("/sources", s.sources, documentsLimit)
	g.GET("/stats", s.stats)
	g.POST("/chat", s.chat)

	if s.svc.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.svc.Metrics))
	}
}

// perIPLimit allows perMinute requests per client IP, refilled continuously.
func perIPLimit(perMinute int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(_ echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", s.cfg.Addr)
		errCh <- s.echo.Start(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
