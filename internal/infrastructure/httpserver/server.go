// Package httpserver provides the HTTP server infrastructure of the web
// registration surface.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/config"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/middleware"
)

const defaultShutdownTimeout = 10 * time.Second

// Server wraps the Echo instance with lifecycle management.
type Server struct {
	echo            *echo.Echo
	cfg             config.WebConfig
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// NewServer creates an HTTP server configured for the registration site:
// recovery and request logging middleware, client IP extraction per the
// proxy trust setting.
func NewServer(cfg config.WebConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	middleware.ConfigureIPExtraction(e, cfg.TrustProxyHeaders)
	e.Use(middleware.Recovery(logger))

	loggingCfg := middleware.DefaultLoggingConfig()
	loggingCfg.Logger = logger
	e.Use(middleware.Logging(loggingCfg))

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &Server{
		echo:            e,
		cfg:             cfg,
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// Echo returns the underlying Echo instance for route registration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Root returns the route group every page is mounted under, honoring the
// configured root path for reverse-proxy deployments.
func (s *Server) Root() *echo.Group {
	return s.echo.Group(s.cfg.RootPath)
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		slog.String("address", s.cfg.Address()),
		slog.String("root_path", s.cfg.RootPath),
	)

	if err := s.echo.Start(s.cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "shutting down HTTP server",
		slog.Duration("timeout", s.shutdownTimeout),
	)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.InfoContext(ctx, "HTTP server stopped")
	return nil
}

// RegisterMetricsEndpoint exposes the Prometheus registry.
func (s *Server) RegisterMetricsEndpoint() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
