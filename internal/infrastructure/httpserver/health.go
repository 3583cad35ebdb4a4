package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health status values reported by the probe endpoints.
const (
	StatusHealthy  = "healthy"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// HealthResponse is the payload of the probe endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessCheck reports whether the backing services can serve traffic.
type ReadinessCheck func(ctx context.Context) bool

// RegisterHealthEndpoints registers the liveness and readiness probes.
// Liveness always succeeds while the process runs; readiness consults the
// given check.
func (s *Server) RegisterHealthEndpoints(check ReadinessCheck) {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{Status: StatusHealthy})
	})

	s.echo.GET("/ready", func(c echo.Context) error {
		if check == nil || check(c.Request().Context()) {
			return c.JSON(http.StatusOK, HealthResponse{Status: StatusReady})
		}
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: StatusNotReady})
	})
}
