// Package http provides the internal HTTP server for ingress.
package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Aaryan126/Research-Agent/ingress/internal/hub"
	"github.com/Aaryan126/Research-Agent/ingress/internal/orchestrator"
)

// Requests reports the number of research requests in flight.
type Requests interface {
	InFlight() int
}

// HealthChecker probes the orchestrator.
type HealthChecker interface {
	Health(ctx context.Context) (*orchestrator.HealthResponse, error)
}

// Server is the internal HTTP server for ingress.
type Server struct {
	echo         *echo.Echo
	hub          *hub.Hub
	requests     Requests
	orchestrator HealthChecker
}

// NewServer creates a new internal HTTP server.
func NewServer(h *hub.Hub, requests Requests, orch HealthChecker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		echo:         e,
		hub:          h,
		requests:     requests,
		orchestrator: orch,
	}

	e.GET("/health", s.handleHealth)
	e.GET("/ready", s.handleReady)

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleHealth reports liveness with connection and request counts.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections": s.hub.GetConnectionCount(),
		"channels":    s.hub.GetChannelCount(),
		"in_flight":   s.requests.InFlight(),
	})
}

// handleReady reports whether the orchestrator is reachable.
func (s *Server) handleReady(c echo.Context) error {
	health, err := s.orchestrator.Health(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":               "ready",
		"orchestrator_version": health.Version,
	})
}
