// Package v1 provides the orchestrator's HTTP handlers.
package v1

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Aaryan126/Research-Agent/orchestrator/internal/service"
)

const version = "0.2.0"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	// pollInterval paces the follow phase of the attach stream.
	pollInterval time.Duration
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service:      service,
		pollInterval: 500 * time.Millisecond,
	}
}

// RegisterRoutes registers the routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Streaming research API
	e.POST("/api/research", h.Research)
	e.POST("/api/verify", h.Verify)
	e.POST("/api/tools/run", h.RunTool)
	e.GET("/api/test-sse", h.TestSSE)

	// Session replay API
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.GET("/v1/sessions/:session_id/events", h.GetSessionEvents)
	e.GET("/v1/sessions/:session_id/events/stream", h.StreamSessionEvents)
	e.GET("/v1/sessions/:session_id/trace", h.GetSessionTrace)

	e.GET("/api/health", h.Health)
	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

// requestError writes the response for an error returned before a stream started.
func requestError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPolicyBlocked):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	log.Printf("ERROR: request failed: %v", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
