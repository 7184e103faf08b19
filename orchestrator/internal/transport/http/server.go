// Package http provides the HTTP server implementation for the orchestrator.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Aaryan126/Research-Agent/orchestrator/internal/service"
	v1 "github.com/Aaryan126/Research-Agent/orchestrator/internal/transport/http/v1"
)

// devOrigins are always allowed so that a local frontend can reach the API.
var devOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// NewServer creates and configures the orchestrator's HTTP server.
func NewServer(svc *service.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  append(append([]string{}, devOrigins...), svc.Config().AllowedOrigins...),
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAccept, "Last-Event-ID"},
		ExposeHeaders: []string{"X-Session-ID"},
	}))

	// Handlers
	v1Handler := v1.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)

	return e
}
