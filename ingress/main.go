package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Aaryan126/Research-Agent/ingress/internal/config"
	internalhttp "github.com/Aaryan126/Research-Agent/ingress/internal/http"
	"github.com/Aaryan126/Research-Agent/ingress/internal/hub"
	"github.com/Aaryan126/Research-Agent/ingress/internal/orchestrator"
	"github.com/Aaryan126/Research-Agent/ingress/internal/ws"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting ingress service...")
	log.Printf("WebSocket Port: %d", cfg.WSPort)
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Orchestrator URL: %s", cfg.OrchestratorURL)

	connectionHub := hub.NewHub()
	go connectionHub.Run()

	orchClient := orchestrator.NewClient(cfg.OrchestratorURL)

	wsServer := ws.NewServer(cfg, connectionHub, orchClient)

	wsEcho := echo.New()
	wsEcho.HideBanner = true
	wsEcho.HidePort = true
	wsEcho.Use(middleware.Logger())
	wsEcho.Use(middleware.Recover())
	wsEcho.GET("/ws", wsServer.HandleWebSocket)

	httpServer := internalhttp.NewServer(connectionHub, wsServer, orchClient)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.WSPort)
		if err := wsEcho.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start WebSocket server: %v", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	log.Printf("WebSocket server started on port %d", cfg.WSPort)
	log.Printf("Internal HTTP server started on port %d", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down ingress...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Finalize in-flight threads while connections are still open.
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to finish in-flight requests: %v", err)
	}
	if err := wsEcho.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown WebSocket server gracefully: %v", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	log.Println("Ingress stopped")
}
