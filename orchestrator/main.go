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

	"github.com/Aaryan126/Research-Agent/orchestrator/internal/adapter/agentclient"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/config"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/repository"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/service"
	handler "github.com/Aaryan126/Research-Agent/orchestrator/internal/transport/http"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/transport/mcp"
	"github.com/Aaryan126/Research-Agent/orchestrator/policy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting orchestrator...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("MCP Port: %d", cfg.MCPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Agent service URL: %s", cfg.AgentServiceURL)
	log.Printf("Max iterations: %d, agent timeout: %s", cfg.MaxIterations, cfg.AgentTimeout)

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize agent client
	agentClient := agentclient.NewClient(cfg.AgentServiceURL, cfg.AgentAPIKey)

	// Initialize policy engine
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	svc := service.New(db, agentClient, cfg, policyEngine)
	go svc.RunStaleSessionSweeper(ctx)

	// HTTP API
	httpServer := handler.NewServer(svc)

	// MCP tool server
	mcpServer := mcp.NewServer(svc).NewSSEServer(fmt.Sprintf("http://localhost:%d", cfg.MCPPort))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.MCPPort)
		if err := mcpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start MCP server: %v", err)
		}
	}()

	log.Printf("HTTP API started on port %d", cfg.HTTPPort)
	log.Printf("MCP server started on port %d", cfg.MCPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}
	if err := mcpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown MCP server gracefully: %v", err)
	}

	log.Println("Orchestrator stopped")
}
