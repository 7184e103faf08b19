// Package config provides configuration for the orchestrator.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Agent names one remote agent and the label it carries in the trace.
type Agent struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// Agents is the roster the orchestrator drives.
type Agents struct {
	Draft  Agent `yaml:"draft"`
	Review Agent `yaml:"review"`
	Claim  Agent `yaml:"claim"`
}

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int
	MCPPort  int

	// Database
	DatabaseURL string

	// Agent service
	AgentServiceURL string
	AgentAPIKey     string
	Agents          Agents

	// Loop
	MaxIterations int
	AgentTimeout  time.Duration
	SweepInterval time.Duration

	// Admission
	MaxInputLength int
	AllowedOrigins []string
}

// agentsFile is the optional YAML roster pointed to by AGENTS_FILE.
type agentsFile struct {
	MaxIterations       int    `yaml:"max_iterations"`
	AgentTimeoutSeconds int    `yaml:"agent_timeout_seconds"`
	Agents              Agents `yaml:"agents"`
}

// DefaultAgents is the reference roster.
func DefaultAgents() Agents {
	return Agents{
		Draft:  Agent{ID: "research_literature_review_agent", Label: "Research Agent"},
		Review: Agent{ID: "peer_review_agent", Label: "Peer Review Agent"},
		Claim:  Agent{ID: "claim_verification_agent", Label: "Claim Verification Agent"},
	}
}

// Load loads configuration from environment variables, then applies AGENTS_FILE
// when set.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		MCPPort:         getEnvInt("MCP_PORT", 8082),
		DatabaseURL:     getEnv("DATABASE_URL", "file:orchestrator.db?cache=shared&mode=rwc"),
		AgentServiceURL: strings.TrimSuffix(getEnv("AGENT_SERVICE_URL", "http://localhost:5601"), "/"),
		AgentAPIKey:     getEnv("AGENT_API_KEY", ""),
		Agents:          DefaultAgents(),
		MaxIterations:   getEnvInt("MAX_ITERATIONS", 2),
		AgentTimeout:    time.Duration(getEnvInt("AGENT_TIMEOUT", 600)) * time.Second,
		SweepInterval:   time.Duration(getEnvInt("SWEEP_INTERVAL_MS", 60000)) * time.Millisecond,
		MaxInputLength:  getEnvInt("MAX_INPUT_LENGTH", 4000),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "")),
	}

	if path := os.Getenv("AGENTS_FILE"); path != "" {
		if err := cfg.applyAgentsFile(path); err != nil {
			return nil, err
		}
	}
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("MAX_ITERATIONS must be at least 1, got %d", cfg.MaxIterations)
	}
	return cfg, nil
}

// RunBudget is the longest a single session can take: every iteration makes at most
// a drafting call and a review call.
func (c *Config) RunBudget() time.Duration {
	return time.Duration(c.MaxIterations*2) * c.AgentTimeout
}

func (c *Config) applyAgentsFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read agents file: %w", err)
	}
	var f agentsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("failed to parse agents file %s: %w", path, err)
	}

	if f.MaxIterations > 0 {
		c.MaxIterations = f.MaxIterations
	}
	if f.AgentTimeoutSeconds > 0 {
		c.AgentTimeout = time.Duration(f.AgentTimeoutSeconds) * time.Second
	}
	mergeAgent(&c.Agents.Draft, f.Agents.Draft)
	mergeAgent(&c.Agents.Review, f.Agents.Review)
	mergeAgent(&c.Agents.Claim, f.Agents.Claim)
	return nil
}

func mergeAgent(dst *Agent, src Agent) {
	if src.ID != "" {
		dst.ID = src.ID
	}
	if src.Label != "" {
		dst.Label = src.Label
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
