// Package orchestrator provides an HTTP client for the orchestrator research API.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Aaryan126/Research-Agent/internal/sse"
	"github.com/Aaryan126/Research-Agent/internal/stream"
)

// Client is an HTTP client for the orchestrator.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new orchestrator client. Research streams are bounded by
// the caller's context, not by a client timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// ResearchRequest is the body of POST /api/research.
type ResearchRequest struct {
	Mode  string `json:"mode,omitempty"`
	Input string `json:"input"`
}

// ErrorResponse represents an error response from the orchestrator.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Research calls POST /api/research and forwards the streamed trace events to
// sink until done, the end of the stream, or a sink error.
func (c *Client) Research(ctx context.Context, req *ResearchRequest, sink stream.Sink) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal research request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/research", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", sse.ContentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call orchestrator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	return stream.Consume(ctx, func(h sse.Handler) error {
		return sse.Parse(resp.Body, h)
	}, sink)
}

// Health calls GET /api/health on the orchestrator.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call orchestrator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

func statusError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	var errResp ErrorResponse
	if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("orchestrator error: %s", errResp.Error)
	}
	return fmt.Errorf("orchestrator returned status %d: %s", resp.StatusCode, string(respBody))
}
