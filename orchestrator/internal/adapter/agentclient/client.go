// Package agentclient provides the HTTP client for the remote reasoning service's
// streaming converse endpoint.
package agentclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Aaryan126/Research-Agent/internal/sse"
)

// DefaultTimeout bounds one agent call when the request does not set its own.
const DefaultTimeout = 600 * time.Second

const conversePath = "/api/agent_builder/converse/async"

// Request is one agent call. Every call starts a new conversation.
type Request struct {
	AgentID string
	Input   string
	Timeout time.Duration
}

type converseRequest struct {
	Input   string `json:"input"`
	AgentID string `json:"agent_id"`
}

// RawEvent is one upstream frame before normalization.
type RawEvent struct {
	Kind string
	Data json.RawMessage
}

// Handler is called for each upstream frame, in order.
type Handler func(event RawEvent) error

// Client calls agents on the reasoning service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new agent client. Deadlines come from each call's context.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// Call starts the agent and delivers its frames to handler until the stream ends.
// Errors match ErrConnection, ErrTimeout, ErrMalformedResponse or ErrCancelled; an
// error returned by handler is passed through unchanged and stops the call.
func (c *Client) Call(ctx context.Context, req Request, handler Handler) error {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(converseRequest{Input: req.Input, AgentID: req.AgentID})
	if err != nil {
		return goerr.Wrap(err, "failed to marshal converse request")
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+conversePath, bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(ErrConnection, "failed to create request", goerr.V("agent_id", req.AgentID), goerr.V("cause", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", sse.ContentType)
	httpReq.Header.Set("kbn-xsrf", "true")
	httpReq.Header.Set("x-elastic-internal-origin", "Kibana")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classify(ctx, callCtx, err, req, timeout)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return goerr.Wrap(ErrConnection, "agent service returned error status",
			goerr.V("agent_id", req.AgentID),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(detail)))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, sse.ContentType) {
		return goerr.Wrap(ErrMalformedResponse, "unexpected content type",
			goerr.V("agent_id", req.AgentID),
			goerr.V("content_type", ct))
	}

	err = sse.Parse(resp.Body, func(frame sse.Event) error {
		// Frames without an event name carry nothing the normalizer can route.
		if frame.Event == "" {
			return nil
		}
		if err := handler(RawEvent{Kind: frame.Event, Data: rawData(frame.Data)}); err != nil {
			return &handlerError{err: err}
		}
		return nil
	})

	var herr *handlerError
	switch {
	case errors.As(err, &herr):
		return herr.err
	case errors.Is(err, bufio.ErrTooLong):
		return goerr.Wrap(ErrMalformedResponse, "event frame too large", goerr.V("agent_id", req.AgentID))
	case err != nil:
		return classify(ctx, callCtx, err, req, timeout)
	case callCtx.Err() != nil:
		return classify(ctx, callCtx, callCtx.Err(), req, timeout)
	}
	return nil
}

// classify maps a transport error onto the error taxonomy using the state of the
// caller's and the call's contexts.
func classify(parent, call context.Context, err error, req Request, timeout time.Duration) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return goerr.Wrap(ErrCancelled, "caller went away", goerr.V("agent_id", req.AgentID))
	case errors.Is(call.Err(), context.DeadlineExceeded):
		return goerr.Wrap(ErrTimeout, "deadline exceeded", goerr.V("agent_id", req.AgentID), goerr.V("timeout", timeout.String()))
	}
	return goerr.Wrap(ErrConnection, "agent stream failed", goerr.V("agent_id", req.AgentID), goerr.V("cause", err.Error()))
}

// rawData normalizes the data field of one frame: the service wraps payloads in a
// "data" object, and unparsable text is kept as {"raw": text}.
func rawData(data string) json.RawMessage {
	if !json.Valid([]byte(data)) {
		wrapped, _ := json.Marshal(map[string]string{"raw": data})
		return wrapped
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(data), &envelope); err == nil {
		if inner := bytes.TrimSpace(envelope.Data); len(inner) > 0 && inner[0] == '{' {
			return inner
		}
	}
	return json.RawMessage(data)
}
