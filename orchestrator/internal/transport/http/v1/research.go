package v1

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Aaryan126/Research-Agent/internal/sse"
	"github.com/Aaryan126/Research-Agent/internal/stream"
	"github.com/Aaryan126/Research-Agent/internal/trace"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/domain"
)

// Research runs a session and streams its trace as SSE.
// POST /api/research
func (h *Handler) Research(c echo.Context) error {
	var req domain.ResearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return h.streamSession(c, req)
}

// Verify runs a claim verification and streams its trace as SSE.
// POST /api/verify
func (h *Handler) Verify(c echo.Context) error {
	var body struct {
		Claim string `json:"claim"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return h.streamSession(c, domain.ResearchRequest{Mode: domain.ModeVerify, Input: body.Claim})
}

func (h *Handler) streamSession(c echo.Context, req domain.ResearchRequest) error {
	ctx := c.Request().Context()

	session, err := h.service.StartSession(ctx, req)
	if err != nil {
		return requestError(c, err)
	}

	resp := c.Response()
	sse.SetHeaders(resp.Header())
	resp.Header().Set("X-Session-ID", session.SessionID)
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	sink := stream.NewSSESink(sse.NewWriter(resp))
	if err := h.service.Run(ctx, session, sink); err != nil {
		log.Printf("INFO: session %s stream closed early: %v", session.SessionID, err)
	}
	return nil
}

// RunTool runs a session to completion and returns its outcome as JSON.
// POST /api/tools/run
func (h *Handler) RunTool(c echo.Context) error {
	var req domain.ResearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	session, err := h.service.StartSession(ctx, req)
	if err != nil {
		return requestError(c, err)
	}

	result, err := stream.Collect(ctx, h.service.Config().RunBudget(), func(ctx context.Context, sink stream.Sink) error {
		return h.service.Run(ctx, session, sink)
	})
	if err != nil {
		resp := domain.SessionResponse{SessionID: session.SessionID, Status: domain.SessionStatusError, Error: err.Error()}
		var outcome *stream.OutcomeError
		switch {
		case errors.Is(err, stream.ErrCollectTimeout):
			return c.JSON(http.StatusGatewayTimeout, resp)
		case errors.As(err, &outcome):
			return c.JSON(http.StatusOK, resp)
		}
		resp.Status = domain.SessionStatusCancelled
		return c.JSON(http.StatusServiceUnavailable, resp)
	}

	return c.JSON(http.StatusOK, domain.SessionResponse{
		SessionID: session.SessionID,
		Status:    domain.SessionStatusComplete,
		Result:    result,
	})
}

// TestSSE streams a fixed trace with no agent call, to check that event streams
// reach the client unbuffered.
// GET /api/test-sse
func (h *Handler) TestSSE(c echo.Context) error {
	resp := c.Response()
	sse.SetHeaders(resp.Header())
	resp.WriteHeader(http.StatusOK)

	key := trace.Key{Agent: "Test Agent", Iteration: 1}
	events := []trace.Event{
		trace.New(key, trace.AgentStart{AgentID: "test"}),
		trace.New(key, trace.Reasoning{Text: "This is a test reasoning event."}),
		trace.New(key, trace.AgentEnd{}),
		trace.Untagged(trace.Result{
			Report:        "# Test Report\n\nSSE streaming is working correctly.",
			IterationInfo: "Test (no agent call)",
			Iterations:    []string{"Test: PASS"},
		}),
		trace.Untagged(trace.Done{}),
	}

	ctx := c.Request().Context()
	sink := stream.NewSSESink(sse.NewWriter(resp))
	for i, e := range events {
		e.Seq = int64(i + 1)
		if err := sink.Emit(ctx, e); err != nil {
			return nil
		}
	}
	return nil
}
