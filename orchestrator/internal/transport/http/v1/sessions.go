package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Aaryan126/Research-Agent/internal/sse"
	"github.com/Aaryan126/Research-Agent/internal/stream"
	"github.com/Aaryan126/Research-Agent/internal/trace"
)

// GetSession retrieves a session.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return requestError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// GetSessionEvents retrieves the recorded events of a session.
// GET /v1/sessions/:session_id/events
func (h *Handler) GetSessionEvents(c echo.Context) error {
	sessionID := c.Param("session_id")
	limit := 500
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	afterSeq := parseSeq(c.QueryParam("after_seq"))

	ctx := c.Request().Context()
	if _, err := h.service.GetSession(ctx, sessionID); err != nil {
		return requestError(c, err)
	}

	events, err := h.service.GetEvents(ctx, sessionID, afterSeq, limit)
	if err != nil {
		return requestError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events":   events,
		"has_more": len(events) == limit,
	})
}

// StreamSessionEvents replays a session's recorded events as SSE and then follows
// it until done. Reconnecting clients resume after Last-Event-ID.
// GET /v1/sessions/:session_id/events/stream
func (h *Handler) StreamSessionEvents(c echo.Context) error {
	sessionID := c.Param("session_id")
	ctx := c.Request().Context()

	session, err := h.service.GetSession(ctx, sessionID)
	if err != nil {
		return requestError(c, err)
	}

	afterSeq := parseSeq(c.Request().Header.Get("Last-Event-ID"))
	if afterSeq == 0 {
		afterSeq = parseSeq(c.QueryParam("after_seq"))
	}

	resp := c.Response()
	sse.SetHeaders(resp.Header())
	resp.WriteHeader(http.StatusOK)
	resp.Flush()
	sink := stream.NewSSESink(sse.NewWriter(resp))

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		events, err := h.service.GetEvents(ctx, sessionID, afterSeq, 0)
		if err != nil {
			return nil
		}
		for _, e := range events {
			if err := sink.Emit(ctx, e); err != nil {
				return nil
			}
			afterSeq = e.Seq
			if e.Type == trace.EventDone {
				return nil
			}
		}

		// A finished session with nothing left to send has no done event to wait for.
		if len(events) == 0 && session.Status.Terminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !session.Status.Terminal() {
			if session, err = h.service.GetSession(ctx, sessionID); err != nil {
				return nil
			}
		}
	}
}

// GetSessionTrace returns the per-agent view of a session, folded from its events.
// GET /v1/sessions/:session_id/trace
func (h *Handler) GetSessionTrace(c echo.Context) error {
	state, err := h.service.Trace(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return requestError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

func parseSeq(s string) int64 {
	if s == "" {
		return 0
	}
	seq, err := strconv.ParseInt(s, 10, 64)
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}
