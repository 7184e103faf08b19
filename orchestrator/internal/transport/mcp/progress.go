package mcp

import (
	"context"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/Aaryan126/Research-Agent/internal/trace"
)

const reasoningPreview = 150

// progress relays a session's milestones to the MCP client as log notifications.
type progress struct {
	tool string
}

// Emit implements stream.Sink.
func (p *progress) Emit(ctx context.Context, e trace.Event) error {
	msg := progressMessage(e)
	if msg == "" {
		return nil
	}
	log.Printf("INFO: %s: %s", p.tool, msg)

	srv := server.ServerFromContext(ctx)
	if srv == nil {
		return nil
	}
	return srv.SendNotificationToClient(ctx, "notifications/message", map[string]any{
		"level":  "info",
		"logger": p.tool,
		"data":   msg,
	})
}

func progressMessage(e trace.Event) string {
	switch p := e.Payload.(type) {
	case trace.AgentStart:
		return fmt.Sprintf("%s starting (iteration %d)...", e.Agent, e.Iteration)
	case trace.Reasoning:
		if p.Text == "" {
			return ""
		}
		text := []rune(p.Text)
		if len(text) > reasoningPreview {
			text = text[:reasoningPreview]
		}
		return "Thinking: " + string(text)
	case trace.ToolCall:
		return "Using tool: " + p.ToolID
	case trace.AgentEnd:
		return e.Agent + " finished."
	case trace.VerdictEvent:
		return fmt.Sprintf("Peer review verdict (iteration %d): %s", e.Iteration, p.Verdict)
	}
	return ""
}
