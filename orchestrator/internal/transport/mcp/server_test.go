package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aaryan126/Research-Agent/internal/sse"
	"github.com/Aaryan126/Research-Agent/internal/trace"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/adapter/agentclient"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/config"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/service"
	"github.com/Aaryan126/Research-Agent/orchestrator/policy"
	"github.com/Aaryan126/Research-Agent/orchestrator/tests/helpers"
)

// newTestServer wires the tools to a fake reasoning service that answers every agent
// with the text in replies, or with HTTP 500 when the agent has no reply.
func newTestServer(t *testing.T, replies map[string]string) *Server {
	t.Helper()
	agents := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AgentID string `json:"agent_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		text, ok := replies[body.AgentID]
		if !ok {
			http.Error(w, "unknown agent", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", sse.ContentType)
		data, _ := json.Marshal(map[string]string{"text_chunk": text})
		_ = sse.NewWriter(w).Write(sse.Event{Event: agentclient.KindMessageChunk, Data: string(data)})
	}))
	t.Cleanup(agents.Close)

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	cfg := &config.Config{
		Agents:         config.DefaultAgents(),
		MaxIterations:  2,
		AgentTimeout:   5 * time.Second,
		MaxInputLength: 4000,
	}
	svc := service.New(helpers.NewTestSQLiteStore(t), agentclient.NewClient(agents.URL, ""), cfg, engine)
	return NewServer(svc)
}

func callRequest(args map[string]interface{}) mcpgo.CallToolRequest {
	var req mcpgo.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcpgo.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestLiteratureReviewTool(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"research_literature_review_agent": "# Review\n\nBody.",
		"peer_review_agent":                "VERDICT: PASS",
	})

	res, err := s.researchLiteratureReview(context.Background(), callRequest(map[string]interface{}{"topic": "agent memory"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "# Review\n\nBody.\n\n---\n*Iteration 1 (verdict: PASS)*", resultText(t, res))
}

func TestDraftTool(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"research_literature_review_agent": "draft",
	})

	res, err := s.researchDraft(context.Background(), callRequest(map[string]interface{}{"topic": "agent memory"}))
	require.NoError(t, err)
	assert.Equal(t, "draft\n\n---\n*Iteration 1 (research only, no peer review)*", resultText(t, res))
}

func TestVerifyClaimTool(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"claim_verification_agent": "Supported.",
	})

	res, err := s.verifyClaim(context.Background(), callRequest(map[string]interface{}{"claim": "RAG helps"}))
	require.NoError(t, err)
	assert.Equal(t, "Supported.\n\n---\n*Claim verification (single pass)*", resultText(t, res))
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t, map[string]string{})

	res, err := s.verifyClaim(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "input is required")

	res, err = s.researchDraft(context.Background(), callRequest(map[string]interface{}{"topic": "agent memory"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: could not reach Research Agent (iteration 1)", resultText(t, res))
}

func TestProgressMessage(t *testing.T) {
	key := trace.Key{Agent: "Peer Review Agent", Iteration: 2}
	assert.Equal(t, "Peer Review Agent starting (iteration 2)...", progressMessage(trace.New(key, trace.AgentStart{})))
	assert.Equal(t, "Using tool: search_papers", progressMessage(trace.New(key, trace.ToolCall{ToolID: "search_papers"})))
	assert.Equal(t, "Peer Review Agent finished.", progressMessage(trace.New(key, trace.AgentEnd{})))
	assert.Equal(t, "Peer review verdict (iteration 2): PASS",
		progressMessage(trace.New(trace.Key{Iteration: 2}, trace.VerdictEvent{Verdict: trace.VerdictPass})))
	assert.Equal(t, "Thinking: "+strings.Repeat("é", 150), progressMessage(trace.New(key, trace.Reasoning{Text: strings.Repeat("é", 200)})))
	assert.Empty(t, progressMessage(trace.New(key, trace.MessageChunk{Text: "x"})))
}

func TestToolsRegistered(t *testing.T) {
	s := newTestServer(t, map[string]string{})
	assert.NotNil(t, s.MCPServer())
	assert.NotNil(t, s.NewSSEServer("http://localhost:8082"))
}
