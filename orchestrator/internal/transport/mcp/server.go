// Package mcp exposes research sessions as synchronous MCP tools. Each tool call
// buffers the whole session and returns the final report.
package mcp

import (
	"context"
	"fmt"
	"log"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Aaryan126/Research-Agent/internal/stream"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/domain"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/service"
)

const (
	serverName    = "Research Literature Review Agent"
	serverVersion = "0.2.0"
)

// Tool names.
const (
	ToolLiteratureReview = "research_literature_review"
	ToolDraft            = "research_draft"
	ToolVerifyClaim      = "verify_claim"
)

// Server registers the research tools on an MCP server.
type Server struct {
	service *service.Service
	mcp     *server.MCPServer
}

// NewServer creates the MCP server and registers the tools.
func NewServer(svc *service.Service) *Server {
	s := &Server{
		service: svc,
		mcp: server.NewMCPServer(serverName, serverVersion,
			server.WithToolCapabilities(true),
			server.WithLogging(),
		),
	}

	s.mcp.AddTool(mcpgo.NewTool(ToolLiteratureReview,
		mcpgo.WithDescription("Run a full peer-reviewed literature review on a research topic. "+
			"A research agent drafts the review, a peer review agent evaluates it, and the draft is revised "+
			"until the review passes or the iteration limit is reached. Takes several minutes."),
		mcpgo.WithString("topic",
			mcpgo.Required(),
			mcpgo.Description("The research topic to investigate (e.g. \"hallucination in multi-agent systems\")"),
		),
	), s.researchLiteratureReview)

	s.mcp.AddTool(mcpgo.NewTool(ToolDraft,
		mcpgo.WithDescription("Run a literature review on a research topic with the research agent only, "+
			"skipping peer review. Faster than research_literature_review."),
		mcpgo.WithString("topic",
			mcpgo.Required(),
			mcpgo.Description("The research topic to investigate"),
		),
	), s.researchDraft)

	s.mcp.AddTool(mcpgo.NewTool(ToolVerifyClaim,
		mcpgo.WithDescription("Verify a factual claim against the scientific literature. "+
			"Reports whether the claim is supported, contradicted or inconclusive. Single pass, no peer review."),
		mcpgo.WithString("claim",
			mcpgo.Required(),
			mcpgo.Description("The factual claim to verify"),
		),
	), s.verifyClaim)

	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// NewSSEServer returns an SSE transport for the tools, reachable at baseURL.
func (s *Server) NewSSEServer(baseURL string) *server.SSEServer {
	return server.NewSSEServer(s.mcp, server.WithBaseURL(baseURL))
}

func (s *Server) researchLiteratureReview(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	topic, _ := request.Params.Arguments["topic"].(string)
	return s.run(ctx, ToolLiteratureReview, domain.ResearchRequest{Mode: domain.ModeResearch, Input: topic})
}

func (s *Server) researchDraft(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	topic, _ := request.Params.Arguments["topic"].(string)
	return s.run(ctx, ToolDraft, domain.ResearchRequest{Mode: domain.ModeDraft, Input: topic})
}

func (s *Server) verifyClaim(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	claim, _ := request.Params.Arguments["claim"].(string)
	return s.run(ctx, ToolVerifyClaim, domain.ResearchRequest{Mode: domain.ModeVerify, Input: claim})
}

func (s *Server) run(ctx context.Context, tool string, req domain.ResearchRequest) (*mcpgo.CallToolResult, error) {
	session, err := s.service.StartSession(ctx, req)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}

	observer := &progress{tool: tool}
	result, err := stream.Collect(ctx, s.service.Config().RunBudget(), func(ctx context.Context, sink stream.Sink) error {
		return s.service.Run(ctx, session, stream.NewTee(sink, observer))
	})
	if err != nil {
		log.Printf("WARN: %s session %s failed: %v", tool, session.SessionID, err)
		return mcpgo.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}

	return mcpgo.NewToolResultText(formatOutput(result.Report, result.IterationInfo)), nil
}

// formatOutput appends the iteration footer to a report.
func formatOutput(report, iterationInfo string) string {
	if iterationInfo == "" {
		return report
	}
	return report + "\n\n---\n*" + iterationInfo + "*"
}
