package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/core/ports"
	"github.com/kirillkom/requirements-guard/internal/report"
)

const (
	serverName    = "requirements-guard"
	serverVersion = "1.0.0"

	defaultTopK = 10
	maxTopK     = 100
)

// AnalysisRunner is the analysis service plus the ability to wait for the
// active run, which tool calls need to answer synchronously.
type AnalysisRunner interface {
	ports.AnalysisRunner
	Wait(ctx context.Context) error
}

type Server struct {
	analysis AnalysisRunner
	searcher ports.KnowledgeSearcher
	logger   *slog.Logger
	now      func() time.Time
}

func New(analysis AnalysisRunner, searcher ports.KnowledgeSearcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		analysis: analysis,
		searcher: searcher,
		logger:   logger,
		now:      time.Now,
	}
}

// MCPServer registers the tools on a fresh mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Classifies software requirement sentences as clear or ambiguous and proposes grounded rewrites for the ambiguous ones."),
	)

	srv.AddTool(
		mcp.NewTool("analyze_requirements",
			mcp.WithDescription("Split requirement text into sentences, classify each one and rewrite ambiguous sentences using the knowledge base"),
			mcp.WithString("text", mcp.Required(), mcp.Description("Requirement text; sentences end with . ? or !")),
			mcp.WithBoolean("include_explanation", mcp.Description("Ask for a short explanation with each rewrite")),
			mcp.WithBoolean("text_report", mcp.Description("Return the plain-text report instead of JSON")),
		),
		s.handleAnalyze,
	)
	srv.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Hybrid lexical and semantic search over the knowledge base, reranked"),
			mcp.WithString("query", mcp.Required(), mcp.Description("Free-text query")),
			mcp.WithNumber("top_k", mcp.Description("Candidates per retrieval source, default 10")),
		),
		s.handleSearch,
	)
	srv.AddTool(
		mcp.NewTool("knowledge_stats",
			mcp.WithDescription("Report how many knowledge chunks are stored"),
		),
		s.handleStats,
	)
	return srv
}

// ServeStdio blocks serving MCP over stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

type analyzeOutput struct {
	RunID   string                  `json:"run_id"`
	State   domain.RunState         `json:"state"`
	Summary domain.Summary          `json:"summary"`
	Results []domain.AnalysisResult `json:"results"`
}

func (s *Server) handleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	includeExplanation := req.GetBool("include_explanation", false)

	if _, err := s.analysis.Start(ctx, text, includeExplanation); err != nil {
		return toolError("analyze_requirements", err), nil
	}
	if err := s.analysis.Wait(ctx); err != nil {
		s.analysis.Stop()
		return toolError("analyze_requirements", fmt.Errorf("wait for analysis: %w", err)), nil
	}

	snapshot := s.analysis.Snapshot()
	s.logger.Info("mcp_analysis_completed", "run_id", snapshot.ID, "state", snapshot.State, "items", len(snapshot.Results))
	if req.GetBool("text_report", false) {
		return mcp.NewToolResultText(report.Text(snapshot.Results, s.now())), nil
	}
	return jsonResult(analyzeOutput{
		RunID:   snapshot.ID,
		State:   snapshot.State,
		Summary: domain.Summarize(snapshot.Results),
		Results: snapshot.Results,
	})
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := req.GetInt("top_k", defaultTopK)
	if topK <= 0 || topK > maxTopK {
		return mcp.NewToolResultError(fmt.Sprintf("top_k must be between 1 and %d", maxTopK)), nil
	}

	evidence, err := s.searcher.Search(ctx, query, topK)
	if err != nil {
		return toolError("search_knowledge", err), nil
	}
	return jsonResult(map[string]any{
		"query":    query,
		"evidence": evidence,
	})
}

func (s *Server) handleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, err := s.searcher.Count(ctx)
	if err != nil {
		return toolError("knowledge_stats", err), nil
	}
	return jsonResult(map[string]int{"chunks": count})
}

func toolError(tool string, err error) *mcp.CallToolResult {
	slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return mcp.NewToolResultError("an analysis run is already in progress")
	case errors.Is(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
