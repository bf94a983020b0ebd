package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
	"github.com/kirillkom/ingest-sentinel/internal/core/ports"
)

// Server exposes the read-only dataset query surface as MCP tools over stdio,
// so agent runtimes can interrogate a consolidated execution date the same way
// the HTTP API does.
type Server struct {
	query ports.DatasetQuery
	mcp   *server.MCPServer
	log   *slog.Logger
}

func NewServer(query ports.DatasetQuery, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{query: query, log: log}

	srv := server.NewMCPServer(
		"ingest-sentinel",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	srv.AddTool(mcp.NewTool("list_sources",
		mcp.WithDescription("List every configured data source for the execution date with file counts for the day itself and the same weekday one week earlier."),
	), s.handleListSources)

	srv.AddTool(mcp.NewTool("get_source_cv_and_data",
		mcp.WithDescription("Return one source's contract document (CV) verbatim, its daily and last-week file records, detected incident evidence and aggregate analysis context."),
		mcp.WithString("source_id",
			mcp.Required(),
			mcp.Description("Source identifier as returned by list_sources, e.g. 220504."),
		),
	), s.handleGetSource)

	srv.AddTool(mcp.NewTool("get_execution_date_info",
		mcp.WithDescription("Resolve the execution date to the weekday labels used by contract schedule tables."),
	), s.handleExecutionDateInfo)

	s.mcp = srv
	return s
}

// ServeStdio serves the MCP protocol on stdin/stdout until the client closes
// the stream. Logs go to stderr; stdout belongs to the protocol.
func (s *Server) ServeStdio() error {
	s.log.Info("mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleListSources(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("tool call", slog.String("tool", "list_sources"))
	return jsonResult(s.query.ListSources())
}

func (s *Server) handleGetSource(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, err := req.RequireString("source_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.log.Debug("tool call", slog.String("tool", "get_source_cv_and_data"), slog.String("source_id", sourceID))

	detail, err := s.query.SourceDetail(sourceID)
	if err != nil {
		if domain.IsKind(err, domain.ErrSourceNotFound) {
			// Unknown ids answer with the structured marker instead of a
			// protocol error so the agent can move on to the next source.
			return jsonResult(domain.SourceNotFound{
				SourceID: sourceID,
				Error:    domain.SourceNotFoundMarker,
			})
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(detail)
}

func (s *Server) handleExecutionDateInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("tool call", slog.String("tool", "get_execution_date_info"))

	info, err := s.query.ExecutionDateInfo()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool payload: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
