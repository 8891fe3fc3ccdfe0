package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mkravets/rag-retrieval/internal/core/ports"
)

const (
	ServerName    = "rag-retrieval"
	ServerVersion = "1.0.0"
)

// Server exposes the retrieval engine as MCP tools over stdio, so agent
// runtimes can call hybrid search without an HTTP surface.
type Server struct {
	mcp      *server.MCPServer
	searcher ports.Searcher
	ingestor ports.DocumentIngestor
	logger   *slog.Logger
}

func NewServer(searcher ports.Searcher, ingestor ports.DocumentIngestor, logger *slog.Logger) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		searcher: searcher,
		ingestor: ingestor,
		logger:   logger,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(queryTool(), s.handleQuery)
	s.mcp.AddTool(queryMultipleTool(), s.handleQueryMultiple)
	s.mcp.AddTool(getChunksTool(), s.handleGetChunks)
	s.mcp.AddTool(searchMetricsTool(), s.handleSearchMetrics)
	s.mcp.AddTool(uploadDocumentTool(), s.handleUploadDocument)
}

// Serve blocks on stdio until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.searcher.Initialize(ctx); err != nil {
		s.logger.Warn("searcher_init_incomplete", "error", err)
	}
	defer func() {
		if err := s.searcher.Cleanup(); err != nil {
			s.logger.Warn("searcher_cleanup_failed", "error", err)
		}
	}()
	return server.ServeStdio(s.mcp)
}
