package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
)

func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := parseSearchRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := s.searcher.Query(ctx, req)
	if err != nil {
		return searchErrorResult(err), nil
	}
	return mcp.NewToolResultText(formatJSON(outcome)), nil
}

func (s *Server) handleQueryMultiple(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := parseSearchRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args, _ := request.Params.Arguments.(map[string]interface{})
	rawIDs, ok := args["file_ids"].([]interface{})
	if !ok {
		return mcp.NewToolResultError("file_ids parameter is required"), nil
	}
	fileIDs := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, ok := raw.(string)
		if !ok {
			return mcp.NewToolResultError("file_ids entries must be strings"), nil
		}
		fileIDs = append(fileIDs, id)
	}
	req.FileID = ""
	req.FileIDs = fileIDs

	outcome, err := s.searcher.QueryMultiple(ctx, req)
	if err != nil {
		return searchErrorResult(err), nil
	}
	return mcp.NewToolResultText(formatJSON(outcome)), nil
}

func (s *Server) handleSearchMetrics(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.searcher.Metrics()
	response := map[string]interface{}{
		"search_count":          snap.SearchCount,
		"avg_search_latency_ms": float64(snap.AvgSearchLatency.Microseconds()) / 1000.0,
		"fusion_count":          snap.FusionCount,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func parseSearchRequest(request mcp.CallToolRequest) (domain.SearchRequest, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return domain.SearchRequest{}, fmt.Errorf("invalid arguments")
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return domain.SearchRequest{}, fmt.Errorf("query parameter is required")
	}

	req := domain.SearchRequest{Query: query}

	if raw, ok := args["k"].(float64); ok {
		if raw < 1 {
			return domain.SearchRequest{}, fmt.Errorf("k must be at least 1")
		}
		req.K = int(raw)
	}
	if fileID, ok := args["file_id"].(string); ok {
		req.FileID = fileID
	}
	if rawType, ok := args["search_type"].(string); ok && rawType != "" {
		searchType, valid := domain.ParseSearchType(rawType)
		if !valid {
			return domain.SearchRequest{}, fmt.Errorf("unknown search_type %q", rawType)
		}
		req.Type = searchType
	}
	if weight, ok := args["semantic_weight"].(float64); ok {
		req.SemanticWeight = weight
	}
	if userID, ok := args["user_id"].(string); ok {
		req.RequestorID = userID
	}
	return req, nil
}

func searchErrorResult(err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError(fmt.Sprintf("invalid request: %v", err))
	case domain.IsKind(err, domain.ErrSearchTimeout):
		return mcp.NewToolResultError("search timed out")
	default:
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err))
	}
}

func formatJSON(v interface{}) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

func (s *Server) handleUploadDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.ingestor == nil {
		return mcp.NewToolResultError("document upload is not enabled"), nil
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}
	filename, ok := args["filename"].(string)
	if !ok || filename == "" {
		return mcp.NewToolResultError("filename parameter is required"), nil
	}
	content, ok := args["content"].(string)
	if !ok || content == "" {
		return mcp.NewToolResultError("content parameter is required"), nil
	}
	mimeType, _ := args["mime_type"].(string)
	if mimeType == "" {
		mimeType = "text/plain"
	}
	userID, _ := args["user_id"].(string)

	doc, err := s.ingestor.Upload(ctx, filename, mimeType, userID, strings.NewReader(content))
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid request: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("upload failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(doc)), nil
}

func (s *Server) handleGetChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}
	rawIDs, ok := args["ids"].([]interface{})
	if !ok || len(rawIDs) == 0 {
		return mcp.NewToolResultError("ids parameter is required"), nil
	}
	ids := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, ok := raw.(string)
		if !ok {
			return mcp.NewToolResultError("ids entries must be strings"), nil
		}
		ids = append(ids, id)
	}

	chunks, err := s.searcher.Lookup(ctx, ids)
	if err != nil {
		return searchErrorResult(err), nil
	}
	return mcp.NewToolResultText(formatJSON(chunks)), nil
}
