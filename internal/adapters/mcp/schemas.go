package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func queryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query",
		Description: "Search indexed documents, optionally scoped to one file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query text",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results to return",
					"default":     4,
					"minimum":     1,
				},
				"file_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one source file",
				},
				"search_type": map[string]interface{}{
					"type":        "string",
					"description": "One of semantic, bm25, hybrid",
					"enum":        []string{"semantic", "bm25", "hybrid"},
				},
				"semantic_weight": map[string]interface{}{
					"type":        "number",
					"description": "Hybrid fusion weight for the semantic branch, 0 to 1",
				},
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "Requesting user for result ownership checks",
				},
			},
			Required: []string{"query"},
		},
	}
}

func queryMultipleTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_multiple",
		Description: "Search indexed documents across an explicit set of files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query text",
				},
				"file_ids": map[string]interface{}{
					"type":        "array",
					"description": "Source files to search, no duplicates",
					"items":       map[string]interface{}{"type": "string"},
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results to return",
					"default":     4,
					"minimum":     1,
				},
				"search_type": map[string]interface{}{
					"type":        "string",
					"description": "One of semantic, bm25, hybrid",
					"enum":        []string{"semantic", "bm25", "hybrid"},
				},
				"semantic_weight": map[string]interface{}{
					"type":        "number",
					"description": "Hybrid fusion weight for the semantic branch, 0 to 1",
				},
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "Requesting user for result ownership checks",
				},
			},
			Required: []string{"query", "file_ids"},
		},
	}
}

func searchMetricsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_metrics",
		Description: "Report cumulative search counters since process start",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func uploadDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "upload_document",
		Description: "Store a text document and queue it for indexing",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Original file name, used as the chunk source label",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Document text",
				},
				"mime_type": map[string]interface{}{
					"type":        "string",
					"description": "Document MIME type",
					"default":     "text/plain",
				},
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "Owning user recorded on every chunk",
				},
			},
			Required: []string{"filename", "content"},
		},
	}
}

func getChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_chunks",
		Description: "Fetch indexed chunks by their IDs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"ids": map[string]interface{}{
					"type":        "array",
					"description": "Chunk IDs as returned in search results",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"ids"},
		},
	}
}
