package ports

import (
	"context"
	"io"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
)

// Searcher is the inbound contract for hybrid retrieval.
type Searcher interface {
	Query(ctx context.Context, req domain.SearchRequest) (*domain.SearchOutcome, error)
	QueryMultiple(ctx context.Context, req domain.SearchRequest) (*domain.SearchOutcome, error)
	Lookup(ctx context.Context, ids []string) ([]domain.DocumentChunk, error)
	Metrics() domain.SearchMetricsSnapshot
	Initialize(ctx context.Context) error
	Cleanup() error
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType, userID string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
