package ports

import (
	"context"
	"io"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
)

// ChunkVectorStore is the vector-similarity collaborator. Its similarity
// primitive accepts at most one equality filter; set-membership predicates
// are decomposed into parallel equality queries above this interface.
type ChunkVectorStore interface {
	SimilaritySearchByVector(ctx context.Context, embedding []float32, k int, filter domain.FieldFilter) ([]domain.ScoredChunk, error)
	AddChunks(ctx context.Context, chunks []domain.DocumentChunk, embeddings [][]float32) ([]string, error)
	GetChunksByIDs(ctx context.Context, ids []string) ([]domain.DocumentChunk, error)
	FilterExistingIDs(ctx context.Context, ids []string) ([]string, error)
	IDsByFileIDPrefix(ctx context.Context, fileID string) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// LexicalSearcher executes full-text queries over the generated
// search-vector column. It supports native set predicates, so no fan-out
// happens on this path.
type LexicalSearcher interface {
	Initialize(ctx context.Context) error
	Ready() bool
	Search(ctx context.Context, queryText string, k int, filters []domain.FieldFilter, orMode bool) ([]domain.ScoredChunk, error)
}

// SearchTextSyncer keeps the lexical search column consistent with newly
// stored chunks. Returns true when at least one chunk was updated.
type SearchTextSyncer interface {
	Sync(ctx context.Context, chunks []domain.DocumentChunk, fileID string, ids []string) (bool, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into retrievable units.
type Chunker interface {
	Split(text string) []string
}

// DocumentRepository persists and reads ingestion-side document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, chunkCount int) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}
