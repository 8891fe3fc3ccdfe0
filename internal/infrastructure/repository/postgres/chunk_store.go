package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
)

var identPattern = regexp.MustCompile(`^[a-z_]+$`)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ChunkStore persists document chunks with their pgvector embeddings in
// the document_chunks table and serves nearest-neighbour queries over
// the cosine distance operator.
type ChunkStore struct {
	pool     DBProvider
	language string
	logger   *slog.Logger
}

func NewChunkStore(pool DBProvider, language string, logger *slog.Logger) (*ChunkStore, error) {
	lang := strings.TrimSpace(strings.ToLower(language))
	if !identPattern.MatchString(lang) {
		return nil, fmt.Errorf("invalid text search language %q", language)
	}
	return &ChunkStore{pool: pool, language: lang, logger: logger}, nil
}

// EnsureBaseSchema creates the extension, the chunk table and the
// file_id index. Every process runs it at boot, so documents can be
// indexed before any lexical initialization happens.
func (s *ChunkStore) EnsureBaseSchema(ctx context.Context) error {
	return s.runDDL(ctx, []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS document_chunks (
	custom_id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_file_id ON document_chunks ((metadata->>'file_id'))`,
	})
}

// EnsureLexicalSchema adds the full text columns and index on top of
// the base table.
func (s *ChunkStore) EnsureLexicalSchema(ctx context.Context) error {
	return s.runDDL(ctx, []string{
		`ALTER TABLE document_chunks ADD COLUMN IF NOT EXISTS search_text TEXT`,
		fmt.Sprintf(`ALTER TABLE document_chunks ADD COLUMN IF NOT EXISTS search_vector tsvector
	GENERATED ALWAYS AS (to_tsvector('%s',
		coalesce(content, '') || ' ' ||
		coalesce(search_text, '') || ' ' ||
		coalesce(metadata->>'source', '')
	)) STORED`, s.language),
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_search_vector ON document_chunks USING GIN (search_vector)`,
		`UPDATE document_chunks SET search_text = content WHERE search_text IS NULL`,
	})
}

// EnsureSchema applies the base and lexical layers in order.
func (s *ChunkStore) EnsureSchema(ctx context.Context) error {
	if err := s.EnsureBaseSchema(ctx); err != nil {
		return err
	}
	return s.EnsureLexicalSchema(ctx)
}

// runDDL executes statements in one transaction under an advisory
// lock, so api and worker can boot at the same time against one
// database.
func (s *ChunkStore) runDDL(ctx context.Context, statements []string) error {
	db, err := s.pool.Get(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema ddl: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *ChunkStore) AddChunks(ctx context.Context, chunks []domain.DocumentChunk, embeddings [][]float32) ([]string, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	db, err := s.pool.Get(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		metaJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal chunk metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO document_chunks (custom_id, content, metadata, embedding, search_text)
VALUES ($1, $2, $3, $4::vector, $2)
ON CONFLICT (custom_id) DO UPDATE
SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding, search_text = EXCLUDED.search_text
`, chunk.CustomID, chunk.Content, metaJSON, VectorLiteral(embeddings[i]))
		if err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", chunk.CustomID, err)
		}
		ids = append(ids, chunk.CustomID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert tx: %w", err)
	}
	return ids, nil
}

// SimilaritySearchByVector runs one nearest-neighbour query. The only
// supported filter shape is a single metadata key equality; everything
// richer is planned above this layer as multiple calls.
func (s *ChunkStore) SimilaritySearchByVector(ctx context.Context, embedding []float32, k int, filter domain.FieldFilter) ([]domain.ScoredChunk, error) {
	db, err := s.pool.Get(ctx)
	if err != nil {
		return nil, err
	}

	query := `
SELECT custom_id, content, metadata, embedding <=> $1::vector AS distance
FROM document_chunks`
	args := []any{VectorLiteral(embedding)}

	if filter.Field != "" {
		switch filter.Op {
		case domain.OpEquals:
			query += `
WHERE metadata->>$2 = $3`
			args = append(args, filter.Field, fmt.Sprint(filter.Value))
		case domain.OpNotEquals:
			// Not supported by the vector primitive. Dropping it widens
			// the result set instead of failing the whole query.
			s.logger.Warn("vector_filter_dropped", "field", filter.Field, "op", filter.Op)
		default:
			return nil, fmt.Errorf("vector search supports equality filters only, got %q", filter.Op)
		}
	}
	query += fmt.Sprintf(`
ORDER BY distance
LIMIT %d`, k)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanScoredChunks(rows)
}

func (s *ChunkStore) GetChunksByIDs(ctx context.Context, ids []string) ([]domain.DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, err := s.pool.Get(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT custom_id, content, metadata
FROM document_chunks
WHERE custom_id = ANY($1)
`, ids)
	if err != nil {
		return nil, fmt.Errorf("get chunks by ids: %w", err)
	}
	defer rows.Close()

	var chunks []domain.DocumentChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// FilterExistingIDs returns the subset of ids already present, used to
// skip re-embedding on repeat ingestion.
func (s *ChunkStore) FilterExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, err := s.pool.Get(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT custom_id FROM document_chunks WHERE custom_id = ANY($1)
`, ids)
	if err != nil {
		return nil, fmt.Errorf("filter existing ids: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		existing = append(existing, id)
	}
	return existing, rows.Err()
}

// IDsByFileIDPrefix lists chunk IDs generated for one file. Chunk IDs
// start with the file ID followed by an underscore separator, so this
// is a LIKE over custom_id with wildcard characters escaped.
func (s *ChunkStore) IDsByFileIDPrefix(ctx context.Context, fileID string) ([]string, error) {
	db, err := s.pool.Get(ctx)
	if err != nil {
		return nil, err
	}

	pattern := likeEscaper.Replace(fileID) + `\_%`
	rows, err := db.QueryContext(ctx, `
SELECT custom_id FROM document_chunks WHERE custom_id LIKE $1 ESCAPE '\'
`, pattern)
	if err != nil {
		return nil, fmt.Errorf("ids by file id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ChunkStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	db, err := s.pool.Get(ctx)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM document_chunks WHERE custom_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Info("chunks_deleted", "requested", len(ids), "deleted", n)
	}
	return nil
}

// VectorLiteral renders an embedding in pgvector input syntax.
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (domain.DocumentChunk, error) {
	var chunk domain.DocumentChunk
	var metaRaw []byte
	if err := row.Scan(&chunk.CustomID, &chunk.Content, &metaRaw); err != nil {
		return domain.DocumentChunk{}, fmt.Errorf("scan chunk: %w", err)
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &chunk.Metadata); err != nil {
			return domain.DocumentChunk{}, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
	}
	if chunk.Metadata == nil {
		chunk.Metadata = map[string]any{}
	}
	return chunk, nil
}

func scanScoredChunks(rows *sql.Rows) ([]domain.ScoredChunk, error) {
	var out []domain.ScoredChunk
	for rows.Next() {
		var chunk domain.DocumentChunk
		var metaRaw []byte
		var score float64
		if err := rows.Scan(&chunk.CustomID, &chunk.Content, &metaRaw, &score); err != nil {
			return nil, fmt.Errorf("scan scored chunk: %w", err)
		}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		if chunk.Metadata == nil {
			chunk.Metadata = map[string]any{}
		}
		out = append(out, domain.ScoredChunk{Chunk: chunk, Score: score})
	}
	return out, rows.Err()
}
