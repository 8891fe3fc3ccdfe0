package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
)

var queryCleanPattern = regexp.MustCompile(`[^a-zA-Z0-9áéíóúñüçÁÉÍÓÚÑÜÇ\s]`)

// LexicalSearcher ranks chunks with Postgres full text search. The
// search_vector column is a stored tsvector over content, search_text
// and the source metadata field; ranking uses ts_rank_cd with length
// normalization.
type LexicalSearcher struct {
	pool     DBProvider
	schema   *ChunkStore
	language string
	observe  func(time.Duration)
	logger   *slog.Logger

	mu    sync.Mutex
	ready bool
}

func NewLexicalSearcher(pool DBProvider, schema *ChunkStore, language string, observe func(time.Duration), logger *slog.Logger) (*LexicalSearcher, error) {
	lang := strings.TrimSpace(strings.ToLower(language))
	if !identPattern.MatchString(lang) {
		return nil, fmt.Errorf("invalid text search language %q", language)
	}
	if observe == nil {
		observe = func(time.Duration) {}
	}
	return &LexicalSearcher{pool: pool, schema: schema, language: lang, observe: observe, logger: logger}, nil
}

// Initialize applies the lexical schema once. Later calls are no-ops.
func (l *LexicalSearcher) Initialize(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready {
		return nil
	}
	if err := l.schema.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("lexical schema: %w", err)
	}
	l.ready = true
	l.logger.Info("lexical_search_ready", "language", l.language)
	return nil
}

func (l *LexicalSearcher) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Search runs a ranked full text query. An empty cleaned query or an
// empty IN filter short-circuits to zero results without touching the
// database.
func (l *LexicalSearcher) Search(ctx context.Context, queryText string, k int, filters []domain.FieldFilter, orMode bool) ([]domain.ScoredChunk, error) {
	cleaned := CleanQuery(queryText)
	if cleaned == "" {
		return nil, nil
	}

	tsFunc := "plainto_tsquery"
	tsArg := cleaned
	if orMode {
		tsFunc = "to_tsquery"
		tsArg = strings.Join(strings.Fields(cleaned), " | ")
	}

	var sb strings.Builder
	args := []any{tsArg, k}
	fmt.Fprintf(&sb, `
SELECT custom_id, content, metadata, ts_rank_cd(search_vector, %[1]s('%[2]s', $1), 32) AS rank
FROM document_chunks
WHERE search_vector @@ %[1]s('%[2]s', $1)`, tsFunc, l.language)

	for _, f := range filters {
		switch f.Op {
		case domain.OpEquals:
			args = append(args, f.Field, fmt.Sprint(f.Value))
			fmt.Fprintf(&sb, `
AND metadata->>$%d = $%d`, len(args)-1, len(args))
		case domain.OpNotEquals:
			args = append(args, f.Field, fmt.Sprint(f.Value))
			fmt.Fprintf(&sb, `
AND metadata->>$%d <> $%d`, len(args)-1, len(args))
		case domain.OpIn:
			if len(f.Values) == 0 {
				return nil, nil
			}
			args = append(args, f.Field, f.Values)
			fmt.Fprintf(&sb, `
AND metadata->>$%d = ANY($%d)`, len(args)-1, len(args))
		default:
			return nil, fmt.Errorf("unsupported lexical filter op %q", f.Op)
		}
	}
	sb.WriteString(`
ORDER BY rank DESC
LIMIT $2`)

	db, err := l.pool.Get(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	results, err := scanScoredChunks(rows)
	if err != nil {
		return nil, err
	}
	l.observe(time.Since(start))
	return results, nil
}

// CleanQuery strips everything outside letters, digits and Spanish
// accented characters, collapses whitespace and lowercases.
func CleanQuery(q string) string {
	cleaned := queryCleanPattern.ReplaceAllString(q, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.ToLower(cleaned)
}
