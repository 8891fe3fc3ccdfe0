package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/resilience"
)

// TextSyncer backfills search_text for freshly inserted chunks and
// stamps chunk ordering metadata. Rows are matched by custom_id plus
// the file_id they claim, so a stale id from another file never gets
// overwritten.
type TextSyncer struct {
	pool     DBProvider
	executor *resilience.Executor
	logger   *slog.Logger
}

func NewTextSyncer(pool DBProvider, executor *resilience.Executor, logger *slog.Logger) *TextSyncer {
	return &TextSyncer{pool: pool, executor: executor, logger: logger}
}

// Sync reports true when at least one row was updated. A fully
// unmatched batch returns false without error and without retrying;
// transient database failures are retried with backoff.
func (t *TextSyncer) Sync(ctx context.Context, chunks []domain.DocumentChunk, fileID string, ids []string) (bool, error) {
	if len(chunks) == 0 {
		return false, nil
	}
	if len(ids) != 0 && len(ids) != len(chunks) {
		return false, fmt.Errorf("sync search text for %s: %d ids for %d chunks", fileID, len(ids), len(chunks))
	}

	var synced bool
	err := t.executor.Execute(ctx, "search_text_sync", func(ctx context.Context) error {
		updated, err := t.syncOnce(ctx, chunks, fileID, ids)
		if err != nil {
			return err
		}
		synced = updated > 0
		if updated < len(chunks) {
			t.logger.Warn("search_text_sync_partial",
				"file_id", fileID,
				"updated", updated,
				"total", len(chunks),
			)
		}
		return nil
	}, func(err error) resilience.Verdict {
		return resilience.Verdict{Retry: true, Trip: true}
	})
	if err != nil {
		return false, fmt.Errorf("sync search text for %s: %w", fileID, err)
	}
	return synced, nil
}

// syncOnce matches rows by the generated IDs returned from the chunk
// insert; chunk CustomID is the fallback when none were passed.
func (t *TextSyncer) syncOnce(ctx context.Context, chunks []domain.DocumentChunk, fileID string, ids []string) (int, error) {
	db, err := t.pool.Get(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sync tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	total := len(chunks)
	updated := 0
	for i, chunk := range chunks {
		idx := i
		if n, ok := chunk.ChunkIndex(); ok {
			idx = n
		}
		customID := chunk.CustomID
		if i < len(ids) {
			customID = ids[i]
		}
		res, err := tx.ExecContext(ctx, `
UPDATE document_chunks
SET search_text = $1,
    metadata = metadata || jsonb_build_object('chunk_index', $2::int, 'total_chunks', $3::int)
WHERE custom_id = $4 AND metadata->>'file_id' = $5
`, chunk.Content, idx, total, customID, fileID)
		if err != nil {
			return 0, fmt.Errorf("update chunk %s: %w", customID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected for %s: %w", customID, err)
		}
		if n == 0 {
			t.logger.Warn("search_text_sync_unmatched", "custom_id", customID, "file_id", fileID)
			continue
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sync tx: %w", err)
	}
	return updated, nil
}
