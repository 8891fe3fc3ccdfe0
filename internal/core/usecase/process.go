package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
	"github.com/mkravets/rag-retrieval/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.ChunkVectorStore
	syncer    ports.SearchTextSyncer
	logger    *slog.Logger
	now       func() time.Time
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.ChunkVectorStore,
	syncer ports.SearchTextSyncer,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		syncer:    syncer,
		logger:    logger,
		now:       time.Now,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunkCount, err := uc.pipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SetChunkCount(ctx, documentID, chunkCount); err != nil {
		return fmt.Errorf("set chunk count: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) pipeline(ctx context.Context, documentID string) (int, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("load document: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		uc.logger.Warn("document_empty_after_extract", "document_id", doc.ID)
		return 0, nil
	}

	pieces := uc.chunker.Split(text)
	if len(pieces) == 0 {
		return 0, nil
	}

	if err := uc.clearPrevious(ctx, doc.ID); err != nil {
		return 0, err
	}

	fresh := uc.buildChunks(doc, pieces)
	texts := make([]string, len(fresh))
	for i, chunk := range fresh {
		texts[i] = chunk.Content
	}
	embeddings, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	ids, err := uc.store.AddChunks(ctx, fresh, embeddings)
	if err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	synced, err := uc.syncer.Sync(ctx, fresh, doc.ID, ids)
	if err != nil {
		return 0, fmt.Errorf("sync search text: %w", err)
	}
	if !synced {
		uc.logger.Warn("search_text_not_synced", "document_id", doc.ID, "chunks", len(fresh))
	}

	return len(fresh), nil
}

func (uc *ProcessDocumentUseCase) buildChunks(doc *domain.Document, pieces []string) []domain.DocumentChunk {
	now := uc.now()
	total := len(pieces)
	chunks := make([]domain.DocumentChunk, 0, total)
	for i, content := range pieces {
		digest := md5Hex(content)
		chunks = append(chunks, domain.DocumentChunk{
			CustomID: chunkID(doc.ID, i, digest, now),
			Content:  content,
			Metadata: map[string]any{
				domain.MetaFileID:      doc.ID,
				domain.MetaUserID:      doc.UserID,
				domain.MetaSource:      doc.Filename,
				domain.MetaDigest:      digest,
				domain.MetaChunkIndex:  i,
				domain.MetaTotalChunks: total,
			},
		})
	}
	return chunks
}

// clearPrevious drops chunks left by an earlier run for the same file.
// Chunk IDs are timestamped, so redelivered events would otherwise pile
// up duplicate copies instead of overwriting.
func (uc *ProcessDocumentUseCase) clearPrevious(ctx context.Context, fileID string) error {
	existing, err := uc.store.IDsByFileIDPrefix(ctx, fileID)
	if err != nil {
		return fmt.Errorf("list previous chunks: %w", err)
	}
	if len(existing) == 0 {
		return nil
	}
	uc.logger.Info("reindexing_document", "file_id", fileID, "previous_chunks", len(existing))
	if err := uc.store.DeleteByIDs(ctx, existing); err != nil {
		return fmt.Errorf("delete previous chunks: %w", err)
	}
	return nil
}

// chunkID builds a collision-resistant, human-traceable chunk key:
// file, position, content digest prefix and a microsecond timestamp.
func chunkID(fileID string, index int, digest string, t time.Time) string {
	stamp := t.Format("20060102150405") + fmt.Sprintf("%06d", t.Nanosecond()/1000)
	return fmt.Sprintf("%s_%d_%s_%s", fileID, index, digest[:8], stamp)
}

func md5Hex(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
