package usecase

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
	"github.com/mkravets/rag-retrieval/internal/core/ports"
)

// semanticExecutor runs the vector branch of a search. Set predicates
// fan out into parallel equality queries, each over-fetching 2x the
// requested depth so the merged list does not starve any single file.
type semanticExecutor struct {
	store ports.ChunkVectorStore
}

func (e semanticExecutor) run(ctx context.Context, embedding []float32, k int, plan semanticPlan) ([]domain.ScoredChunk, error) {
	if plan.empty {
		return nil, nil
	}
	if len(plan.values) == 0 {
		results, err := e.store.SimilaritySearchByVector(ctx, embedding, k, plan.filter)
		if err != nil {
			return nil, err
		}
		return normalizeIDs(results), nil
	}

	perQuery := k * 2
	partial := make([][]domain.ScoredChunk, len(plan.values))

	g, gctx := errgroup.WithContext(ctx)
	for i, value := range plan.values {
		g.Go(func() error {
			results, err := e.store.SimilaritySearchByVector(gctx, embedding, perQuery, domain.Equals(domain.MetaFileID, value))
			if err != nil {
				return err
			}
			partial[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []domain.ScoredChunk
	for _, p := range partial {
		merged = append(merged, p...)
	}
	// Distance sorts ascending: closer is better.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score < merged[j].Score
	})

	seen := make(map[string]struct{}, len(merged))
	deduped := merged[:0]
	for _, sc := range merged {
		key := sc.Chunk.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, sc)
	}
	if len(deduped) > k {
		deduped = deduped[:k]
	}
	return normalizeIDs(deduped), nil
}

// normalizeIDs mirrors the chunk ID into both historical metadata keys
// so downstream readers find it under either name.
func normalizeIDs(chunks []domain.ScoredChunk) []domain.ScoredChunk {
	for i, sc := range chunks {
		if sc.Chunk.CustomID == "" {
			continue
		}
		meta := sc.Chunk.CloneMetadata()
		meta[domain.MetaCustomID] = sc.Chunk.CustomID
		meta[domain.MetaAltID] = sc.Chunk.CustomID
		chunks[i].Chunk.Metadata = meta
	}
	return chunks
}
