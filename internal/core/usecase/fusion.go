package usecase

import (
	"fmt"
	"sort"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
)

// Fuser merges the two ranked branches of a hybrid query into one list.
type Fuser interface {
	Fuse(semantic, lexical []domain.ScoredChunk, semanticWeight float64, rankOffset int) ([]domain.ScoredChunk, error)
}

type rrfFuser struct{}

func NewRRFFuser() Fuser {
	return rrfFuser{}
}

type fusedEntry struct {
	chunk        domain.DocumentChunk
	score        float64
	semanticRank int
	lexicalRank  int
}

// Fuse applies reciprocal rank fusion. Each branch contributes
// weight/(offset+rank+1) per occurrence; a chunk absent from a branch
// contributes zero from it and carries rank -1 in the annotations.
// Ties keep first-encounter order, semantic branch first.
func (rrfFuser) Fuse(semantic, lexical []domain.ScoredChunk, semanticWeight float64, rankOffset int) (out []domain.ScoredChunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("rank fusion: %v", r)
		}
	}()

	if semanticWeight < 0 || semanticWeight > 1 {
		return nil, fmt.Errorf("semantic weight %f outside [0,1]", semanticWeight)
	}
	if rankOffset < 1 {
		rankOffset = 60
	}

	acc := make(map[string]*fusedEntry, len(semantic)+len(lexical))
	var order []string

	add := func(chunks []domain.ScoredChunk, weight float64, isSemantic bool) {
		for rank, sc := range chunks {
			key := sc.Chunk.FusionKey()
			entry, ok := acc[key]
			if !ok {
				entry = &fusedEntry{chunk: sc.Chunk, semanticRank: -1, lexicalRank: -1}
				acc[key] = entry
				order = append(order, key)
			}
			entry.score += weight / float64(rankOffset+rank+1)
			if isSemantic {
				if entry.semanticRank == -1 {
					entry.semanticRank = rank
				}
			} else {
				if entry.lexicalRank == -1 {
					entry.lexicalRank = rank
				}
				if entry.chunk.Content == "" && sc.Chunk.Content != "" {
					entry.chunk = sc.Chunk
				}
			}
		}
	}

	add(semantic, semanticWeight, true)
	add(lexical, 1.0-semanticWeight, false)

	out = make([]domain.ScoredChunk, 0, len(order))
	for _, key := range order {
		entry := acc[key]
		chunk := entry.chunk
		meta := chunk.CloneMetadata()
		meta[domain.MetaFusionScore] = entry.score
		meta[domain.MetaSemanticRank] = entry.semanticRank
		meta[domain.MetaLexicalRank] = entry.lexicalRank
		chunk.Metadata = meta
		out = append(out, domain.ScoredChunk{Chunk: chunk, Score: entry.score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}
