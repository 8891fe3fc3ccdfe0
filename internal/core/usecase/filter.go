package usecase

import (
	"github.com/mkravets/rag-retrieval/internal/core/domain"
)

// semanticPlan is the execution shape for the vector branch. The vector
// primitive accepts one equality filter at most, so set predicates are
// decomposed into one equality query per value.
type semanticPlan struct {
	filter domain.FieldFilter
	values []string
	// empty reports a predicate that can match nothing, e.g. an IN over
	// an empty set. The executor returns zero results without querying.
	empty bool
}

func planSemantic(req domain.SearchRequest) semanticPlan {
	if req.FileID != "" {
		return semanticPlan{filter: domain.Equals(domain.MetaFileID, req.FileID)}
	}
	if req.FileIDs != nil {
		if len(req.FileIDs) == 0 {
			return semanticPlan{empty: true}
		}
		if len(req.FileIDs) == 1 {
			return semanticPlan{filter: domain.Equals(domain.MetaFileID, req.FileIDs[0])}
		}
		return semanticPlan{values: req.FileIDs}
	}
	return semanticPlan{}
}

func lexicalFilters(req domain.SearchRequest) []domain.FieldFilter {
	if req.FileID != "" {
		return []domain.FieldFilter{domain.Equals(domain.MetaFileID, req.FileID)}
	}
	if req.FileIDs != nil {
		return []domain.FieldFilter{domain.In(domain.MetaFileID, req.FileIDs)}
	}
	return nil
}

// allowedMetadata is the caller-visible key set. Everything else in
// stored chunk metadata stays internal.
var allowedMetadata = map[string]struct{}{
	domain.MetaFileID:       {},
	domain.MetaSource:       {},
	domain.MetaChunkIndex:   {},
	domain.MetaTotalChunks:  {},
	domain.MetaCustomID:     {},
	domain.MetaFusionScore:  {},
	domain.MetaSemanticRank: {},
	domain.MetaLexicalRank:  {},
	"filename":              {},
	"page":                  {},
	"last_modified":         {},
	"page_url":              {},
}

func cleanMetadata(chunk domain.DocumentChunk) domain.DocumentChunk {
	cleaned := make(map[string]any, len(chunk.Metadata))
	for k, v := range chunk.Metadata {
		if _, ok := allowedMetadata[k]; ok {
			cleaned[k] = v
		}
	}
	chunk.Metadata = cleaned
	return chunk
}
