package domain

import "time"

type SearchType string

const (
	SearchSemantic SearchType = "semantic"
	SearchBM25     SearchType = "bm25"
	SearchHybrid   SearchType = "hybrid"
)

func ParseSearchType(s string) (SearchType, bool) {
	switch SearchType(s) {
	case SearchSemantic, SearchBM25, SearchHybrid:
		return SearchType(s), true
	default:
		return "", false
	}
}

// SearchRequest carries one retrieval query. Exactly one of FileID/FileIDs
// is set depending on the entry point. SemanticWeight must already be
// defaulted by the caller; the core validates the [0,1] range.
type SearchRequest struct {
	Query          string
	K              int
	FileID         string
	FileIDs        []string
	Type           SearchType
	SemanticWeight float64

	// RequestorID is the caller identity used by the ownership gate; the
	// core never establishes identity, only reads it. Elevated callers may
	// read results owned by other users.
	RequestorID string
	Elevated    bool
}

// SearchOutcome is the result of one orchestrated query. Degraded marks
// requests that succeeded on a fallback path (lexical unavailable, fusion
// error) so callers and tests can assert on the downgrade instead of
// scraping logs.
type SearchOutcome struct {
	Results        []ScoredChunk `json:"results"`
	Mode           SearchType    `json:"mode"`
	Degraded       bool          `json:"degraded,omitempty"`
	DegradedReason string        `json:"degraded_reason,omitempty"`
}

// SearchMetricsSnapshot is the caller-facing view of accumulated search
// counters. Counters never reset except on process restart.
type SearchMetricsSnapshot struct {
	SearchCount      int64         `json:"search_count"`
	AvgSearchLatency time.Duration `json:"avg_search_latency"`
	FusionCount      int64         `json:"fusion_count"`
}
