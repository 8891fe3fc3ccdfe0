package domain

import (
	"fmt"
	"strconv"
)

// Metadata keys shared between the vector store, the lexical engine and the
// fusion layer. Two synonymous primary-ID keys exist because historical
// writers disagreed on the name; readers must accept either.
const (
	MetaFileID      = "file_id"
	MetaUserID      = "user_id"
	MetaDigest      = "digest"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaSource      = "source"
	MetaCustomID    = "custom_id"
	MetaAltID       = "_id"

	MetaFusionScore  = "fusion_score"
	MetaSemanticRank = "semantic_rank"
	MetaLexicalRank  = "lexical_rank"
)

// DocumentChunk is the atomic retrievable unit: one slice of a source
// document plus passthrough metadata.
type DocumentChunk struct {
	CustomID string         `json:"custom_id"`
	Content  string         `json:"page_content"`
	Metadata map[string]any `json:"metadata"`
}

// ScoredChunk pairs a chunk with a query-time relevance score. The score's
// scale depends on the search branch that produced it: semantic distance is
// lower-is-better, lexical rank and fused scores are higher-is-better.
type ScoredChunk struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}

func (c DocumentChunk) FileID() string {
	return metaString(c.Metadata, MetaFileID)
}

func (c DocumentChunk) UserID() string {
	return metaString(c.Metadata, MetaUserID)
}

func (c DocumentChunk) ChunkIndex() (int, bool) {
	return metaInt(c.Metadata, MetaChunkIndex)
}

// FusionKey identifies a chunk across both search branches. Storage IDs are
// not usable here because the two sources expose different ID conventions;
// (file_id, chunk_index) is stable in both.
func (c DocumentChunk) FusionKey() string {
	fileID := c.FileID()
	if fileID == "" {
		fileID = "unknown"
	}
	if idx, ok := c.ChunkIndex(); ok {
		return fmt.Sprintf("%s_%d", fileID, idx)
	}
	return fileID + "_unknown"
}

// DedupKey identifies duplicate copies of the same chunk returned by
// parallel fan-out queries.
func (c DocumentChunk) DedupKey() string {
	idx := -1
	if v, ok := c.ChunkIndex(); ok {
		idx = v
	}
	return fmt.Sprintf("%s\x00%s\x00%d", c.Content, c.FileID(), idx)
}

// CloneMetadata returns a shallow copy so annotation never mutates a map
// shared with another result.
func (c DocumentChunk) CloneMetadata() map[string]any {
	out := make(map[string]any, len(c.Metadata)+3)
	for k, v := range c.Metadata {
		out[k] = v
	}
	return out
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(m map[string]any, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
