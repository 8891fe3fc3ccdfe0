package postgres

import (
	"database/sql/driver"
	"reflect"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
)

// stringSliceArg matches a []string bind parameter passed through the
// pgx-style value converter.
type stringSliceArg []string

func (a stringSliceArg) Match(v driver.Value) bool {
	got, ok := v.([]string)
	if !ok {
		return false
	}
	return reflect.DeepEqual([]string(a), got)
}

type testChunk struct {
	id      string
	content string
}

func toDomainChunks(chunks []testChunk, fileID string) []domain.DocumentChunk {
	out := make([]domain.DocumentChunk, 0, len(chunks))
	for i, c := range chunks {
		out = append(out, domain.DocumentChunk{
			CustomID: c.id,
			Content:  c.content,
			Metadata: map[string]any{
				domain.MetaFileID:     fileID,
				domain.MetaChunkIndex: i,
			},
		})
	}
	return out
}

func emptyFilter() domain.FieldFilter {
	return domain.FieldFilter{}
}

func equalsFilter(field, value string) domain.FieldFilter {
	return domain.Equals(field, value)
}

func inFilter(field string, values ...string) domain.FieldFilter {
	return domain.In(field, values)
}

func notEqualsFilter(field, value string) domain.FieldFilter {
	return domain.NotEquals(field, value)
}
