package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
	"github.com/mkravets/rag-retrieval/internal/core/ports"
)

// Dispatcher routes extraction by MIME type. Unknown types fall back to
// the plain text extractor, which rejects binary payloads.
type Dispatcher struct {
	plain ports.TextExtractor
	pdf   ports.TextExtractor
}

func NewDispatcher(plain, pdf ports.TextExtractor) *Dispatcher {
	return &Dispatcher{plain: plain, pdf: pdf}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	mime := strings.ToLower(strings.TrimSpace(doc.MimeType))
	switch {
	case mime == "application/pdf" || strings.HasSuffix(strings.ToLower(doc.Filename), ".pdf"):
		if d.pdf == nil {
			return "", fmt.Errorf("pdf extraction not configured")
		}
		return d.pdf.Extract(ctx, doc)
	default:
		return d.plain.Extract(ctx, doc)
	}
}
