package nats

import (
	"testing"
	"time"
)

func TestDecodeDocumentIDEventPayload(t *testing.T) {
	payload := []byte(`{"document_id":"doc-42","occurred_at":"` +
		time.Now().UTC().Format(time.RFC3339) + `"}`)
	if got := decodeDocumentID(payload); got != "doc-42" {
		t.Fatalf("decodeDocumentID() = %q, want %q", got, "doc-42")
	}
}

func TestDecodeDocumentIDBareID(t *testing.T) {
	if got := decodeDocumentID([]byte("doc-7")); got != "doc-7" {
		t.Fatalf("decodeDocumentID() = %q, want %q", got, "doc-7")
	}
}

func TestDecodeDocumentIDEmptyPayload(t *testing.T) {
	if got := decodeDocumentID(nil); got != "" {
		t.Fatalf("decodeDocumentID() = %q, want empty", got)
	}
}
