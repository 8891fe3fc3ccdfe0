package chunking

import (
	"strings"
	"testing"
)

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(100, 20)
	if got := s.Split(""); got != nil {
		t.Fatalf("Split(\"\") = %v, want nil", got)
	}
	if got := s.Split("   \n\t  "); got != nil {
		t.Fatalf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100, 20)
	got := s.Split("  factura de la luz  ")
	if len(got) != 1 || got[0] != "factura de la luz" {
		t.Fatalf("Split() = %v, want one trimmed chunk", got)
	}
}

func TestSplitOverlapCarriesTail(t *testing.T) {
	s := NewSplitter(10, 3)
	got := s.Split("abcdefghijklmnopqrst")
	want := []string{"abcdefghij", "hijklmnopq", "opqrst"}
	if len(got) != len(want) {
		t.Fatalf("Split() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitPrefersWordBoundary(t *testing.T) {
	s := NewSplitter(12, 0)
	got := s.Split("alpha beta gamma delta")
	want := []string{"alpha beta", "gamma delta"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Split() = %v, want %v", got, want)
	}
	for _, chunk := range got {
		if strings.HasPrefix(chunk, " ") || strings.HasSuffix(chunk, " ") {
			t.Fatalf("chunk %q not trimmed", chunk)
		}
	}
}

func TestNewSplitterGuardsArguments(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != 900 || s.Overlap != 0 {
		t.Fatalf("NewSplitter(0, -1) = %+v", s)
	}
	s = NewSplitter(100, 100)
	if s.Overlap != 25 {
		t.Fatalf("NewSplitter(100, 100).Overlap = %d, want 25", s.Overlap)
	}
}
