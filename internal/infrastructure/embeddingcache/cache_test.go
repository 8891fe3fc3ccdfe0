package embeddingcache

import (
	"context"
	"log/slog"
	"testing"
)

type countingEmbedder struct {
	queryCalls int
	embedCalls int
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.embedCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	c.queryCalls++
	return []float32{1, 2, 3}, nil
}

func TestCacheKeyNormalization(t *testing.T) {
	a := CacheKey("  Tarifas   ELÉCTRICAS ")
	b := CacheKey("tarifas eléctricas")
	if a != b {
		t.Fatalf("expected normalized variants to share a key: %s != %s", a, b)
	}
	if CacheKey("tarifas") == CacheKey("peajes") {
		t.Fatal("distinct queries must not collide")
	}
}

func TestEmbedQueryCachesRepeatCalls(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 8, slog.Default())
	if err != nil {
		t.Fatalf("NewCachedEmbedder: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cached.EmbedQuery(ctx, "Tarifas eléctricas"); err != nil {
			t.Fatalf("EmbedQuery: %v", err)
		}
	}
	if _, err := cached.EmbedQuery(ctx, "  tarifas   eléctricas "); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if inner.queryCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", inner.queryCalls)
	}
}

func TestClearDropsCachedEmbeddings(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 8, slog.Default())
	if err != nil {
		t.Fatalf("NewCachedEmbedder: %v", err)
	}

	ctx := context.Background()
	if _, err := cached.EmbedQuery(ctx, "tarifas"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	cached.Clear()
	if _, err := cached.EmbedQuery(ctx, "tarifas"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if inner.queryCalls != 2 {
		t.Fatalf("expected a fresh upstream call after Clear, got %d", inner.queryCalls)
	}
}

func TestEvictionDropsLeastRecentlyUsed(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 2, slog.Default())
	if err != nil {
		t.Fatalf("NewCachedEmbedder: %v", err)
	}

	ctx := context.Background()
	embed := func(q string) {
		t.Helper()
		if _, err := cached.EmbedQuery(ctx, q); err != nil {
			t.Fatalf("EmbedQuery(%q): %v", q, err)
		}
	}

	embed("alpha")
	embed("beta")
	// A hit promotes alpha, leaving beta as the oldest entry.
	embed("alpha")
	if inner.queryCalls != 2 {
		t.Fatalf("expected two upstream calls before eviction, got %d", inner.queryCalls)
	}

	// Third distinct query overflows the capacity and must evict beta,
	// not the freshly promoted alpha.
	embed("gamma")
	embed("alpha")
	if inner.queryCalls != 3 {
		t.Fatalf("expected alpha to survive eviction, got %d upstream calls", inner.queryCalls)
	}
	embed("beta")
	if inner.queryCalls != 4 {
		t.Fatalf("expected beta to have been evicted, got %d upstream calls", inner.queryCalls)
	}
}

func TestEmbedBypassesCache(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 8, slog.Default())
	if err != nil {
		t.Fatalf("NewCachedEmbedder: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cached.Embed(ctx, []string{"same content"}); err != nil {
			t.Fatalf("Embed: %v", err)
		}
	}
	if inner.embedCalls != 2 {
		t.Fatalf("expected passthrough calls, got %d", inner.embedCalls)
	}
}
