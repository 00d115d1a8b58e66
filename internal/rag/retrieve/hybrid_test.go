package retrieve

import (
	"context"
	"testing"

	"manifold/internal/persistence/databases"
)

type fakeEmbedder struct {
	vec []float32
}

func (f fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func TestHybridSearch_FusesFTSAndVectorCandidates(t *testing.T) {
	ctx := context.Background()
	search := databases.NewMemorySearch()
	vector := databases.NewMemoryVector()
	_ = search.Index(ctx, "chunk:1", "buoyancy control device fundamentals", map[string]string{"doc_id": "doc:1"})
	_ = vector.Upsert(ctx, "chunk:1", []float32{1, 0}, map[string]string{"doc_id": "doc:1"})

	mgr := databases.Manager{Search: search, Vector: vector}
	plan := QueryPlan{Query: "buoyancy control", FtK: 5, VecK: 5}
	opt := RetrieveOptions{K: 5, UseRRF: true}

	items, err := HybridSearch(ctx, mgr, fakeEmbedder{vec: []float32{1, 0}}, plan, opt)
	if err != nil {
		t.Fatalf("HybridSearch error: %v", err)
	}
	if len(items) == 0 {
		t.Fatalf("expected at least one fused item")
	}
}

func TestHybridSearch_NilManagerReturnsNoResults(t *testing.T) {
	ctx := context.Background()
	items, err := HybridSearch(ctx, databases.Manager{}, nil, QueryPlan{Query: "x"}, RetrieveOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items when backends are unset, got %d", len(items))
	}
}

func TestHybridSearch_NilEmbedderSkipsVectorQuery(t *testing.T) {
	ctx := context.Background()
	search := databases.NewMemorySearch()
	_ = search.Index(ctx, "chunk:1", "decompression sickness symptoms", nil)
	mgr := databases.Manager{Search: search, Vector: databases.NewMemoryVector()}

	items, err := HybridSearch(ctx, mgr, nil, QueryPlan{Query: "decompression", FtK: 5, VecK: 5}, RetrieveOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) == 0 {
		t.Fatalf("expected FTS-only results when no embedder is configured")
	}
}
