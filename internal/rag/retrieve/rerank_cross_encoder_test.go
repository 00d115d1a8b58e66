package retrieve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func items(texts ...string) []RetrievedItem {
	out := make([]RetrievedItem, len(texts))
	for i, t := range texts {
		out[i] = RetrievedItem{ID: t, Text: t}
	}
	return out
}

func TestCrossEncoderReranker_ShortCircuitsWhenUnderTopK(t *testing.T) {
	r := NewCrossEncoderReranker("http://unused", "model", 5)
	in := items("a", "b", "c")
	out, err := r.Rerank(context.Background(), "query", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected no reranking call, got %d items", len(out))
	}
}

func TestCrossEncoderReranker_SortsByRelevanceDescending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.1},{"index":1,"relevance_score":0.9},{"index":2,"relevance_score":0.5}]}`))
	}))
	defer srv.Close()

	r := NewCrossEncoderReranker(srv.URL, "model", 2)
	in := items("low", "high", "mid")
	out, err := r.Rerank(context.Background(), "query", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected truncation to top_k=2, got %d", len(out))
	}
	if out[0].ID != "high" || out[1].ID != "mid" {
		t.Fatalf("expected [high mid] order, got %v %v", out[0].ID, out[1].ID)
	}
}

func TestCrossEncoderReranker_FallsBackToOriginalOrderOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewCrossEncoderReranker(srv.URL, "model", 2)
	in := items("first", "second", "third")
	out, err := r.Rerank(context.Background(), "query", in)
	if err != nil {
		t.Fatalf("expected fallback, not error: %v", err)
	}
	if len(out) != 2 || out[0].ID != "first" || out[1].ID != "second" {
		t.Fatalf("expected original order truncated to top_k, got %+v", out)
	}
}
