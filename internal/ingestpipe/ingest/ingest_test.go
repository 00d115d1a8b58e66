package ingest

import (
	"context"
	"testing"
	"time"

	"manifold/internal/ingestpipe/graph"
	"manifold/internal/ingestpipe/ratelimit"
)

func TestEngine_PartialFailureContinues(t *testing.T) {
	client := graph.NewMemoryClient()
	client.FailOn("manual.pdf - Chunk 2")

	limiter := ratelimit.New(ratelimit.Config{Window: time.Minute, TokensPerMinute: 1_000_000, SafetyBuffer: 1.0, EstimatedTokensChunk: 10})
	engine := New(client, limiter, nil)

	req := Request{
		DocumentName: "manual.pdf",
		Source:       "manual.pdf",
		GroupID:      "default",
		Chunks: []Chunk{
			{Index: 1, Text: "buoyancy control basics"},
			{Index: 2, Text: "this one fails"},
			{Index: 3, Text: "decompression stop procedures"},
		},
	}

	result, err := engine.IngestChunks(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("expected 3 total, got %d", result.Total)
	}
	if result.Successful != 2 {
		t.Fatalf("expected 2 successful, got %d", result.Successful)
	}
	if result.Failed != 1 {
		t.Fatalf("expected 1 failed, got %d", result.Failed)
	}
}

func TestEngine_RecordsTokenUsage(t *testing.T) {
	client := graph.NewMemoryClient()
	limiter := ratelimit.New(ratelimit.Config{Window: time.Minute, TokensPerMinute: 1_000_000, SafetyBuffer: 1.0, EstimatedTokensChunk: 50})
	engine := New(client, limiter, nil)

	_, err := engine.IngestChunks(context.Background(), Request{
		DocumentName: "doc", GroupID: "default",
		Chunks: []Chunk{{Index: 1, Text: "a"}, {Index: 2, Text: "b"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := limiter.Stats()
	if stats.TotalTokensUsed != 100 {
		t.Fatalf("expected 100 tokens recorded, got %d", stats.TotalTokensUsed)
	}
}
