package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"manifold/internal/ingestpipe/chunk"
	"manifold/internal/ingestpipe/convert"
	"manifold/internal/ingestpipe/graph"
	"manifold/internal/ingestpipe/ratelimit"
	"manifold/internal/ingestpipe/status"
	"manifold/internal/ingestpipe/validate"
)

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(convClient convert.Client, graphClient graph.Client, reg status.Registry) *Pipeline {
	limiter := ratelimit.New(ratelimit.Config{Window: time.Minute, TokensPerMinute: 1_000_000, SafetyBuffer: 1.0, EstimatedTokensChunk: 10})
	return New(Options{
		Validate:     validate.Options{MaxSizeMB: 50, Extensions: []string{".pdf", ".html"}},
		Convert:      convClient,
		ChunkOptions: chunk.Options{MaxTokens: 50, MergePeers: true},
		Limiter:      limiter,
		Graph:        graphClient,
		Status:       reg,
	})
}

func TestPipeline_ProcessDocument_Success(t *testing.T) {
	path := writeTempFile(t, "manual.pdf", "%PDF fake")
	reg := status.NewMemoryRegistry()
	p := newTestPipeline(&convert.MemoryClient{Text: "# Title\n\nDive safely and check your gauges."}, graph.NewMemoryClient(), reg)

	result, err := p.ProcessDocument(context.Background(), "u1", path, "manual.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total == 0 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	e, ok := reg.Get("u1")
	if !ok {
		t.Fatal("expected status entry")
	}
	if e.Status != "completed" || e.Progress != 100 {
		t.Fatalf("expected completed/100, got %s/%d", e.Status, e.Progress)
	}
}

func TestPipeline_ProcessDocument_ValidationFailureSetsStatus(t *testing.T) {
	path := writeTempFile(t, "manual.exe", "junk")
	reg := status.NewMemoryRegistry()
	p := newTestPipeline(&convert.MemoryClient{Text: "irrelevant"}, graph.NewMemoryClient(), reg)

	_, err := p.ProcessDocument(context.Background(), "u2", path, "manual.exe")
	if err == nil {
		t.Fatal("expected validation error")
	}
	se, ok := err.(*StageError)
	if !ok || se.Category != status.ErrorValidation {
		t.Fatalf("expected validation StageError, got %v", err)
	}

	e, _ := reg.Get("u2")
	if e.Status != "failed" || e.ErrorCategory != status.ErrorValidation {
		t.Fatalf("unexpected status entry: %+v", e)
	}
}

func TestPipeline_ProcessDocument_ConversionFailureSetsStatus(t *testing.T) {
	path := writeTempFile(t, "manual.pdf", "%PDF fake")
	reg := status.NewMemoryRegistry()
	p := newTestPipeline(&convert.MemoryClient{Err: context.DeadlineExceeded}, graph.NewMemoryClient(), reg)

	_, err := p.ProcessDocument(context.Background(), "u3", path, "manual.pdf")
	if err == nil {
		t.Fatal("expected conversion error")
	}
	e, _ := reg.Get("u3")
	if e.Status != "failed" {
		t.Fatalf("expected failed status, got %+v", e)
	}
}
