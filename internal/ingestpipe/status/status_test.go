package status

import (
	"testing"
	"time"
)

func TestMemoryRegistry_LifecycleProgressIsMonotonic(t *testing.T) {
	r := NewMemoryRegistry()
	r.Create("u1", "manual.pdf")

	r.UpdateStage("u1", StageValidating, "", "checking extension")
	e, _ := r.Get("u1")
	if e.Progress != stageProgress[StageValidating] {
		t.Fatalf("expected progress %d, got %d", stageProgress[StageValidating], e.Progress)
	}

	// Regressing to an earlier stage's floor must not lower progress.
	r.UpdateStage("u1", StageValidating, "", "retry")
	r.UpdateStage("u1", StageChunking, "", "")
	e, _ = r.Get("u1")
	if e.Progress != stageProgress[StageChunking] {
		t.Fatalf("expected progress %d, got %d", stageProgress[StageChunking], e.Progress)
	}

	r.Complete("u1", map[string]any{"chunks": 3})
	e, _ = r.Get("u1")
	if e.Status != "completed" || e.Progress != 100 {
		t.Fatalf("expected completed/100, got %s/%d", e.Status, e.Progress)
	}
	if e.CompletedAt == nil {
		t.Fatal("expected CompletedAt to be set")
	}
}

func TestMemoryRegistry_Fail(t *testing.T) {
	r := NewMemoryRegistry()
	r.Create("u2", "bad.pdf")
	r.Fail("u2", ErrorConversion, "conversion timed out")

	e, ok := r.Get("u2")
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if e.Status != "failed" || e.ErrorCategory != ErrorConversion {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestMemoryRegistry_IngestionProgressScalesWithinBand(t *testing.T) {
	r := NewMemoryRegistry()
	r.Create("u3", "doc.pdf")
	r.UpdateStage("u3", StageIngesting, "", "")

	r.UpdateIngestionProgress("u3", IngestionProgress{ChunksTotal: 4, ChunksSucceeded: 2})
	e, _ := r.Get("u3")
	if e.Progress <= stageProgress[StageIngesting] || e.Progress >= 100 {
		t.Fatalf("expected progress strictly within ingesting band, got %d", e.Progress)
	}
}

func TestMemoryRegistry_CleanupOlderThan(t *testing.T) {
	r := NewMemoryRegistry()
	base := time.Now()
	r.now = func() time.Time { return base.Add(-48 * time.Hour) }
	r.Create("old", "old.pdf")

	r.now = func() time.Time { return base }
	r.Create("new", "new.pdf")

	removed := r.CleanupOlderThan(24 * time.Hour)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := r.Get("old"); ok {
		t.Fatal("expected old entry to be removed")
	}
	if _, ok := r.Get("new"); !ok {
		t.Fatal("expected new entry to remain")
	}
}
