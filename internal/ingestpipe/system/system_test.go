package system

import (
	"context"
	"testing"
	"time"

	"manifold/internal/config"
	"manifold/internal/llm"
)

type nilProvider struct{}

func (nilProvider) Chat(context.Context, []llm.Message, []llm.ToolSchema, string) (llm.Message, error) {
	return llm.Message{}, nil
}

func (nilProvider) ChatStream(context.Context, []llm.Message, []llm.ToolSchema, string, llm.StreamHandler) error {
	return nil
}

func TestBuild_AssemblesSystemWithMemoryBackends(t *testing.T) {
	cfg := &config.Config{}
	sys, err := Build(context.Background(), cfg, nilProvider{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sys.Pipeline == nil || sys.Queue == nil || sys.Status == nil || sys.Graph == nil || sys.Stats == nil || sys.Answer == nil {
		t.Fatalf("expected all collaborators to be wired, got %+v", sys)
	}
	if sys.Shutdown == nil {
		t.Fatalf("expected a tracing shutdown func even when OTel is disabled")
	}
	if sys.Archive != nil {
		t.Fatalf("expected no archive when S3 is disabled, got %v", sys.Archive)
	}
}

// TestBuild_QueueProcessorRecordsStatsEvent exercises the closure wired in
// Build: enqueuing a document that fails validation (a nonexistent path)
// still drives it through Queue's failed history and, indirectly, through
// Service.RecordEvent. With no analytics/events backend configured the sink
// is nil, so this only proves the wiring doesn't panic or deadlock; sink
// fan-out itself is covered by stats.MultiSink's own tests.
func TestBuild_QueueProcessorRecordsStatsEvent(t *testing.T) {
	cfg := &config.Config{}
	sys, err := Build(context.Background(), cfg, nilProvider{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sys.Queue.Enqueue("missing-doc", "/no/such/path.pdf", "missing-doc.pdf")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sys.Queue.Status().FailedCount > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	failed := sys.Queue.Failed()
	if len(failed) != 1 || failed[0].UploadID != "missing-doc" {
		t.Fatalf("expected one failed entry for missing-doc, got %+v", failed)
	}
}
