package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"manifold/internal/ingestpipe/graph"
	"manifold/internal/ingestpipe/queue"
)

type failingGraphClient struct{ graph.Client }

func (failingGraphClient) EntityCount(context.Context) (int, error) {
	return 0, errors.New("neo4j unreachable")
}

func (failingGraphClient) RelationCount(context.Context) (int, error) {
	return 0, errors.New("neo4j unreachable")
}

func TestService_Snapshot_DegradesGraphCountsToZeroOnError(t *testing.T) {
	svc := New(nil, failingGraphClient{}, nil)
	snap := svc.Snapshot(context.Background())
	if snap.Graph.Entities != 0 || snap.Graph.Relations != 0 {
		t.Fatalf("expected zeroed counts on graph error, got %+v", snap.Graph)
	}
}

func TestService_Snapshot_ReportsGraphCountsOnSuccess(t *testing.T) {
	g := graph.NewMemoryClient()
	_, _ = g.AddEpisode(context.Background(), graph.Episode{Name: "a", Body: "x", ReferenceTime: time.Now(), GroupID: "default"})
	_, _ = g.AddEpisode(context.Background(), graph.Episode{Name: "b", Body: "y", ReferenceTime: time.Now(), GroupID: "default"})

	svc := New(nil, g, nil)
	snap := svc.Snapshot(context.Background())
	if snap.Graph.Entities != 2 {
		t.Fatalf("expected 2 entities, got %d", snap.Graph.Entities)
	}
	if snap.Graph.Relations != 4 {
		t.Fatalf("expected 4 relations, got %d", snap.Graph.Relations)
	}
}

func TestService_Snapshot_IncludesQueueStats(t *testing.T) {
	q := queue.New(func(context.Context, string, string, string) error { return nil }, time.Millisecond, nil)
	q.Enqueue("u1", "/tmp/a.pdf", "a.pdf")
	time.Sleep(20 * time.Millisecond)

	svc := New(q, nil, nil)
	snap := svc.Snapshot(context.Background())
	if snap.Queue.CompletedCount != 1 {
		t.Fatalf("expected 1 completed document, got %+v", snap.Queue)
	}
}

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Record(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestService_RecordEvent_ForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	svc := New(nil, nil, sink)
	svc.RecordEvent(context.Background(), Event{UploadID: "u1", Stage: "chunking", Status: "completed"})
	if len(sink.events) != 1 || sink.events[0].UploadID != "u1" {
		t.Fatalf("expected event forwarded to sink, got %+v", sink.events)
	}
}

func TestService_RecordEvent_NilSinkIsNoop(t *testing.T) {
	svc := New(nil, nil, nil)
	svc.RecordEvent(context.Background(), Event{UploadID: "u1"}) // must not panic
}
