// Package stats aggregates ingestion and knowledge-graph statistics for the
// management surface: queue/pipeline history, and graph entity/relation
// counts that degrade gracefully when the graph backend is unreachable.
package stats

import (
	"context"

	"manifold/internal/ingestpipe/graph"
	"manifold/internal/ingestpipe/queue"
)

// GraphCounts reports best-effort entity/relation totals from the knowledge
// graph. Grounded on original_source's processor.py get_entity_count/
// get_relation_count: a query failure degrades to 0 rather than failing
// the whole stats response.
type GraphCounts struct {
	Entities  int
	Relations int
}

// Snapshot bundles queue and graph statistics for a single status response.
type Snapshot struct {
	Queue queue.Stats
	Graph GraphCounts
}

// Service computes Snapshot values on demand.
type Service struct {
	Queue *queue.Queue
	Graph graph.Client
	Sink  EventSink // optional durable event trail, nil disables recording
}

// New builds a Service. Sink may be nil.
func New(q *queue.Queue, g graph.Client, sink EventSink) *Service {
	return &Service{Queue: q, Graph: g, Sink: sink}
}

// Snapshot assembles current queue stats and graph counts; a graph error
// zeroes the affected count instead of failing (the error is not logged).
func (s *Service) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{}
	if s.Queue != nil {
		snap.Queue = s.Queue.Status()
	}
	snap.Graph = s.graphCounts(ctx)
	return snap
}

func (s *Service) graphCounts(ctx context.Context) GraphCounts {
	if s.Graph == nil {
		return GraphCounts{}
	}
	entities, err := s.Graph.EntityCount(ctx)
	if err != nil {
		entities = 0
	}
	relations, err := s.Graph.RelationCount(ctx)
	if err != nil {
		relations = 0
	}
	return GraphCounts{Entities: entities, Relations: relations}
}

// RecordEvent forwards a pipeline-stage event to the durable sink, if one is
// configured. Errors are swallowed: analytics recording must never fail an
// ingestion request.
func (s *Service) RecordEvent(ctx context.Context, ev Event) {
	if s.Sink == nil {
		return
	}
	_ = s.Sink.Record(ctx, ev)
}
