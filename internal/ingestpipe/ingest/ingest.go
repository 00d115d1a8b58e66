// Package ingest drives the sequential, rate-limited episodic ingestion of
// document chunks into the external knowledge-graph service.
package ingest

import (
	"context"
	"fmt"
	"time"

	"manifold/internal/ingestpipe/graph"
	"manifold/internal/ingestpipe/ratelimit"
)

// Chunk is one semantic fragment of a source document, ready for ingestion.
// Index is 1-based, matching original_source's chunk_index convention.
type Chunk struct {
	Index              int
	Text               string
	ContextualizedText string
}

// Body returns the text to ingest into the knowledge graph: the
// contextualized form when the chunking strategy produced one, otherwise
// the raw chunk text.
func (c Chunk) Body() string {
	if c.ContextualizedText != "" {
		return c.ContextualizedText
	}
	return c.Text
}

// Request bundles everything the ingestion engine needs for one document.
type Request struct {
	DocumentName string
	Source       string // e.g. original filename, for source_description
	GroupID      string
	Chunks       []Chunk
	ChunkTimeout time.Duration // per-chunk wait_for timeout, default 120s
}

// ChunkOutcome records the per-chunk result, mirroring graphiti.py's
// successful/failed tally without aborting the loop on an individual failure.
type ChunkOutcome struct {
	Index     int
	EpisodeID string
	Err       error
	Duration  time.Duration
}

// Result summarizes a full ingestion run.
type Result struct {
	Successful int
	Failed     int
	Total      int
	Duration   time.Duration
	Outcomes   []ChunkOutcome
}

// Logger is the minimal structured-logging surface this package needs,
// satisfied by a zerolog adapter (see internal/observability).
type Logger interface {
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type noopLogger struct{}

func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Warn(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}

// Engine ingests chunks into the knowledge graph, one at a time, gated by
// a token-aware rate limiter. It never aborts a document on a single
// chunk's failure — failed chunks are logged and the loop continues,
// matching original_source's partial-failure tolerance.
type Engine struct {
	Graph   graph.Client
	Limiter *ratelimit.Limiter
	Log     Logger

	// OnChunkDone, if set, is invoked synchronously after each chunk
	// attempt (success or failure) so callers (the pipeline orchestrator)
	// can update per-upload progress as ingestion proceeds.
	OnChunkDone func(outcome ChunkOutcome, total int)
}

// New constructs an Engine with the given collaborators.
func New(client graph.Client, limiter *ratelimit.Limiter, log Logger) *Engine {
	if log == nil {
		log = noopLogger{}
	}
	return &Engine{Graph: client, Limiter: limiter, Log: log}
}

// IngestChunks runs the sequential rate-limited ingestion loop for req.Chunks.
func (e *Engine) IngestChunks(ctx context.Context, req Request) (Result, error) {
	timeout := req.ChunkTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	start := time.Now()
	result := Result{Total: len(req.Chunks), Outcomes: make([]ChunkOutcome, 0, len(req.Chunks))}

	for _, chunk := range req.Chunks {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if e.Limiter != nil {
			if err := e.Limiter.WaitForBudget(ctx); err != nil {
				return result, fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		outcome := e.ingestOne(ctx, req, chunk, timeout)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Err != nil {
			result.Failed++
			e.Log.Error("chunk ingestion failed", map[string]any{
				"document": req.DocumentName, "chunk_index": chunk.Index, "error": outcome.Err.Error(),
			})
		} else {
			result.Successful++
			e.Log.Info("chunk ingested", map[string]any{
				"document": req.DocumentName, "chunk_index": chunk.Index, "duration_ms": outcome.Duration.Milliseconds(),
			})
		}
		if e.OnChunkDone != nil {
			e.OnChunkDone(outcome, result.Total)
		}
	}

	result.Duration = time.Since(start)
	e.Log.Info("document ingestion complete", map[string]any{
		"document": req.DocumentName, "successful": result.Successful, "failed": result.Failed, "total": result.Total,
	})
	return result, nil
}

func (e *Engine) ingestOne(ctx context.Context, req Request, chunk Chunk, timeout time.Duration) ChunkOutcome {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := fmt.Sprintf("%s - Chunk %d", req.DocumentName, chunk.Index)
	start := time.Now()

	res, err := e.Graph.AddEpisode(cctx, graph.Episode{
		Name:              name,
		Body:              chunk.Body(),
		SourceDescription: fmt.Sprintf("Document: %s, Chunk %d/%d", req.Source, chunk.Index, len(req.Chunks)),
		ReferenceTime:     time.Now().UTC(),
		GroupID:           req.GroupID,
		Source:            graph.EpisodeTypeText,
	})
	duration := time.Since(start)

	if err == nil {
		if e.Limiter != nil {
			e.Limiter.Record(e.estimatedTokens())
		}
		return ChunkOutcome{Index: chunk.Index, EpisodeID: res.EpisodeID, Duration: duration}
	}

	if cctx.Err() != nil {
		return ChunkOutcome{Index: chunk.Index, Err: fmt.Errorf("timeout after %s: %w", timeout, cctx.Err()), Duration: duration}
	}
	return ChunkOutcome{Index: chunk.Index, Err: err, Duration: duration}
}

func (e *Engine) estimatedTokens() int {
	if e.Limiter == nil {
		return 0
	}
	return e.Limiter.EstimatedTokensPerChunk()
}
