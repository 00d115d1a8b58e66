// Package pipeline orchestrates one document's journey from raw upload
// through validation, conversion, chunking and rate-limited graph
// ingestion, updating a status registry at every stage transition.
//
// Grounded on original_source's process_document (backend/app/core/processor.py):
// the stage list, progress percentages per stage, and the error-category
// mapping per exception type, adapted into the teacher's staged-pipeline
// shape (internal/rag/service/service.go's Ingest: per-stage timing around
// a sequence of named steps).
package pipeline

import (
	"context"
	"fmt"
	"time"

	"manifold/internal/ingestpipe/chunk"
	"manifold/internal/ingestpipe/convert"
	"manifold/internal/ingestpipe/graph"
	"manifold/internal/ingestpipe/ingest"
	"manifold/internal/ingestpipe/ratelimit"
	"manifold/internal/ingestpipe/status"
	"manifold/internal/ingestpipe/validate"
)

// StageError tags a pipeline failure with the stage it occurred in and an
// error category the management surface can report verbatim, mirroring
// processor.py's except-chain (ValueError → validation_error, TimeoutError →
// timeout_error, RuntimeError → conversion_error/graph_error, else unknown).
type StageError struct {
	Stage    string
	Category string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Category, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Metrics is the minimal stage-timing sink the orchestrator reports to,
// satisfied by internal/rag/obs.OtelMetrics or internal/rag/obs.MockMetrics.
type Metrics interface {
	ObserveHistogram(name string, value float64, labels map[string]string)
	IncCounter(name string, labels map[string]string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}
func (noopMetrics) IncCounter(string, map[string]string)                {}

// Options configures a Pipeline.
type Options struct {
	Validate     validate.Options
	Convert      convert.Client
	ChunkOptions chunk.Options
	Limiter      *ratelimit.Limiter
	Graph        graph.Client
	Status       status.Registry
	Metrics      Metrics
	Log          ingest.Logger
	GroupID      string
}

// Pipeline wires the per-document stages together.
type Pipeline struct {
	opt    Options
	engine *ingest.Engine
}

// New builds a Pipeline from Options, filling in sane defaults for any
// unset collaborator the same way internal/rag/service.New does.
func New(opt Options) *Pipeline {
	if opt.Status == nil {
		opt.Status = status.NewMemoryRegistry()
	}
	if opt.Metrics == nil {
		opt.Metrics = noopMetrics{}
	}
	if opt.GroupID == "" {
		opt.GroupID = "default"
	}
	engine := ingest.New(opt.Graph, opt.Limiter, opt.Log)
	return &Pipeline{opt: opt, engine: engine}
}

// ProcessDocument runs validate -> convert -> chunk -> ingest for the file
// at path, updating the status registry as it goes. It never returns a
// partial-ingestion result as an error: only a stage that stops the
// pipeline entirely (validation, conversion, or an ingestion loop aborted
// by context cancellation or a rate-limiter wait error) does.
func (p *Pipeline) ProcessDocument(ctx context.Context, uploadID, path, filename string) (ingest.Result, error) {
	p.opt.Status.Create(uploadID, filename)

	if err := p.runValidate(path, uploadID); err != nil {
		return ingest.Result{}, p.fail(uploadID, status.ErrorValidation, "validate", err)
	}

	converted, err := p.runConvert(ctx, path, uploadID)
	if err != nil {
		return ingest.Result{}, err
	}

	chunks := p.runChunk(converted.Text, filename, uploadID)

	result, err := p.runIngest(ctx, filename, chunks, uploadID)
	if err != nil {
		return result, err
	}

	p.opt.Status.Complete(uploadID, map[string]any{
		"chunks_total":     result.Total,
		"chunks_succeeded": result.Successful,
		"chunks_failed":    result.Failed,
		"num_pages":        converted.Metadata.NumPages,
		"num_tables":       converted.Metadata.NumTables,
	})
	return result, nil
}

func (p *Pipeline) fail(uploadID, category, stage string, err error) *StageError {
	se := &StageError{Stage: stage, Category: category, Err: err}
	p.opt.Status.Fail(uploadID, category, se.Error())
	return se
}

func (p *Pipeline) timeStage(uploadID, stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.opt.Metrics.ObserveHistogram("ingest_stage_ms", float64(time.Since(start).Milliseconds()), map[string]string{"stage": stage})
	return err
}

func (p *Pipeline) runValidate(path, uploadID string) error {
	p.opt.Status.UpdateStage(uploadID, status.StageValidating, "", "checking extension and size")
	var result validate.Result
	err := p.timeStage(uploadID, "validate", func() error {
		result = validate.Validate(path, p.opt.Validate)
		if !result.Valid {
			return fmt.Errorf("%s", result.Reason)
		}
		return nil
	})
	return err
}

func (p *Pipeline) runConvert(ctx context.Context, path, uploadID string) (convert.Result, error) {
	p.opt.Status.UpdateStage(uploadID, status.StageConverting, "", "extracting text")
	var result convert.Result
	err := p.timeStage(uploadID, "convert", func() error {
		var convErr error
		result, convErr = p.opt.Convert.Convert(ctx, path)
		return convErr
	})
	if err != nil {
		category := status.ErrorConversion
		if ctx.Err() != nil {
			category = status.ErrorTimeout
		}
		return convert.Result{}, p.fail(uploadID, category, "convert", err)
	}
	return result, nil
}

func (p *Pipeline) runChunk(text, filename, uploadID string) []chunk.Chunk {
	p.opt.Status.UpdateStage(uploadID, status.StageChunking, "", "splitting into semantic chunks")
	opt := p.opt.ChunkOptions
	opt.Filename = filename
	opt.UploadID = uploadID
	var chunks []chunk.Chunk
	_ = p.timeStage(uploadID, "chunk", func() error {
		chunks = chunk.Split(text, opt)
		return nil
	})
	return chunks
}

func (p *Pipeline) runIngest(ctx context.Context, filename string, chunks []chunk.Chunk, uploadID string) (ingest.Result, error) {
	p.opt.Status.UpdateStage(uploadID, status.StageIngesting, "", "ingesting chunks into knowledge graph")

	ingestChunks := make([]ingest.Chunk, len(chunks))
	for i, c := range chunks {
		ingestChunks[i] = ingest.Chunk{
			Index:              c.Metadata.ChunkIndex,
			Text:               c.Text,
			ContextualizedText: c.ContextualizedText,
		}
	}

	succeeded, failed := 0, 0
	p.engine.OnChunkDone = func(outcome ingest.ChunkOutcome, total int) {
		if outcome.Err != nil {
			failed++
		} else {
			succeeded++
		}
		p.opt.Status.UpdateIngestionProgress(uploadID, status.IngestionProgress{
			ChunksTotal: total, ChunksSucceeded: succeeded, ChunksFailed: failed,
		})
	}

	var result ingest.Result
	err := p.timeStage(uploadID, "ingest", func() error {
		var ingestErr error
		result, ingestErr = p.engine.IngestChunks(ctx, ingest.Request{
			DocumentName: filename,
			Source:       filename,
			GroupID:      p.opt.GroupID,
			Chunks:       ingestChunks,
		})
		return ingestErr
	})
	if err != nil {
		category := status.ErrorGraph
		if ctx.Err() != nil {
			category = status.ErrorTimeout
		}
		return result, p.fail(uploadID, category, "ingest", err)
	}
	return result, nil
}
