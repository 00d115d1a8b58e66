// Package system wires the document-ingestion and RAG-answer subsystems
// from a single config.Config into the concrete collaborators the HTTP
// management surface drives: a Pipeline for per-document processing, a
// Queue for FIFO scheduling, a status Registry, a stats Service, and an
// answer Orchestrator.
package system

import (
	"context"
	"fmt"
	"time"

	"manifold/internal/config"
	"manifold/internal/ingestpipe/chunk"
	"manifold/internal/ingestpipe/convert"
	"manifold/internal/ingestpipe/graph"
	"manifold/internal/ingestpipe/pipeline"
	"manifold/internal/ingestpipe/queue"
	"manifold/internal/ingestpipe/ratelimit"
	"manifold/internal/ingestpipe/stats"
	"manifold/internal/ingestpipe/status"
	"manifold/internal/ingestpipe/validate"
	"manifold/internal/llm"
	"manifold/internal/objectstore"
	"manifold/internal/persistence/databases"
	"manifold/internal/rag/answer"
	"manifold/internal/rag/embedder"
	"manifold/internal/rag/obs"
	"manifold/internal/rag/retrieve"
	"manifold/internal/telemetry"
)

// System bundles every collaborator the management HTTP handlers need.
type System struct {
	Pipeline *pipeline.Pipeline
	Queue    *queue.Queue
	Status   status.Registry
	Graph    graph.Client
	Stats    *stats.Service
	Answer   *answer.Orchestrator
	// Archive durably stores uploaded documents in object storage, nil
	// when cfg.S3 is disabled (the local staged copy is then the only one).
	Archive objectstore.ObjectStore
	// Shutdown releases the OpenTelemetry tracer provider. Callers should
	// defer it once the System is no longer in use.
	Shutdown func(context.Context) error
}

// Build constructs a System from config.Config and an LLM provider (the
// one collaborator config.Config cannot describe, since it is a live
// client object rather than settings).
func Build(ctx context.Context, cfg *config.Config, llmProvider llm.Provider) (*System, error) {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTel.Enabled,
		Endpoint:    cfg.OTel.Endpoint,
		Insecure:    cfg.OTel.Insecure,
		ServiceName: cfg.OTel.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	statusReg, err := status.New(cfg.Status)
	if err != nil {
		return nil, fmt.Errorf("build status registry: %w", err)
	}

	graphTimeout := time.Duration(cfg.Graph.TimeoutSeconds) * time.Second
	graphClient := graph.NewHTTPClient(cfg.Graph.Host, cfg.Graph.APIKey, graphTimeout)

	limiter := ratelimit.New(ratelimit.Config{
		Window:               time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		TokensPerMinute:      cfg.RateLimit.TokensPerMinute,
		SafetyBuffer:         cfg.RateLimit.SafetyBuffer,
		EstimatedTokensChunk: cfg.RateLimit.EstimatedTokensChunk,
	})

	converter := convert.New(cfg.Converter.Host, cfg.Converter.APIKey,
		convert.WithTimeout(time.Duration(cfg.Converter.TimeoutSeconds)*time.Second))

	log := &obs.JSONLogger{}

	pipe := pipeline.New(pipeline.Options{
		Validate: validate.Options{
			MaxSizeMB:  cfg.Validation.MaxUploadSizeMB,
			Extensions: cfg.Validation.AllowedExtensions,
			SniffBytes: cfg.Validation.SniffBytes,
		},
		Convert: converter,
		ChunkOptions: chunk.Options{
			Strategy:      chunk.Strategy(cfg.Chunker.Strategy),
			MaxTokens:     cfg.Chunker.MaxTokens,
			MergePeers:    cfg.Chunker.MergePeers,
			OverlapTokens: cfg.Chunker.Overlap,
		},
		Limiter: limiter,
		Graph:   graphClient,
		Status:  statusReg,
		Metrics: obs.NewOtelMetrics(),
		Log:     log,
		GroupID: cfg.Graph.DefaultGroupID,
	})

	// statsSvc is assigned below, after the sinks it records through are
	// built; the queue processor closure captures it by reference and
	// only dereferences it once a document is enqueued, which can only
	// happen after Build has returned the assembled System.
	var statsSvc *stats.Service

	delay := time.Duration(cfg.Queue.InterDocumentDelaySeconds) * time.Second
	if delay <= 0 {
		delay = queue.InterDocumentDelay
	}
	q := queue.New(func(ctx context.Context, uploadID, path, filename string) error {
		start := time.Now()
		_, procErr := pipe.ProcessDocument(ctx, uploadID, path, filename)
		if statsSvc != nil {
			ev := stats.Event{
				UploadID:   uploadID,
				Filename:   filename,
				Stage:      "ingest",
				DurationMS: time.Since(start).Milliseconds(),
			}
			if procErr != nil {
				ev.Status = "failed"
				ev.Error = procErr.Error()
			} else {
				ev.Status = "completed"
			}
			statsSvc.RecordEvent(ctx, ev)
		}
		return procErr
	}, delay, log)

	var sinks []stats.EventSink
	if chSink, err := stats.NewClickHouseSink(ctx, cfg.Analytics); err == nil && chSink != nil {
		sinks = append(sinks, chSink)
	}
	if kSink, err := stats.NewKafkaSink(cfg.Events); err == nil && kSink != nil {
		sinks = append(sinks, kSink)
	}
	var sink stats.EventSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = stats.MultiSink{Sinks: sinks}
	}
	statsSvc = stats.New(q, graphClient, sink)

	var archive objectstore.ObjectStore
	if cfg.S3.Enabled {
		s3Store, err := objectstore.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("build s3 archive: %w", err)
		}
		archive = s3Store
	}

	var reranker retrieve.Reranker = retrieve.NoopReranker{}
	if cfg.RAG.RerankingEnabled && cfg.Reranker.Host != "" {
		reranker = retrieve.NewCrossEncoderReranker(cfg.Reranker.Host, "cross-encoder", cfg.RAG.TopK)
	}

	dbMgr, err := databases.NewManager(ctx, databases.DBConfig{
		DefaultDSN: cfg.Database.ConnectionString,
		Search: databases.SearchConfig{
			Backend: cfg.Search.Backend,
			DSN:     cfg.Search.DSN,
		},
		Vector: databases.VectorConfig{
			Backend:    cfg.Vector.Backend,
			DSN:        cfg.Vector.DSN,
			Collection: cfg.Vector.Collection,
			Dimensions: cfg.Vector.Dimensions,
			Metric:     cfg.Vector.Metric,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build FTS/vector backends: %w", err)
	}
	embed := embedder.NewClient(cfg.Embedding, cfg.Embedding.Dimension)

	orchestrator := answer.New(answer.Options{
		Graph:               graphClient,
		Reranker:            reranker,
		Provider:            llmProvider,
		Model:               cfg.RAG.AnswerModel,
		Temperature:         cfg.RAG.Temperature,
		MaxTokens:           cfg.RAG.MaxTokens,
		TopK:                cfg.RAG.TopK,
		RerankingEnabled:    cfg.RAG.RerankingEnabled,
		RetrievalMultiplier: cfg.RAG.RerankRetrievalMultiplier,
		DB:                  dbMgr,
		Embedder:            embed,
	})

	return &System{
		Pipeline: pipe,
		Queue:    q,
		Status:   statusReg,
		Graph:    graphClient,
		Stats:    statsSvc,
		Answer:   orchestrator,
		Archive:  archive,
		Shutdown: func(ctx context.Context) error {
			dbMgr.Close()
			return shutdownTracing(ctx)
		},
	}, nil
}
