package retrieve

import (
	"context"

	"manifold/internal/persistence/databases"
)

// QueryPlan bundles the parameters a hybrid candidate fetch runs with.
type QueryPlan struct {
	Query   string
	Lang    string
	FtK     int
	VecK    int
	Filters map[string]string
}

// Embedder is the minimal surface HybridSearch needs to vectorize a query,
// satisfied by internal/rag/embedder.Embedder.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// HybridSearch fetches full-text and vector candidates in parallel and
// fuses them via Reciprocal Rank Fusion, generalizing the teacher's
// ParallelCandidates/FuseRRF pipeline into the FTS/vector candidate source
// that answer.Orchestrator runs alongside the knowledge graph's own hybrid
// search.
func HybridSearch(ctx context.Context, mgr databases.Manager, embed Embedder, plan QueryPlan, opt RetrieveOptions) ([]RetrievedItem, error) {
	if mgr.Search == nil && mgr.Vector == nil {
		return nil, nil
	}

	var qvec []float32
	if embed != nil && plan.VecK > 0 {
		vecs, err := embed.EmbedBatch(ctx, []string{plan.Query})
		if err == nil && len(vecs) > 0 {
			qvec = vecs[0]
		}
	}

	fts, vrs, _, err := ParallelCandidates(ctx, mgr.Search, mgr.Vector, plan, qvec)
	if err != nil {
		return nil, err
	}
	return FuseAndDiversify(fts, vrs, plan, opt), nil
}
