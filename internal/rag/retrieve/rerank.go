package retrieve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
)

// Reranker optionally reorders retrieved items (e.g., via a cross-encoder).
// Implementations should preserve Metadata fields; they may cut the list
// (CrossEncoderReranker truncates to its TopK).
type Reranker interface {
    Rerank(ctx context.Context, query string, items []RetrievedItem) ([]RetrievedItem, error)
}

// NoopReranker is the default implementation that leaves ordering unchanged.
type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, items []RetrievedItem) ([]RetrievedItem, error) {
    return items, nil
}

// crossEncoderRequest/Response mirror the root rerank.go wire shape for the
// llama.cpp-hosted cross-encoder server.
type crossEncoderRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	TopN      int      `json:"top_n"`
	Documents []string `json:"documents"`
}

type crossEncoderResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type crossEncoderResponse struct {
	Results []crossEncoderResult `json:"results"`
}

// CrossEncoderReranker scores candidates against the query via an external
// cross-encoder service (e.g. ms-marco-MiniLM) and returns them sorted by
// descending relevance, truncated to TopK.
//
// Grounded on original_source's CrossEncoderReranker.rerank: when
// len(items) <= TopK no call is made and items are returned as-is; on any
// backend error it falls back to the original order rather than failing
// the request.
type CrossEncoderReranker struct {
	Host       string
	Model      string
	TopK       int
	HTTPClient *http.Client
}

// NewCrossEncoderReranker builds a CrossEncoderReranker pointed at host.
func NewCrossEncoderReranker(host, model string, topK int) *CrossEncoderReranker {
	if topK <= 0 {
		topK = 5
	}
	return &CrossEncoderReranker{Host: host, Model: model, TopK: topK, HTTPClient: &http.Client{}}
}

func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, items []RetrievedItem) ([]RetrievedItem, error) {
	if len(items) == 0 {
		return items, nil
	}
	if len(items) <= r.TopK {
		return items, nil
	}

	scores, err := r.score(ctx, query, items)
	if err != nil {
		// Fall back to original order on any backend error, truncated to TopK.
		return truncate(items, r.TopK), nil
	}

	// Sort positions rather than items so each score stays tied to its item.
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	ranked := make([]RetrievedItem, len(items))
	for i, idx := range order {
		ranked[i] = items[idx]
	}
	return truncate(ranked, r.TopK), nil
}

func (r *CrossEncoderReranker) score(ctx context.Context, query string, items []RetrievedItem) ([]float64, error) {
	documents := make([]string, len(items))
	for i, it := range items {
		documents[i] = it.Text
		if documents[i] == "" {
			documents[i] = it.Snippet
		}
	}

	payload, err := json.Marshal(crossEncoderRequest{
		Model:     r.Model,
		Query:     query,
		TopN:      len(items),
		Documents: documents,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Host, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := r.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed with status %d: %s", resp.StatusCode, string(body))
	}

	var decoded crossEncoderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	scores := make([]float64, len(items))
	for _, res := range decoded.Results {
		if res.Index >= 0 && res.Index < len(scores) {
			scores[res.Index] = res.RelevanceScore
		}
	}
	return scores, nil
}

func truncate(items []RetrievedItem, n int) []RetrievedItem {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

