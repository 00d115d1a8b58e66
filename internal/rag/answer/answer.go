// Package answer implements the question-answering orchestrator: retrieve
// facts from the knowledge graph, optionally rerank them, build a
// citation-disciplined prompt, and generate an answer (streaming or not).
//
// Grounded on original_source's backend/app/core/rag.py
// (retrieve_context/build_rag_prompt/rag_stream_response/rag_query).
package answer

import (
	"context"
	"fmt"
	"strings"

	"manifold/internal/ingestpipe/graph"
	"manifold/internal/llm"
	"manifold/internal/persistence/databases"
	"manifold/internal/rag/retrieve"
)

// Options configures an Orchestrator.
type Options struct {
	Graph               graph.Client
	Reranker            retrieve.Reranker // e.g. retrieve.NoopReranker{} or retrieve.CrossEncoderReranker
	Provider            llm.Provider
	Model               string
	Temperature         float64
	MaxTokens           int
	TopK                int
	RerankingEnabled    bool
	RetrievalMultiplier int // over-fetch factor when reranking is enabled

	// DB and Embedder, when set, add a full-text/vector candidate source
	// (internal/rag/retrieve.HybridSearch) that runs alongside the knowledge
	// graph's own hybrid search; results from both are merged before
	// reranking/truncation. Either may be left zero-valued/nil to retain the
	// graph-only retrieval path.
	DB       databases.Manager
	Embedder retrieve.Embedder
}

// Orchestrator wires retrieval, reranking, prompt construction and
// generation together.
type Orchestrator struct {
	opt Options
}

// New builds an Orchestrator, defaulting TopK/RetrievalMultiplier/MaxTokens
// to original_source's settings (RAG_TOP_K, RAG_RERANKING_RETRIEVAL_MULTIPLIER).
func New(opt Options) *Orchestrator {
	if opt.TopK <= 0 {
		opt.TopK = 5
	}
	if opt.RetrievalMultiplier <= 0 {
		opt.RetrievalMultiplier = 4
	}
	if opt.MaxTokens <= 0 {
		opt.MaxTokens = 2000
	}
	if opt.Temperature == 0 {
		opt.Temperature = 0.7
	}
	if opt.Reranker == nil {
		opt.Reranker = retrieve.NoopReranker{}
	}
	return &Orchestrator{opt: opt}
}

// Context is the retrieved-and-possibly-reranked fact set for one question.
type Context struct {
	Facts    []graph.Fact
	Total    int
	Reranked bool
}

// RetrieveContext runs the over-fetch-then-rerank retrieval step: when
// reranking is enabled, TopK*RetrievalMultiplier facts are pulled from the
// graph and reranked down to TopK; otherwise exactly TopK are pulled.
func (o *Orchestrator) RetrieveContext(ctx context.Context, question string, groupIDs []string) (Context, error) {
	retrievalK := o.opt.TopK
	if o.opt.RerankingEnabled {
		retrievalK = o.opt.TopK * o.opt.RetrievalMultiplier
	}

	facts, err := o.opt.Graph.Search(ctx, question, retrievalK, groupIDs, graph.SearchConfigHybridRRF)
	if err != nil {
		return Context{}, fmt.Errorf("search knowledge graph: %w", err)
	}

	if o.opt.DB.Search != nil || o.opt.DB.Vector != nil {
		items, err := retrieve.HybridSearch(ctx, o.opt.DB, o.opt.Embedder, retrieve.QueryPlan{
			Query: question,
			FtK:   retrievalK,
			VecK:  retrievalK,
		}, retrieve.RetrieveOptions{K: retrievalK, UseRRF: true, Diversify: true})
		if err == nil {
			facts = append(facts, itemsToFacts2(items)...)
		}
	}

	if !o.opt.RerankingEnabled || len(facts) <= o.opt.TopK {
		return Context{Facts: truncateFacts(facts, o.opt.TopK), Total: min(len(facts), o.opt.TopK)}, nil
	}

	items := factsToItems(facts)
	reranked, err := o.opt.Reranker.Rerank(ctx, question, items)
	if err != nil {
		// Reranker implementations already fall back internally; a
		// propagated error here just means no reordering happened.
		reranked = items
	}
	result := itemsToFacts(reranked, facts)
	result = truncateFacts(result, o.opt.TopK)
	return Context{Facts: result, Total: len(result), Reranked: true}, nil
}

const systemPrompt = `You are an AI assistant specialized in scuba diving education.

CRITICAL RULES:
1. Answer ONLY using information from the provided knowledge facts
2. If context is insufficient, say "I don't have enough information in the diving manuals to answer that question accurately"
3. NEVER make up or infer information not present in the context
4. Cite facts: [Fact 1], [Fact 2] when answering
5. Be concise but thorough
6. Use technical diving terms accurately
7. For certification-body procedures, cite exact source material

Your goal: Provide accurate, grounded answers that diving students and instructors can trust for their training and safety.`

// BuildPrompt renders the system/user message pair for question + facts,
// matching build_rag_prompt's citation-numbered fact blocks and its
// explicit "no relevant knowledge found" fallback.
func BuildPrompt(question string, ctx Context) (system, user string) {
	if len(ctx.Facts) == 0 {
		return systemPrompt, fmt.Sprintf(
			"No relevant knowledge found in diving manuals.\n\nQuestion: %s\n\nPlease explain you don't have enough information to answer this accurately.",
			question,
		)
	}

	var b strings.Builder
	b.WriteString("=== KNOWLEDGE FROM DIVING MANUALS ===\n")
	for i, f := range ctx.Facts {
		validAt := f.ValidAt
		if validAt == "" {
			validAt = "Current"
		}
		fmt.Fprintf(&b, "\n[Fact %d - %s]\n%s\nValid: %s", i+1, f.RelationType, f.Fact, validAt)
	}

	user = fmt.Sprintf("Knowledge from diving manuals:\n\n%s\n\n---\n\nQuestion: %s\n\nAnswer based ONLY on the knowledge above. Cite your facts:", b.String(), question)
	return systemPrompt, user
}

// Result is a full non-streaming answer.
type Result struct {
	Question string
	Answer   string
	Context  Context
}

// Answer runs the full retrieve -> prompt -> generate chain and returns the
// complete response, matching rag_query.
func (o *Orchestrator) Answer(ctx context.Context, question string, groupIDs []string) (Result, error) {
	rctx, err := o.RetrieveContext(ctx, question, groupIDs)
	if err != nil {
		return Result{}, err
	}
	system, user := BuildPrompt(question, rctx)

	msg, err := o.opt.Provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, nil, o.opt.Model)
	if err != nil {
		return Result{}, fmt.Errorf("generate answer: %w", err)
	}
	return Result{Question: question, Answer: msg.Content, Context: rctx}, nil
}

// StreamAnswer runs the same chain but streams generated tokens to h,
// matching rag_stream_response.
func (o *Orchestrator) StreamAnswer(ctx context.Context, question string, groupIDs []string, h llm.StreamHandler) (Context, error) {
	rctx, err := o.RetrieveContext(ctx, question, groupIDs)
	if err != nil {
		return Context{}, err
	}
	system, user := BuildPrompt(question, rctx)

	err = o.opt.Provider.ChatStream(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, nil, o.opt.Model, h)
	if err != nil {
		return rctx, fmt.Errorf("stream answer: %w", err)
	}
	return rctx, nil
}

func factsToItems(facts []graph.Fact) []retrieve.RetrievedItem {
	items := make([]retrieve.RetrievedItem, len(facts))
	for i, f := range facts {
		items[i] = retrieve.RetrievedItem{ID: factID(f, i), Text: f.Fact}
	}
	return items
}

// itemsToFacts maps reranked items back to their originating Fact by ID,
// preserving the reranked order.
func itemsToFacts(items []retrieve.RetrievedItem, original []graph.Fact) []graph.Fact {
	byID := make(map[string]graph.Fact, len(original))
	for i, f := range original {
		byID[factID(f, i)] = f
	}
	out := make([]graph.Fact, 0, len(items))
	for _, it := range items {
		if f, ok := byID[it.ID]; ok {
			out = append(out, f)
		}
	}
	return out
}

func factID(f graph.Fact, idx int) string {
	if f.SourceNodeID != "" || f.TargetNodeID != "" {
		return fmt.Sprintf("%s->%s", f.SourceNodeID, f.TargetNodeID)
	}
	return fmt.Sprintf("fact-%d", idx)
}

// itemsToFacts2 converts hybrid FTS/vector retrieval hits into synthetic
// Facts so they flow through the same rerank/truncate/citation path as
// knowledge-graph facts.
func itemsToFacts2(items []retrieve.RetrievedItem) []graph.Fact {
	facts := make([]graph.Fact, len(items))
	for i, it := range items {
		facts[i] = graph.Fact{
			Fact:         it.Text,
			RelationType: "fts_vector",
			SourceNodeID: it.ID,
		}
	}
	return facts
}

func truncateFacts(facts []graph.Fact, n int) []graph.Fact {
	if n <= 0 || n >= len(facts) {
		return facts
	}
	return facts[:n]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
