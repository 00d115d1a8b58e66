// Package chunk splits converted document text into chunks ready for
// contextual retrieval, offering two interchangeable strategies selected by
// configuration: a heading-aware hybrid chunker adapted from the teacher's
// markdown-aware chunker (internal/rag/chunker) and grounded on
// document_chunker.py's HybridChunker (max_tokens=2000, merge_peers=true,
// automatic hierarchical Document > Section > Subsection prefixes), and a
// size-bounded recursive splitter grounded on document_chunker.py's
// RecursiveCharacterTextSplitter fallback (3000-token target, 200-token
// overlap, separator cascade), whose sliding-window-with-overlap mechanic is
// adapted from the teacher's internal/textsplitters fixedSplitter.
package chunk

import "strings"

// Strategy selects which chunking algorithm Split uses.
type Strategy string

const (
	// StrategyHybrid splits on markdown headings, carrying a heading trail
	// as context. Default.
	StrategyHybrid Strategy = "hybrid"
	// StrategyRecursive splits on a descending separator cascade with a
	// fixed token budget and overlap, independent of document structure.
	StrategyRecursive Strategy = "recursive"
)

// recursiveSeparators is the cascade document_chunker.py's
// RecursiveCharacterTextSplitter tries in order: paragraph, line, sentence,
// word, then hard character split.
var recursiveSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Options configures the chunker.
type Options struct {
	Strategy Strategy

	MaxTokens  int  // token budget per chunk, default 2000 (hybrid) / 3000 (recursive)
	MergePeers bool // merge small adjacent chunks under the same heading (hybrid only)

	OverlapTokens int // overlap between consecutive chunks, default 200 (recursive only)

	// Filename and UploadID are stamped into every chunk's Metadata.
	Filename string
	UploadID string
}

// Metadata carries the bookkeeping original_source attaches to every chunk
// record alongside its text (backend/app/core/document_chunker.py's
// chunk metadata dict).
type Metadata struct {
	Filename         string
	UploadID         string
	ChunkIndex       int // 1-indexed, matching original_source
	TotalChunks      int
	NumTokens        int
	ChunkingStrategy string
	HasContext       bool // true when ContextualizedText differs from Text
}

// Chunk is one fragment of a source document, ready for ingestion. Text is
// the raw chunk content; ContextualizedText additionally carries whatever
// surrounding context (heading trail, document title) the strategy produced
// to help a downstream reranker/LLM make sense of a fragment seen in
// isolation. ContextualizedText always contains Text as a suffix.
type Chunk struct {
	Text               string
	ContextualizedText string
	HeadingTrail       []string // e.g. ["Chapter 3", "Decompression", "Safety Stops"]
	Metadata           Metadata
}

// charsPerToken is the rough heuristic the teacher's chunker uses to turn a
// token budget into a character budget (internal/rag/chunker/chunker.go).
const charsPerToken = 4

// Split splits text into chunks using the strategy named in opt (default
// StrategyHybrid), stamping 1-indexed Metadata on every resulting chunk.
func Split(text string, opt Options) []Chunk {
	strategy := opt.Strategy
	if strategy == "" {
		strategy = StrategyHybrid
	}

	var out []Chunk
	switch strategy {
	case StrategyRecursive:
		out = splitRecursive(text, opt)
	default:
		out = splitHybrid(text, opt)
	}

	total := len(out)
	for i := range out {
		out[i].Metadata = Metadata{
			Filename:         opt.Filename,
			UploadID:         opt.UploadID,
			ChunkIndex:       i + 1,
			TotalChunks:      total,
			NumTokens:        len(out[i].Text) / charsPerToken,
			ChunkingStrategy: string(strategy),
			HasContext:       out[i].ContextualizedText != out[i].Text,
		}
	}
	return out
}

// headingLevel returns the markdown heading depth of a line, or 0 if it
// isn't a heading.
func headingLevel(line string) int {
	trimmed := strings.TrimLeft(line, " ")
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level > 0 && level < len(trimmed) && trimmed[level] == ' ' {
		return level
	}
	return 0
}

func headingText(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
}

// splitHybrid splits text into heading-aware chunks within the configured
// token budget, prefixing each chunk's ContextualizedText with its
// hierarchical heading trail so a downstream reranker/LLM sees enough
// context even from a mid-document fragment, matching HybridChunker's
// automatic context enrichment.
func splitHybrid(text string, opt Options) []Chunk {
	maxTokens := opt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	budget := maxTokens * charsPerToken

	lines := strings.Split(text, "\n")
	var out []Chunk
	var buf strings.Builder
	var trail []string // current heading stack, index = level-1

	flush := func() {
		body := strings.TrimSpace(buf.String())
		if body == "" {
			return
		}
		out = append(out, Chunk{
			Text:               body,
			ContextualizedText: withPrefix(trail, body),
			HeadingTrail:       append([]string(nil), trail...),
		})
		buf.Reset()
	}

	for _, ln := range lines {
		if level := headingLevel(ln); level > 0 {
			if buf.Len() > 0 {
				flush()
			}
			trail = setHeading(trail, level, headingText(ln))
			continue
		}
		// Lines longer than the budget are cut on the recursive separator
		// cascade so no chunk outgrows the token budget.
		for i, piece := range cascadeSplit(ln, recursiveSeparators, budget) {
			if buf.Len() > 0 && buf.Len()+1+len(piece) > budget {
				flush()
			}
			if i == 0 && buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(piece)
		}
	}
	flush()

	if opt.MergePeers {
		out = mergeSmallPeers(out, budget)
	}
	return out
}

// setHeading pushes headingText at the given level, truncating deeper
// levels (a new H2 clears any H3/H4 trail beneath the previous H2).
func setHeading(trail []string, level int, text string) []string {
	if level > len(trail)+1 {
		level = len(trail) + 1
	}
	next := append([]string(nil), trail[:min(level-1, len(trail))]...)
	next = append(next, text)
	return next
}

func withPrefix(trail []string, body string) string {
	if len(trail) == 0 {
		return body
	}
	return strings.Join(trail, " > ") + "\n\n" + body
}

// mergeSmallPeers combines consecutive chunks that share the same heading
// trail when doing so still fits the token budget, avoiding the
// micro-chunks HybridChunker's merge_peers=True option is meant to prevent.
func mergeSmallPeers(chunks []Chunk, budget int) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	var out []Chunk
	cur := chunks[0]
	for _, next := range chunks[1:] {
		if sameTrail(cur.HeadingTrail, next.HeadingTrail) && len(cur.Text)+len(next.Text) <= budget {
			cur.Text = cur.Text + "\n\n" + next.Text
			cur.ContextualizedText = withPrefix(cur.HeadingTrail, cur.Text)
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	return out
}

func sameTrail(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// splitRecursive splits text on a descending separator cascade, trying to
// keep each piece under the token budget before falling back to the next,
// finer separator; pieces still over budget after the full cascade are cut
// on a fixed character window. Consecutive chunks overlap by
// opt.OverlapTokens so context isn't lost at a chunk boundary, mirroring
// RecursiveCharacterTextSplitter's chunk_overlap.
func splitRecursive(text string, opt Options) []Chunk {
	maxTokens := opt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 3000
	}
	overlapTokens := opt.OverlapTokens
	if overlapTokens <= 0 {
		overlapTokens = 200
	}
	budget := maxTokens * charsPerToken
	overlap := overlapTokens * charsPerToken
	if overlap >= budget {
		overlap = budget / 2
	}

	pieces := cascadeSplit(text, recursiveSeparators, budget)
	windows := windowWithOverlap(pieces, budget, overlap)

	out := make([]Chunk, 0, len(windows))
	for _, w := range windows {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		out = append(out, Chunk{Text: w, ContextualizedText: w})
	}
	return out
}

// cascadeSplit recursively splits text on the first separator whose pieces
// individually fit budget, falling through to finer separators for any
// piece that still doesn't.
func cascadeSplit(text string, seps []string, budget int) []string {
	if len(text) <= budget {
		return []string{text}
	}
	if len(seps) == 0 {
		return hardSplit(text, budget)
	}

	sep, rest := seps[0], seps[1:]
	var parts []string
	if sep == "" {
		parts = hardSplit(text, budget)
	} else {
		parts = strings.Split(text, sep)
	}

	var out []string
	for i, p := range parts {
		if sep != "" && i < len(parts)-1 {
			p += sep
		}
		if p == "" {
			continue
		}
		if len(p) <= budget {
			out = append(out, p)
		} else {
			out = append(out, cascadeSplit(p, rest, budget)...)
		}
	}
	return out
}

func hardSplit(text string, budget int) []string {
	if budget <= 0 {
		return []string{text}
	}
	var out []string
	for len(text) > budget {
		out = append(out, text[:budget])
		text = text[budget:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// windowWithOverlap regroups adjacent pieces into budget-sized windows,
// each repeating the trailing overlap bytes of the previous window so
// retrieval never loses context right at a chunk seam.
func windowWithOverlap(pieces []string, budget, overlap int) []string {
	if len(pieces) == 0 {
		return nil
	}

	var windows []string
	var cur strings.Builder
	for _, p := range pieces {
		if cur.Len() > 0 && cur.Len()+len(p) > budget {
			windows = append(windows, cur.String())
			carry := carryover(cur.String(), overlap)
			cur.Reset()
			cur.WriteString(carry)
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		windows = append(windows, cur.String())
	}
	return windows
}

// carryover returns the trailing n bytes of s, snapped to the nearest rune
// boundary so multi-byte characters aren't split.
func carryover(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return ""
	}
	start := len(s) - n
	for start < len(s) && !isRuneStart(s[start]) {
		start++
	}
	return s[start:]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
