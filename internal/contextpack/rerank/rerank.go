// Package rerank orders oversized tool-result batches by embedding similarity
// to the user query so the budget is spent on the most relevant documents.
package rerank

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/overthelex/secondlayer-sub006/internal/llm/embedding"
)

const (
	// Re-ranking only pays for itself with several candidates well over
	// budget; smaller batches are plain-truncated.
	minResults      = 3
	overshootFactor = 1.5

	// Embedding input is a prefix, not the whole document. Court decisions
	// front-load case metadata, so a short prefix ranks well.
	embedPrefixChars = 480
)

// Item is one candidate document with its already-rendered text.
type Item struct {
	ID   string
	Text string
}

// Reranker decides which documents survive in full when a result batch
// exceeds the budget.
type Reranker struct {
	embedder embedding.Embedder
}

func New(embedder embedding.Embedder) *Reranker {
	return &Reranker{embedder: embedder}
}

// NeedsRerank reports whether the batch is both plural and far enough over
// budget that similarity ordering beats naive truncation.
func (r *Reranker) NeedsRerank(items []Item, maxResultChars int) bool {
	if len(items) < minResults {
		return false
	}
	total := 0
	for _, item := range items {
		total += len([]rune(item.Text))
	}
	return float64(total) > overshootFactor*float64(maxResultChars)
}

// Rank returns the batch reduced to the budget: most query-similar documents
// kept in full until the budget runs out, the remainder as one-line stubs.
// The top document is always kept, truncated if it alone exceeds the budget.
// Embedding failures degrade to input-order truncation, never to an error.
func (r *Reranker) Rank(ctx context.Context, query string, items []Item, maxResultChars int) []Item {
	if len(items) == 0 {
		return nil
	}
	ordered, err := r.orderBySimilarity(ctx, query, items)
	if err != nil {
		log.Debug().Err(err).Int("items", len(items)).Msg("embedding rerank failed, keeping input order")
		ordered = items
	}
	return clipToBudget(ordered, maxResultChars)
}

func (r *Reranker) orderBySimilarity(ctx context.Context, query string, items []Item) ([]Item, error) {
	if r == nil || r.embedder == nil {
		return items, nil
	}
	queryVec, err := r.embedder.Embed(ctx, prefix(query))
	if err != nil {
		return nil, err
	}
	type scored struct {
		item  Item
		score float64
	}
	scoredItems := make([]scored, 0, len(items))
	for _, item := range items {
		vec, err := r.embedder.Embed(ctx, prefix(item.Text))
		if err != nil {
			return nil, err
		}
		scoredItems = append(scoredItems, scored{item: item, score: embedding.Cosine(queryVec, vec)})
	}
	sort.SliceStable(scoredItems, func(i, j int) bool {
		return scoredItems[i].score > scoredItems[j].score
	})
	ordered := make([]Item, 0, len(scoredItems))
	for _, s := range scoredItems {
		ordered = append(ordered, s.item)
	}
	return ordered, nil
}

// clipToBudget keeps full documents in order until the budget is spent, then
// replaces the rest with one-line stubs that preserve the document's identity.
func clipToBudget(ordered []Item, maxResultChars int) []Item {
	out := make([]Item, 0, len(ordered))
	remaining := maxResultChars
	for i, item := range ordered {
		size := len([]rune(item.Text))
		switch {
		case size <= remaining:
			out = append(out, item)
			remaining -= size
		case i == 0:
			// The best match always survives, cut to fit.
			runes := []rune(item.Text)
			cut := maxResultChars
			if cut > len(runes) {
				cut = len(runes)
			}
			out = append(out, Item{ID: item.ID, Text: string(runes[:cut]) + " ... [truncated]"})
			remaining = 0
		default:
			out = append(out, Item{ID: item.ID, Text: stub(item)})
		}
	}
	return out
}

func stub(item Item) string {
	line := strings.TrimSpace(item.Text)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if runes := []rune(line); len(runes) > 120 {
		line = string(runes[:120])
	}
	return "[omitted for space] " + strings.TrimSpace(item.ID) + ": " + line
}

func prefix(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= embedPrefixChars {
		return string(runes)
	}
	return string(runes[:embedPrefixChars])
}
