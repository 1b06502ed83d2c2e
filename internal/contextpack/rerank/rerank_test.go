package rerank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/overthelex/secondlayer-sub006/internal/llm/embedding"
)

// keywordEmbedder scores a text 1.0 on the axis of each keyword it contains.
func keywordEmbedder(keywords ...string) embedding.Embedder {
	return embedding.EmbedderFunc(func(_ context.Context, text string) ([]float64, error) {
		vec := make([]float64, len(keywords))
		for i, kw := range keywords {
			if strings.Contains(text, kw) {
				vec[i] = 1
			}
		}
		return vec, nil
	})
}

func TestNeedsRerankThresholds(t *testing.T) {
	t.Parallel()
	r := New(nil)
	big := Item{Text: strings.Repeat("x", 1000)}

	if r.NeedsRerank([]Item{big, big}, 1000) {
		t.Fatal("two results should never trigger rerank")
	}
	if r.NeedsRerank([]Item{big, big, big}, 3000) {
		t.Fatal("batch within 1.5x budget should not trigger rerank")
	}
	if !r.NeedsRerank([]Item{big, big, big}, 1000) {
		t.Fatal("three results at 3x budget should trigger rerank")
	}
}

func TestRankKeepsMostSimilarInFull(t *testing.T) {
	t.Parallel()
	r := New(keywordEmbedder("оренда", "податок"))
	items := []Item{
		{ID: "tax", Text: "Рішення про податок на прибуток. " + strings.Repeat("т", 400)},
		{ID: "rent", Text: "Рішення про оренду землі. " + strings.Repeat("о", 400)},
		{ID: "misc", Text: "Інше рішення. " + strings.Repeat("і", 400)},
	}

	out := r.Rank(context.Background(), "спір щодо оренди земельної ділянки, оренда", items, 500)
	if len(out) != 3 {
		t.Fatalf("expected all 3 items represented, got %d", len(out))
	}
	if out[0].ID != "rent" {
		t.Fatalf("expected rent ranked first, got %q", out[0].ID)
	}
	if strings.Contains(out[0].Text, "[omitted") {
		t.Fatalf("top item should be kept in full, got %q", out[0].Text)
	}
	stubs := 0
	for _, item := range out[1:] {
		if strings.HasPrefix(item.Text, "[omitted for space]") {
			stubs++
		}
	}
	if stubs == 0 {
		t.Fatal("expected over-budget remainder reduced to stubs")
	}
}

func TestRankTruncatesOversizedTopItem(t *testing.T) {
	t.Parallel()
	r := New(keywordEmbedder("оренда"))
	items := []Item{
		{ID: "a", Text: "оренда " + strings.Repeat("а", 2000)},
		{ID: "b", Text: strings.Repeat("б", 2000)},
		{ID: "c", Text: strings.Repeat("в", 2000)},
	}

	out := r.Rank(context.Background(), "оренда", items, 300)
	if out[0].ID != "a" {
		t.Fatalf("expected a first, got %q", out[0].ID)
	}
	if !strings.HasSuffix(out[0].Text, "[truncated]") {
		t.Fatalf("expected top item truncated, got tail %q", out[0].Text[len(out[0].Text)-30:])
	}
	if len([]rune(out[0].Text)) > 300+len(" ... [truncated]") {
		t.Fatalf("truncated top item still over budget: %d runes", len([]rune(out[0].Text)))
	}
}

func TestRankFallsBackOnEmbeddingFailure(t *testing.T) {
	t.Parallel()
	failing := embedding.EmbedderFunc(func(context.Context, string) ([]float64, error) {
		return nil, errors.New("embedding backend down")
	})
	r := New(failing)
	items := []Item{
		{ID: "first", Text: strings.Repeat("1", 200)},
		{ID: "second", Text: strings.Repeat("2", 200)},
		{ID: "third", Text: strings.Repeat("3", 200)},
	}

	out := r.Rank(context.Background(), "запит", items, 250)
	if out[0].ID != "first" {
		t.Fatalf("expected input order preserved on failure, got %q first", out[0].ID)
	}
	if !strings.HasPrefix(out[2].Text, "[omitted for space]") {
		t.Fatalf("expected budget still enforced on fallback, got %q", out[2].Text)
	}
}
