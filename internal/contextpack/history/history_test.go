package history

import (
	"context"
	"strings"
	"testing"

	"github.com/overthelex/secondlayer-sub006/internal/cache"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/model"
	"github.com/overthelex/secondlayer-sub006/internal/llm"
)

type countingClient struct {
	calls int
	text  string
	err   error
}

func (c *countingClient) Provider() string { return "fake" }

func (c *countingClient) StreamTurn(ctx context.Context, req llm.TurnRequest, onEvent func(llm.StreamEvent)) (llm.TurnResult, error) {
	c.calls++
	if c.err != nil {
		return llm.TurnResult{}, c.err
	}
	return llm.TurnResult{Text: c.text, FinishReason: "stop"}, nil
}

func longHistory() []model.Turn {
	filler := strings.Repeat("позивач посилається на статтю 625 ЦК України. ", 20)
	return []model.Turn{
		{Role: "user", Content: "Справа 910/1234/23: " + filler},
		{Role: "assistant", Content: "Суд стягнув 3% річних. " + filler},
	}
}

func TestCompressSmallHistoryVerbatim(t *testing.T) {
	t.Parallel()
	client := &countingClient{text: "should not be called"}
	c := NewCompressor(client, "fast", cache.Nop())

	got := c.Compress(context.Background(), "conv-1", []model.Turn{
		{Role: "user", Content: "Що таке позовна давність?"},
		{Role: "assistant", Content: "Загальна позовна давність становить три роки."},
	})
	if client.calls != 0 {
		t.Fatalf("expected no model calls for small history, got %d", client.calls)
	}
	if !strings.Contains(got, "verbatim") {
		t.Fatalf("expected verbatim marker, got %q", got)
	}
	if !strings.Contains(got, "три роки") {
		t.Fatalf("expected turn content preserved, got %q", got)
	}
}

func TestCompressCachesByCoveredCount(t *testing.T) {
	t.Parallel()
	client := &countingClient{text: "Справа 910/1234/23, стаття 625 ЦК, стягнуто 3% річних."}
	memCache, err := cache.NewMemory(0, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	c := NewCompressor(client, "fast", memCache)
	older := longHistory()

	first := c.Compress(context.Background(), "conv-2", older)
	second := c.Compress(context.Background(), "conv-2", older)
	if client.calls != 1 {
		t.Fatalf("expected exactly one model call, got %d", client.calls)
	}
	if first != second {
		t.Fatalf("cache hit returned different summary:\n%q\n%q", first, second)
	}
	if !strings.Contains(first, "910/1234/23") {
		t.Fatalf("expected case number preserved, got %q", first)
	}

	// A different covered count is a distinct cache key.
	grown := append(older, model.Turn{Role: "user", Content: strings.Repeat("нове питання ", 80)})
	c.Compress(context.Background(), "conv-2", grown)
	if client.calls != 2 {
		t.Fatalf("expected second model call for grown history, got %d", client.calls)
	}
}

func TestCompressFallsBackOnSummarizerFailure(t *testing.T) {
	t.Parallel()
	client := &countingClient{err: context.DeadlineExceeded}
	c := NewCompressor(client, "fast", cache.Nop())

	got := c.Compress(context.Background(), "conv-3", longHistory())
	if got == "" {
		t.Fatal("expected non-empty fallback")
	}
	if !strings.Contains(got, "truncated") {
		t.Fatalf("expected truncated marker, got %q", got)
	}
}

func TestCompressEmptyHistory(t *testing.T) {
	t.Parallel()
	c := NewCompressor(nil, "fast", nil)
	if got := c.Compress(context.Background(), "conv-4", nil); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestCompressReportsUsage(t *testing.T) {
	t.Parallel()
	client := &countingClient{text: "Стисла історія: справа 910/1234/23, стаття 625 ЦК."}
	c := NewCompressor(client, "fast", cache.Nop())

	var gotConv string
	var gotFailed bool
	var hookCalls int
	c.OnUsage = func(conversationID string, usage llm.Usage, failed bool) {
		hookCalls++
		gotConv = conversationID
		gotFailed = failed
	}

	c.Compress(context.Background(), "conv-9", longHistory())
	if hookCalls != 1 {
		t.Fatalf("expected 1 usage report, got %d", hookCalls)
	}
	if gotConv != "conv-9" || gotFailed {
		t.Fatalf("unexpected usage report: conv=%q failed=%v", gotConv, gotFailed)
	}
}
