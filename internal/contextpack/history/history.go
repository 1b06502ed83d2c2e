// Package history folds conversation turns older than the verbatim window
// into a bounded summary, cached per conversation by exact covered count.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/overthelex/secondlayer-sub006/internal/cache"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/model"
	"github.com/overthelex/secondlayer-sub006/internal/llm"
)

const (
	// Below this size older history is concatenated verbatim instead of
	// spending an LLM call on it.
	verbatimThresholdChars = 800

	defaultSummaryCapChars = 1500
)

// Compressor produces the "older history" block of the context window.
type Compressor struct {
	client   llm.Client
	model    string
	cache    cache.SummaryCache
	capChars int

	// OnUsage, when set, receives the token accounting of every summary
	// call so it can reach the cost ledger.
	OnUsage func(conversationID string, usage llm.Usage, failed bool)
}

func NewCompressor(client llm.Client, fastModel string, summaryCache cache.SummaryCache) *Compressor {
	if summaryCache == nil {
		summaryCache = cache.Nop()
	}
	return &Compressor{
		client:   client,
		model:    strings.TrimSpace(fastModel),
		cache:    summaryCache,
		capChars: defaultSummaryCapChars,
	}
}

// Compress returns a bounded representation of older turns. The result is
// cached by (conversationID, len(older)); an unchanged covered count returns
// the cached summary without another model call. All failures degrade to a
// truncated concatenation, never to an error.
func (c *Compressor) Compress(ctx context.Context, conversationID string, older []model.Turn) string {
	if len(older) == 0 {
		return ""
	}
	if model.TotalChars(older) <= verbatimThresholdChars {
		return "Earlier conversation (verbatim):\n" + concatTurns(older)
	}

	if summary, ok := c.cache.GetSummary(ctx, conversationID, len(older)); ok {
		return summary
	}

	summary, err := c.summarize(ctx, conversationID, older)
	if err != nil {
		log.Debug().Err(err).Int("turns", len(older)).Msg("history summarization failed, using truncated concatenation")
		return c.fallback(older)
	}
	summary = "Earlier conversation (summarized):\n" + summary
	c.cache.PutSummary(ctx, conversationID, len(older), summary)
	return summary
}

func (c *Compressor) summarize(ctx context.Context, conversationID string, older []model.Turn) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("no summarizer configured")
	}
	system := strings.Join([]string{
		"You compress earlier turns of a legal research conversation.",
		"Write a dense summary in the conversation's language.",
		"Always preserve: case numbers, statute and article references, registry codes, and any conclusion already reached.",
		fmt.Sprintf("Hard limit: %d characters.", c.summaryCap()),
	}, "\n")

	result, err := llm.Complete(ctx, c.client, llm.TurnRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: concatTurns(older)},
		},
		MaxOutputTokens: 700,
	})
	if c.OnUsage != nil {
		c.OnUsage(conversationID, result.Usage, err != nil)
	}
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", fmt.Errorf("empty summary")
	}
	if runes := []rune(text); len(runes) > c.summaryCap() {
		text = string(runes[:c.summaryCap()]) + " ... [truncated]"
	}
	return text, nil
}

func (c *Compressor) fallback(older []model.Turn) string {
	text := concatTurns(older)
	if runes := []rune(text); len(runes) > c.summaryCap() {
		text = string(runes[:c.summaryCap()]) + " ... [truncated]"
	}
	return "Earlier conversation (truncated):\n" + text
}

func (c *Compressor) summaryCap() int {
	if c.capChars > 0 {
		return c.capChars
	}
	return defaultSummaryCapChars
}

func concatTurns(turns []model.Turn) string {
	var sb strings.Builder
	for _, turn := range turns {
		role := strings.TrimSpace(turn.Role)
		if role == "" {
			role = "user"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(strings.TrimSpace(turn.Content))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
