// Package packer assembles the prompt under a hard character budget with a
// fixed priority order. Instructions and the active plan are never truncated;
// everything below them yields space instead.
package packer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/overthelex/secondlayer-sub006/internal/budget"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/history"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/model"
	"github.com/overthelex/secondlayer-sub006/internal/llm"
)

// ErrBudgetMisconfigured means the untruncatable blocks alone exceed the
// context budget. This is an operator error, not a runtime condition to
// degrade around.
var ErrBudgetMisconfigured = errors.New("instructions and plan exceed context budget")

const (
	// Last turns kept verbatim, subject only to a per-message cap.
	recentWindowTurns = 4

	// A single recent turn larger than this gets its head kept and the
	// rest dropped. Real user messages almost never hit it.
	perMessageCapChars = 4000
)

// Builder assembles the message list for one reasoning step.
type Builder struct {
	compressor *history.Compressor
}

func NewBuilder(compressor *history.Compressor) *Builder {
	return &Builder{compressor: compressor}
}

// Input is everything the window is assembled from, in priority order.
type Input struct {
	Instructions   string
	Plan           string
	ConversationID string
	History        []model.Turn
	Query          string
}

// Build returns the system and conversation messages for the profile's
// context budget. The query is always verbatim; older history compresses;
// the whole result never exceeds profile.MaxContextChars.
func (b *Builder) Build(ctx context.Context, profile budget.Profile, in Input) ([]llm.Message, error) {
	system := strings.TrimSpace(in.Instructions)
	if plan := strings.TrimSpace(in.Plan); plan != "" {
		system = system + "\n\nActive research plan:\n" + plan
	}

	budgetChars := profile.MaxContextChars
	used := len([]rune(system))
	if used > budgetChars {
		return nil, fmt.Errorf("%w: %d chars over a %d budget", ErrBudgetMisconfigured, used, budgetChars)
	}

	query := strings.TrimSpace(in.Query)
	used += len([]rune(query))

	older, recent := splitHistory(in.History)

	// Recent turns are verbatim but individually capped; an oversized turn
	// keeps its head rather than crashing the request.
	messages := make([]llm.Message, 0, len(recent)+2)
	remaining := budgetChars - used
	for _, turn := range recent {
		content := capTurn(turn.Content)
		if size := len([]rune(content)); size <= remaining {
			remaining -= size
		} else if remaining > 200 {
			marker := " ... [truncated]"
			content = string([]rune(content)[:remaining-len(marker)]) + marker
			remaining = 0
		} else {
			continue
		}
		messages = append(messages, llm.Message{Role: normalizeRole(turn.Role), Content: content})
	}

	if len(older) > 0 && b.compressor != nil && remaining > 200 {
		if summary := b.compressor.Compress(ctx, in.ConversationID, older); summary != "" {
			// The joiner spends budget too.
			sep := "\n\n"
			allowed := remaining - len(sep)
			marker := " ... [truncated]"
			if size := len([]rune(summary)); size > allowed {
				summary = string([]rune(summary)[:allowed-len(marker)]) + marker
			}
			system = system + sep + summary
		}
	}

	out := make([]llm.Message, 0, len(messages)+2)
	out = append(out, llm.Message{Role: "system", Content: system})
	out = append(out, messages...)
	out = append(out, llm.Message{Role: "user", Content: query})
	return out, nil
}

func splitHistory(turns []model.Turn) (older []model.Turn, recent []model.Turn) {
	if len(turns) <= recentWindowTurns {
		return nil, turns
	}
	cut := len(turns) - recentWindowTurns
	return turns[:cut], turns[cut:]
}

func capTurn(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= perMessageCapChars {
		return string(runes)
	}
	return string(runes[:perMessageCapChars]) + " ... [truncated]"
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant":
		return "assistant"
	default:
		return "user"
	}
}
