// Package cache holds the only state that outlives a request: the
// per-conversation history-summary cache and the cross-request tool-result
// cache. Both are write-through with no cross-request locking; a stale read
// costs prompt size or a missed shortcut, never correctness.
package cache

import "context"

// SummaryCache stores compressed history keyed by conversation id and the
// exact number of messages the summary covers. A covered-count mismatch is a
// miss, which is how invalidation works.
type SummaryCache interface {
	GetSummary(ctx context.Context, conversationID string, coveredMessages int) (string, bool)
	PutSummary(ctx context.Context, conversationID string, coveredMessages int, summary string)
}

// ResultCache stores raw tool payloads keyed by the invocation dedup hash.
type ResultCache interface {
	GetResult(ctx context.Context, key string) ([]byte, bool)
	PutResult(ctx context.Context, key string, payload []byte)
}

type nopCache struct{}

func (nopCache) GetSummary(context.Context, string, int) (string, bool) { return "", false }
func (nopCache) PutSummary(context.Context, string, int, string)        {}
func (nopCache) GetResult(context.Context, string) ([]byte, bool)       { return nil, false }
func (nopCache) PutResult(context.Context, string, []byte)              {}

// Nop returns a cache that never hits. Useful for tests and one-shot runs.
func Nop() interface {
	SummaryCache
	ResultCache
} {
	return nopCache{}
}
