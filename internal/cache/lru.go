package cache

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is the in-process cache used when Redis is not configured.
type Memory struct {
	summaries *lru.Cache[string, string]
	results   *lru.Cache[string, []byte]
}

func NewMemory(summaryEntries int, resultEntries int) (*Memory, error) {
	if summaryEntries <= 0 {
		summaryEntries = 256
	}
	if resultEntries <= 0 {
		resultEntries = 1024
	}
	summaries, err := lru.New[string, string](summaryEntries)
	if err != nil {
		return nil, err
	}
	results, err := lru.New[string, []byte](resultEntries)
	if err != nil {
		return nil, err
	}
	return &Memory{summaries: summaries, results: results}, nil
}

func summaryKey(conversationID string, coveredMessages int) string {
	return fmt.Sprintf("histsum:%s:%d", strings.TrimSpace(conversationID), coveredMessages)
}

func (m *Memory) GetSummary(_ context.Context, conversationID string, coveredMessages int) (string, bool) {
	if m == nil || strings.TrimSpace(conversationID) == "" {
		return "", false
	}
	return m.summaries.Get(summaryKey(conversationID, coveredMessages))
}

func (m *Memory) PutSummary(_ context.Context, conversationID string, coveredMessages int, summary string) {
	if m == nil || strings.TrimSpace(conversationID) == "" || strings.TrimSpace(summary) == "" {
		return
	}
	m.summaries.Add(summaryKey(conversationID, coveredMessages), summary)
}

func (m *Memory) GetResult(_ context.Context, key string) ([]byte, bool) {
	if m == nil || strings.TrimSpace(key) == "" {
		return nil, false
	}
	return m.results.Get("toolres:" + key)
}

func (m *Memory) PutResult(_ context.Context, key string, payload []byte) {
	if m == nil || strings.TrimSpace(key) == "" || len(payload) == 0 {
		return
	}
	m.results.Add("toolres:"+key, payload)
}
