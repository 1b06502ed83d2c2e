package orchestrator

import (
	"context"

	"github.com/overthelex/secondlayer-sub006/internal/background"
	"github.com/overthelex/secondlayer-sub006/internal/llm"
	"github.com/overthelex/secondlayer-sub006/internal/store"
)

// costRecorder writes usage records off the request path. Recording never
// delays or fails a request; a lost record is an accounting gap, not an
// error the user sees.
type costRecorder struct {
	queue *background.Queue
	store *store.Store
}

func newCostRecorder(queue *background.Queue, st *store.Store) *costRecorder {
	return &costRecorder{queue: queue, store: st}
}

// record enqueues one ledger row. failed marks invocations whose provider
// call errored after consuming tokens.
func (c *costRecorder) record(requestID string, conversationID string, model string, purpose string, usage llm.Usage, failed bool) {
	if c == nil || c.store == nil || c.queue == nil {
		return
	}
	rec := store.CostRecord{
		RequestID:      requestID,
		ConversationID: conversationID,
		Model:          model,
		Purpose:        purpose,
		InputTokens:    usage.InputTokens,
		OutputTokens:   usage.OutputTokens,
		CostUSD:        llm.ComputeCost(model, usage),
		Failed:         failed,
	}
	c.queue.Submit("cost_record", func(ctx context.Context) error {
		return c.store.RecordCost(ctx, rec)
	})
}
