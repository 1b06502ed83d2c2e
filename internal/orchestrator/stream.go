package orchestrator

import (
	"context"
	"sync"
)

// Stream is the ordered event channel of one research request. Events arrive
// in emission order; after a complete or error event Next reports done.
type Stream struct {
	events chan ChatEvent

	closeOnce sync.Once
}

func newStream() *Stream {
	return &Stream{events: make(chan ChatEvent, 64)}
}

// Next blocks for the next event. ok is false once the stream is exhausted
// or ctx is cancelled.
func (s *Stream) Next(ctx context.Context) (ChatEvent, bool) {
	select {
	case event, open := <-s.events:
		return event, open
	case <-ctx.Done():
		return ChatEvent{}, false
	}
}

// emit delivers one event in order. It blocks when the consumer lags, which
// is the backpressure mechanism.
func (s *Stream) emit(ctx context.Context, event ChatEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *Stream) close() {
	s.closeOnce.Do(func() { close(s.events) })
}
