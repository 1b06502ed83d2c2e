package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestQueueRunsSubmittedJobs(t *testing.T) {
	t.Parallel()
	q := NewQueue(8)
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		q.Submit("count", func(context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	q.Close()
	if got := ran.Load(); got != 5 {
		t.Fatalf("expected 5 jobs run, got %d", got)
	}
}

func TestQueueSwallowsFailures(t *testing.T) {
	t.Parallel()
	q := NewQueue(8)
	var after atomic.Bool
	q.Submit("fail", func(context.Context) error {
		return errors.New("upstream unavailable")
	})
	q.Submit("panic", func(context.Context) error {
		panic("worker bug")
	})
	q.Submit("after", func(context.Context) error {
		after.Store(true)
		return nil
	})
	q.Close()
	if !after.Load() {
		t.Fatal("queue stopped processing after a failing job")
	}
}

func TestQueueSubmitAfterNilReceiver(t *testing.T) {
	t.Parallel()
	var q *Queue
	q.Submit("noop", func(context.Context) error { return nil })
	q.Close()
}
