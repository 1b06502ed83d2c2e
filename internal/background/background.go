// Package background runs fire-and-forget jobs off the request path. Jobs
// are best-effort: failures are logged and never surfaced to callers.
package background

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultQueueSize  = 256
	defaultJobTimeout = 30 * time.Second
)

type job struct {
	name string
	fn   func(ctx context.Context) error
}

// Queue is a bounded single-consumer job queue. A full queue drops the job
// rather than blocking the caller.
type Queue struct {
	jobs    chan job
	timeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	q := &Queue{
		jobs:    make(chan job, size),
		timeout: defaultJobTimeout,
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit enqueues fn. It never blocks; on overflow the job is dropped and
// the drop is logged.
func (q *Queue) Submit(name string, fn func(ctx context.Context) error) {
	if q == nil || fn == nil {
		return
	}
	select {
	case q.jobs <- job{name: name, fn: fn}:
	default:
		log.Warn().Str("job", name).Msg("background queue full, job dropped")
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (q *Queue) Close() {
	if q == nil {
		return
	}
	q.closeOnce.Do(func() {
		close(q.jobs)
		<-q.done
	})
}

func (q *Queue) run() {
	defer close(q.done)
	for j := range q.jobs {
		q.execute(j)
	}
}

func (q *Queue) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job", j.name).Any("panic", r).Msg("background job panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if err := j.fn(ctx); err != nil {
		log.Warn().Err(err).Str("job", j.name).Msg("background job failed")
	}
}
