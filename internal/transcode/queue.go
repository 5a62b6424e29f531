package transcode

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"snapify/pkg/logger"
)

// Handler processes one job. Its error is logged and counted; it never stops the queue.
type Handler func(ctx context.Context, job Job) error

type Stats struct {
	Pending   int   `json:"pending"`
	Active    int   `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	MaxActive int   `json:"maxActive"`
}

// Queue is an unbounded FIFO drained by at most concurrency workers.
// Enqueue never blocks; jobs start in the order they were enqueued.
type Queue struct {
	handler     Handler
	concurrency int
	log         *logger.Logger

	mu      sync.Mutex
	pending []Job
	active  int
	closed  bool
	stats   Stats
	changed chan struct{}
}

func NewQueue(concurrency int, handler Handler) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	q := &Queue{
		handler:     handler,
		concurrency: concurrency,
		log:         logger.Named("queue"),
		changed:     make(chan struct{}),
	}
	q.log.Info("ready with %d worker(s)", concurrency)
	return q
}

// Enqueue appends job and starts a worker if one is free.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.pending = append(q.pending, job)
	q.log.Info("queued %s (%d pending)", job.Key(), len(q.pending))

	if q.active < q.concurrency {
		next := q.pop()
		q.active++
		if q.active > q.stats.MaxActive {
			q.stats.MaxActive = q.active
		}
		go q.work(next)
	}
	q.notify()
	return nil
}

// work runs job, then keeps taking pending jobs until the queue is empty.
func (q *Queue) work(job Job) {
	for job != nil {
		err := q.run(job)

		q.mu.Lock()
		if err != nil {
			q.stats.Failed++
		} else {
			q.stats.Completed++
		}
		if len(q.pending) > 0 {
			job = q.pop()
		} else {
			job = nil
			q.active--
		}
		q.notify()
		q.mu.Unlock()
	}
}

// run detaches the job from any request; in-flight transcodes are never cancelled.
func (q *Queue) run(job Job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			q.log.Error("%s panicked: %v\n%s", job.Key(), r, debug.Stack())
		}
	}()

	if err = q.handler(context.Background(), job); err != nil {
		q.log.Error("%s failed after %v: %v", job.Key(), time.Since(start).Round(time.Millisecond), err)
		return err
	}
	q.log.Success("%s done in %v", job.Key(), time.Since(start).Round(time.Millisecond))
	return nil
}

// pop must be called with mu held and pending non-empty.
func (q *Queue) pop() Job {
	job := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return job
}

// notify must be called with mu held.
func (q *Queue) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = len(q.pending)
	s.Active = q.active
	return s
}

// Drain blocks until no job is pending or running, or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 && q.active == 0 {
			q.mu.Unlock()
			return nil
		}
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting jobs. Jobs already queued still run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.notify()
	}
}

// Shutdown closes the queue and waits for queued and running jobs.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.Close()
	st := q.Stats()
	if st.Pending+st.Active > 0 {
		q.log.Info("waiting for %d queued and %d running job(s)", st.Pending, st.Active)
	}
	return q.Drain(ctx)
}
