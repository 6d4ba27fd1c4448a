// Package jobs runs GPU-bound work under a per-class concurrency limit.
// Each workload class owns a weighted semaphore; Submit returns a future
// the caller waits on.
package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// ClassVision is the workload class of multimodal inference.
const ClassVision = "vision"

// ErrClosed is returned by jobs submitted after Close.
var ErrClosed = errors.New("job queue closed")

// Func is one unit of work.
type Func func(ctx context.Context) (interface{}, error)

// Future is the pending result of a submitted job.
type Future struct {
	done  chan struct{}
	value interface{}
	err   error
}

// Wait blocks until the job finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Queue limits concurrent jobs per workload class. Classes that were not
// configured get one slot.
type Queue struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	slots map[string]int64
	sems  map[string]*semaphore.Weighted
}

// NewQueue creates a queue with the given slots per class.
func NewQueue(slots map[string]int) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ctx:    ctx,
		cancel: cancel,
		slots:  make(map[string]int64, len(slots)),
		sems:   make(map[string]*semaphore.Weighted),
	}
	for class, n := range slots {
		if n < 1 {
			n = 1
		}
		q.slots[class] = int64(n)
	}
	return q
}

func (q *Queue) sem(class string) *semaphore.Weighted {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.sems[class]
	if !ok {
		n := q.slots[class]
		if n < 1 {
			n = 1
		}
		s = semaphore.NewWeighted(n)
		q.sems[class] = s
	}
	return s
}

// Submit schedules fn under class. The job waits for a slot, and is
// cancelled when either ctx or the queue is.
func (q *Queue) Submit(ctx context.Context, class string, fn Func) *Future {
	f := &Future{done: make(chan struct{})}
	if q.ctx.Err() != nil {
		f.err = ErrClosed
		close(f.done)
		return f
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer close(f.done)

		jobCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(q.ctx, cancel)
		defer stop()

		sem := q.sem(class)
		if err := sem.Acquire(jobCtx, 1); err != nil {
			if q.ctx.Err() != nil {
				err = ErrClosed
			}
			f.err = err
			return
		}
		defer sem.Release(1)

		log.Debug().Str("class", class).Msg("job started")
		f.value, f.err = fn(jobCtx)
	}()
	return f
}

// Close cancels running and waiting jobs and waits for them to return.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}
