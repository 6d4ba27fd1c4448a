package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentoven/ragserve/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_ReturnsValue(t *testing.T) {
	q := jobs.NewQueue(nil)
	defer q.Close()

	f := q.Submit(context.Background(), "x", func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	f = q.Submit(context.Background(), "x", func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	_, err = f.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSubmit_LimitsConcurrencyPerClass(t *testing.T) {
	q := jobs.NewQueue(map[string]int{jobs.ClassVision: 2})
	defer q.Close()

	var running, peak int32
	work := func(ctx context.Context) (interface{}, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil, nil
	}

	var futures []*jobs.Future
	for i := 0; i < 8; i++ {
		futures = append(futures, q.Submit(context.Background(), jobs.ClassVision, work))
	}
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&peak), int32(1))
}

func TestClose_CancelsRunningJobs(t *testing.T) {
	q := jobs.NewQueue(nil)
	started := make(chan struct{})
	f := q.Submit(context.Background(), "slow", func(ctx context.Context) (interface{}, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started
	q.Close()

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = q.Submit(context.Background(), "slow", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}).Wait(context.Background())
	assert.ErrorIs(t, err, jobs.ErrClosed)
}

func TestWait_RespectsContext(t *testing.T) {
	q := jobs.NewQueue(nil)
	defer q.Close()
	block := make(chan struct{})
	defer close(block)

	f := q.Submit(context.Background(), "x", func(ctx context.Context) (interface{}, error) {
		<-block
		return nil, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
