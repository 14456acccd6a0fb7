package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("fanout", func(_ context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 1})

	require.Error(t, q.Enqueue(Job{ID: "early"}))

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "approval", Payload: "res-1"}))
	select {
	case job := <-done:
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, "res-1", job.Payload)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueWithoutRetriesRunsFailedJobOnce(t *testing.T) {
	var calls int32
	q := NewQueue("fanout", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("smtp down")
	}, QueueConfig{Workers: 1, MaxRetries: 0, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	time.Sleep(100 * time.Millisecond)
	q.Stop()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestQueueRetriesUpToLimit(t *testing.T) {
	var calls int32
	q := NewQueue("fanout", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("transient")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, 2*time.Second, 5*time.Millisecond)
	q.Stop()
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	q := NewQueue("fanout", func(context.Context, Job) error {
		<-release
		atomic.AddInt32(&calls, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job"}))
	}
	close(release)
	q.Stop()

	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Error(t, q.Enqueue(Job{ID: "late"}))
}

func TestQueueTryEnqueueReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	picked := make(chan struct{}, 1)
	q := NewQueue("fanout", func(context.Context, Job) error {
		picked <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	require.Error(t, q.TryEnqueue(Job{ID: "early"}))

	q.Start(context.Background())
	require.NoError(t, q.TryEnqueue(Job{ID: "running"}))
	<-picked
	require.NoError(t, q.TryEnqueue(Job{ID: "buffered"}))

	err := q.TryEnqueue(Job{ID: "overflow"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	q.Stop()
	assert.Error(t, q.TryEnqueue(Job{ID: "late"}))
}
