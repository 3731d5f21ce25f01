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

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("reminders", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{Type: "reminder"}))
}

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("reminders", func(_ context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "reminder", Payload: "appt-1"}))

	select {
	case job := <-done:
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, "appt-1", job.Payload)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(time.Second):
		t.Fatal("job was not processed")
	}
}

func TestQueueDropsAfterRetries(t *testing.T) {
	var attempts int32
	dropped := make(chan Job, 1)
	q := NewQueue("reminders", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("smtp down")
	}, QueueConfig{
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
		OnDrop:     func(job Job, err error) { dropped <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "reminder"}))

	select {
	case job := <-dropped:
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, 2, job.Attempt)
		assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	case <-time.After(2 * time.Second):
		t.Fatal("job was not dropped")
	}
}
