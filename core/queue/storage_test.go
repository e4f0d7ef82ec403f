package queue_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/core/queue"
)

type inspectableStorage interface {
	queue.Storage
	queue.Purger
	Task(id uuid.UUID) (queue.Task, bool)
}

func newTask(queueName string, scheduledAt time.Time) *queue.Task {
	return &queue.Task{
		ID:          uuid.New(),
		Queue:       queueName,
		TaskName:    "job",
		Payload:     []byte(`{}`),
		Status:      queue.TaskStatusPending,
		MaxRetries:  2,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	}
}

func storageContract(t *testing.T, newStorage func(t *testing.T) inspectableStorage) {
	ctx := context.Background()
	workerID := uuid.New()

	t.Run("claims oldest due task in requested queue", func(t *testing.T) {
		s := newStorage(t)
		now := time.Now()

		later := newTask("a", now.Add(-time.Second))
		older := newTask("a", now.Add(-time.Minute))
		other := newTask("b", now.Add(-time.Hour))
		future := newTask("a", now.Add(time.Hour))
		for _, task := range []*queue.Task{later, older, other, future} {
			require.NoError(t, s.CreateTask(ctx, task))
		}

		claimed, err := s.ClaimTask(ctx, workerID, []string{"a"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, older.ID, claimed.ID)
		assert.Equal(t, queue.TaskStatusProcessing, claimed.Status)
		require.NotNil(t, claimed.LockedBy)
		assert.Equal(t, workerID, *claimed.LockedBy)

		claimed, err = s.ClaimTask(ctx, workerID, []string{"a"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, later.ID, claimed.ID)

		_, err = s.ClaimTask(ctx, workerID, []string{"a"}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		s := newStorage(t)
		task := newTask("a", time.Now())
		require.NoError(t, s.CreateTask(ctx, task))
		assert.ErrorIs(t, s.CreateTask(ctx, task), queue.ErrTaskExists)
	})

	t.Run("fail reschedules then marks failed", func(t *testing.T) {
		s := newStorage(t)
		task := newTask("a", time.Now().Add(-time.Second))
		require.NoError(t, s.CreateTask(ctx, task))

		_, err := s.ClaimTask(ctx, workerID, []string{"a"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.FailTask(ctx, task.ID, "first"))

		got, ok := s.Task(task.ID)
		require.True(t, ok)
		assert.Equal(t, queue.TaskStatusPending, got.Status)
		assert.Equal(t, int8(1), got.RetryCount)
		assert.WithinDuration(t, time.Now().Add(queue.RetryDelay(1)), got.ScheduledAt, 5*time.Second)

		// Not due yet.
		_, err = s.ClaimTask(ctx, workerID, []string{"a"}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("expired lock is claimable again", func(t *testing.T) {
		s := newStorage(t)
		task := newTask("a", time.Now().Add(-time.Second))
		require.NoError(t, s.CreateTask(ctx, task))

		_, err := s.ClaimTask(ctx, workerID, []string{"a"}, time.Millisecond)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		require.Eventually(t, func() bool {
			claimed, err := s.ClaimTask(ctx, uuid.New(), []string{"a"}, time.Minute)
			return err == nil && claimed.ID == task.ID
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("complete and dlq require known tasks", func(t *testing.T) {
		s := newStorage(t)
		assert.ErrorIs(t, s.CompleteTask(ctx, uuid.New()), queue.ErrTaskNotFound)
		assert.ErrorIs(t, s.MoveToDLQ(ctx, uuid.New()), queue.ErrTaskNotFound)

		task := newTask("a", time.Now())
		require.NoError(t, s.CreateTask(ctx, task))
		assert.ErrorIs(t, s.CompleteTask(ctx, task.ID), queue.ErrTaskNotProcessing)
		assert.ErrorIs(t, s.ExtendLock(ctx, task.ID, time.Minute), queue.ErrTaskNotProcessing)
	})

	t.Run("move to dlq removes task", func(t *testing.T) {
		s := newStorage(t)
		task := newTask("a", time.Now().Add(-time.Second))
		require.NoError(t, s.CreateTask(ctx, task))
		_, err := s.ClaimTask(ctx, workerID, []string{"a"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.FailTask(ctx, task.ID, "bad"))
		require.NoError(t, s.MoveToDLQ(ctx, task.ID))

		_, ok := s.Task(task.ID)
		assert.False(t, ok)
	})
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()

	storageContract(t, func(*testing.T) inspectableStorage { return queue.NewMemoryStorage() })

	t.Run("expiration loop releases locks", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := queue.NewMemoryStorage(queue.WithLockCheckInterval(5 * time.Millisecond))
		task := newTask("a", time.Now().Add(-time.Second))
		require.NoError(t, s.CreateTask(ctx, task))
		_, err := s.ClaimTask(ctx, uuid.New(), []string{"a"}, time.Millisecond)
		require.NoError(t, err)

		go func() { _ = s.Run(ctx)() }()

		require.Eventually(t, func() bool {
			got, ok := s.Task(task.ID)
			return ok && got.Status == queue.TaskStatusPending
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, int64(1), s.ExpiredLocksFreed())
	})

	t.Run("purge completed before cutoff", func(t *testing.T) {
		ctx := context.Background()
		s := queue.NewMemoryStorage()
		task := newTask("a", time.Now().Add(-time.Second))
		require.NoError(t, s.CreateTask(ctx, task))
		_, err := s.ClaimTask(ctx, uuid.New(), []string{"a"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.CompleteTask(ctx, task.ID))

		n, err := s.PurgeCompleted(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = s.PurgeCompleted(ctx, time.Now().Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Empty(t, s.Tasks("a"))
	})
}

func TestBoltStorage(t *testing.T) {
	t.Parallel()

	open := func(t *testing.T) *queue.BoltStorage {
		t.Helper()
		s, err := queue.OpenBoltStorage(filepath.Join(t.TempDir(), "nested", "queue.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	storageContract(t, func(t *testing.T) inspectableStorage { return open(t) })

	t.Run("completed tasks are deleted", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		task := newTask("a", time.Now().Add(-time.Second))
		require.NoError(t, s.CreateTask(ctx, task))
		_, err := s.ClaimTask(ctx, uuid.New(), []string{"a"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.CompleteTask(ctx, task.ID))

		_, ok := s.Task(task.ID)
		assert.False(t, ok)
	})

	t.Run("tasks survive reopen", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "queue.db")

		s, err := queue.OpenBoltStorage(path)
		require.NoError(t, err)
		task := newTask("a", time.Now().Add(-time.Second))
		require.NoError(t, s.CreateTask(ctx, task))
		require.NoError(t, s.Close())

		s, err = queue.OpenBoltStorage(path)
		require.NoError(t, err)
		defer s.Close()

		claimed, err := s.ClaimTask(ctx, uuid.New(), []string{"a"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, task.ID, claimed.ID)
	})

	t.Run("dead letters are listed", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		task := newTask("a", time.Now().Add(-time.Second))
		require.NoError(t, s.CreateTask(ctx, task))
		_, err := s.ClaimTask(ctx, uuid.New(), []string{"a"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.FailTask(ctx, task.ID, "nope"))
		require.NoError(t, s.MoveToDLQ(ctx, task.ID))

		dlq, err := s.DeadLetters()
		require.NoError(t, err)
		require.Len(t, dlq, 1)
		assert.Equal(t, task.ID, dlq[0].TaskID)
		assert.Equal(t, "nope", dlq[0].Error)
	})
}
