package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/core/queue"
)

type MockWorkerRepository struct {
	mock.Mock
}

func (m *MockWorkerRepository) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	args := m.Called(ctx, workerID, queues, lockDuration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Task), args.Error(1)
}

func (m *MockWorkerRepository) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	return m.Called(ctx, taskID).Error(0)
}

func (m *MockWorkerRepository) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	return m.Called(ctx, taskID, errorMsg).Error(0)
}

func (m *MockWorkerRepository) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	return m.Called(ctx, taskID).Error(0)
}

func (m *MockWorkerRepository) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	return m.Called(ctx, taskID, duration).Error(0)
}

type testPayload struct {
	Message string `json:"message"`
}

const testQueue = "test_queue"

func startWorker(t *testing.T, w *queue.Worker) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx)() }()

	require.Eventually(t, func() bool { return w.Stats().IsRunning }, time.Second, 5*time.Millisecond)

	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func enqueue(t *testing.T, storage queue.EnqueuerRepository, payload any, opts ...queue.EnqueueOption) queue.Task {
	t.Helper()

	var created queue.Task
	rec := recorder{EnqueuerRepository: storage, created: &created}
	enq, err := queue.NewEnqueuer(rec, queue.WithDefaultQueue(testQueue))
	require.NoError(t, err)
	require.NoError(t, enq.Enqueue(context.Background(), payload, opts...))
	return created
}

type recorder struct {
	queue.EnqueuerRepository
	created *queue.Task
}

func (r recorder) CreateTask(ctx context.Context, task *queue.Task) error {
	*r.created = *task
	return r.EnqueuerRepository.CreateTask(ctx, task)
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()

		w, err := queue.NewWorker(nil)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
		assert.Nil(t, w)
	})

	t.Run("defaults to auto ack", func(t *testing.T) {
		t.Parallel()

		w, err := queue.NewWorker(new(MockWorkerRepository))
		require.NoError(t, err)
		assert.Equal(t, queue.AckAuto, w.AckMode())
		assert.Equal(t, []string{queue.DefaultQueueName}, w.Queues())
	})

	t.Run("start without handlers", func(t *testing.T) {
		t.Parallel()

		w, err := queue.NewWorker(new(MockWorkerRepository))
		require.NoError(t, err)
		assert.ErrorIs(t, w.Start(context.Background()), queue.ErrNoHandlers)
	})
}

func TestWorker_AutoAck(t *testing.T) {
	t.Parallel()

	t.Run("acks before the handler runs", func(t *testing.T) {
		t.Parallel()

		repo := new(MockWorkerRepository)
		task := &queue.Task{ID: uuid.New(), Queue: testQueue, TaskName: "queue_test.testPayload", Payload: []byte(`{"message":"hi"}`), MaxRetries: 3}

		var acked atomic.Bool
		repo.On("ClaimTask", mock.Anything, mock.Anything, []string{testQueue}, mock.Anything).Return(task, nil).Once()
		repo.On("ClaimTask", mock.Anything, mock.Anything, []string{testQueue}, mock.Anything).Return(nil, queue.ErrNoTaskToClaim)
		repo.On("CompleteTask", mock.Anything, task.ID).Run(func(mock.Arguments) { acked.Store(true) }).Return(nil).Once()

		var ackedFirst atomic.Bool
		w, err := queue.NewWorker(repo, queue.WithQueues(testQueue), queue.WithPullInterval(10*time.Millisecond))
		require.NoError(t, err)
		w.RegisterHandler(queue.NewTaskHandler(func(_ context.Context, _ testPayload) error {
			ackedFirst.Store(acked.Load())
			return errors.New("boom")
		}))

		stop := startWorker(t, w)
		require.Eventually(t, func() bool { return w.Stats().TasksFailed == 1 }, time.Second, 5*time.Millisecond)
		stop()

		assert.True(t, ackedFirst.Load())
		repo.AssertNotCalled(t, "FailTask", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "MoveToDLQ", mock.Anything, mock.Anything)
	})

	t.Run("failed task is not redelivered", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		created := enqueue(t, storage, testPayload{Message: "x"})

		var calls atomic.Int32
		w, err := queue.NewWorker(storage, queue.WithQueues(testQueue), queue.WithPullInterval(5*time.Millisecond))
		require.NoError(t, err)
		w.RegisterHandler(queue.NewTaskHandler(func(context.Context, testPayload) error {
			calls.Add(1)
			return errors.New("boom")
		}))

		stop := startWorker(t, w)
		require.Eventually(t, func() bool { return w.Stats().TasksFailed == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		stop()

		assert.Equal(t, int32(1), calls.Load())
		task, ok := storage.Task(created.ID)
		require.True(t, ok)
		assert.Equal(t, queue.TaskStatusCompleted, task.Status)
		assert.Empty(t, storage.DeadLetters())
	})
}

func TestWorker_ManualAck(t *testing.T) {
	t.Parallel()

	newWorker := func(t *testing.T, storage *queue.MemoryStorage, h queue.Handler) *queue.Worker {
		t.Helper()
		w, err := queue.NewWorker(storage,
			queue.WithQueues(testQueue),
			queue.WithAckMode(queue.AckManual),
			queue.WithPullInterval(5*time.Millisecond),
		)
		require.NoError(t, err)
		w.RegisterHandler(h)
		return w
	}

	t.Run("success completes the task", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		created := enqueue(t, storage, testPayload{Message: "ok"})

		got := make(chan string, 1)
		w := newWorker(t, storage, queue.NewTaskHandler(func(_ context.Context, p testPayload) error {
			got <- p.Message
			return nil
		}))

		stop := startWorker(t, w)
		require.Eventually(t, func() bool { return w.Stats().TasksProcessed == 1 }, time.Second, 5*time.Millisecond)
		stop()

		assert.Equal(t, "ok", <-got)
		task, ok := storage.Task(created.ID)
		require.True(t, ok)
		assert.Equal(t, queue.TaskStatusCompleted, task.Status)
		assert.NotNil(t, task.ProcessedAt)
	})

	t.Run("failure with retries left reschedules", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		created := enqueue(t, storage, testPayload{}, queue.WithMaxRetries(3))

		w := newWorker(t, storage, queue.NewTaskHandler(func(context.Context, testPayload) error {
			return errors.New("temporary")
		}))

		stop := startWorker(t, w)
		require.Eventually(t, func() bool { return w.Stats().TasksFailed == 1 }, time.Second, 5*time.Millisecond)
		stop()

		task, ok := storage.Task(created.ID)
		require.True(t, ok)
		assert.Equal(t, queue.TaskStatusPending, task.Status)
		assert.Equal(t, int8(1), task.RetryCount)
		require.NotNil(t, task.Error)
		assert.Equal(t, "temporary", *task.Error)
		assert.True(t, task.ScheduledAt.After(time.Now()))
		assert.Empty(t, storage.DeadLetters())
	})

	t.Run("last attempt dead letters", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		created := enqueue(t, storage, testPayload{}, queue.WithMaxRetries(1))

		w := newWorker(t, storage, queue.NewTaskHandler(func(context.Context, testPayload) error {
			return errors.New("permanent")
		}))

		stop := startWorker(t, w)
		require.Eventually(t, func() bool { return len(storage.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)
		stop()

		dlq := storage.DeadLetters()[0]
		assert.Equal(t, created.ID, dlq.TaskID)
		assert.Equal(t, "permanent", dlq.Error)
		assert.Equal(t, testQueue, dlq.Queue)
		_, ok := storage.Task(created.ID)
		assert.False(t, ok)
	})

	t.Run("panic is treated as failure", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enqueue(t, storage, testPayload{}, queue.WithMaxRetries(1))

		w := newWorker(t, storage, queue.NewTaskHandler(func(context.Context, testPayload) error {
			panic("kaboom")
		}))

		stop := startWorker(t, w)
		require.Eventually(t, func() bool { return len(storage.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)
		stop()

		assert.Contains(t, storage.DeadLetters()[0].Error, "kaboom")
	})

	t.Run("shutdown leaves the task locked for redelivery", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		created := enqueue(t, storage, testPayload{})

		started := make(chan struct{})
		w := newWorker(t, storage, queue.NewTaskHandler(func(ctx context.Context, _ testPayload) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}))

		stop := startWorker(t, w)
		<-started
		stop()

		task, ok := storage.Task(created.ID)
		require.True(t, ok)
		assert.Equal(t, queue.TaskStatusProcessing, task.Status)
		assert.Zero(t, task.RetryCount)
		assert.Zero(t, w.Stats().TasksFailed)
	})
}

func TestWorker_MissingHandler(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	created := enqueue(t, storage, testPayload{}, queue.WithTaskName("unknown"))

	w, err := queue.NewWorker(storage, queue.WithQueues(testQueue), queue.WithPullInterval(5*time.Millisecond))
	require.NoError(t, err)
	w.RegisterHandler(queue.NewTaskHandler(func(context.Context, testPayload) error { return nil }))

	stop := startWorker(t, w)
	require.Eventually(t, func() bool { return len(storage.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)
	stop()

	dlq := storage.DeadLetters()[0]
	assert.Equal(t, created.ID, dlq.TaskID)
	assert.Contains(t, dlq.Error, "unknown")
}

func TestWorker_Healthcheck(t *testing.T) {
	t.Parallel()

	w, err := queue.NewWorker(queue.NewMemoryStorage(), queue.WithMaxConcurrentTasks(2))
	require.NoError(t, err)
	w.RegisterHandler(queue.NewTaskHandler(func(context.Context, testPayload) error { return nil }))

	err = w.Healthcheck(context.Background())
	assert.ErrorIs(t, err, queue.ErrWorkerNotRunning)

	stop := startWorker(t, w)
	defer stop()
	assert.NoError(t, w.Healthcheck(context.Background()))
}

func TestWorker_HealthcheckOverload(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	enqueue(t, storage, testPayload{Message: "slow"})

	release := make(chan struct{})
	var started atomic.Bool
	w, err := queue.NewWorker(storage,
		queue.WithQueues(testQueue),
		queue.WithPullInterval(5*time.Millisecond),
		queue.WithOverloadAfter(300*time.Millisecond))
	require.NoError(t, err)
	w.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, _ testPayload) error {
		started.Store(true)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))

	stop := startWorker(t, w)
	t.Cleanup(stop)

	require.Eventually(t, started.Load, time.Second, 5*time.Millisecond)
	assert.NoError(t, w.Healthcheck(context.Background()), "a briefly busy worker is healthy")

	require.Eventually(t, func() bool {
		return errors.Is(w.Healthcheck(context.Background()), queue.ErrWorkerOverloaded)
	}, 2*time.Second, 10*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		return w.Healthcheck(context.Background()) == nil
	}, 2*time.Second, 10*time.Millisecond)
}
