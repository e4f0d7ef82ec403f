package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/core/queue"
)

type imagePayload struct {
	Path string `json:"path"`
}

func TestService(t *testing.T) {
	t.Parallel()

	t.Run("nil storage", func(t *testing.T) {
		t.Parallel()
		_, err := queue.NewService(nil)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
	})

	t.Run("run without consumers", func(t *testing.T) {
		t.Parallel()
		svc, err := queue.NewService(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Run(context.Background())(), queue.ErrNoHandlers)
	})

	t.Run("consume requires queue name", func(t *testing.T) {
		t.Parallel()
		svc, err := queue.NewService(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Consume(""), queue.ErrEmptyQueueName)
	})

	t.Run("routes tasks to the worker of their queue", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		svc, err := queue.NewService(storage,
			queue.WithWorkerOptions(queue.WithPullInterval(5*time.Millisecond)),
			queue.WithServiceAckMode(queue.AckManual),
		)
		require.NoError(t, err)

		var messages, images atomic.Int32
		require.NoError(t, svc.Consume("outbound", queue.NewTaskHandler(func(context.Context, testPayload) error {
			messages.Add(1)
			return nil
		})))
		require.NoError(t, svc.Consume("images", queue.NewTaskHandler(func(_ context.Context, p imagePayload) error {
			if p.Path == "" {
				return errors.New("empty path")
			}
			images.Add(1)
			return nil
		})))

		w, ok := svc.Worker("images")
		require.True(t, ok)
		assert.Equal(t, []string{"images"}, w.Queues())
		assert.Equal(t, queue.AckManual, w.AckMode())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Run(ctx)() }()

		require.NoError(t, svc.Enqueue(ctx, testPayload{Message: "a"}, queue.WithQueue("outbound")))
		require.NoError(t, svc.Enqueue(ctx, testPayload{Message: "b"}, queue.WithQueue("outbound")))
		require.NoError(t, svc.Enqueue(ctx, imagePayload{Path: "x.jpg"}, queue.WithQueue("images")))

		require.Eventually(t, func() bool {
			return messages.Load() == 2 && images.Load() == 1
		}, 2*time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool {
			return svc.Healthcheck(ctx) == nil
		}, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("service did not stop")
		}
		assert.Error(t, svc.Healthcheck(context.Background()))
	})

	t.Run("config wires ack mode and retries", func(t *testing.T) {
		t.Parallel()

		cfg := queue.DefaultConfig()
		cfg.AckMode = queue.AckManual
		cfg.MaxRetries = 1

		storage := queue.NewMemoryStorage()
		svc, err := queue.NewServiceFromConfig(cfg, storage)
		require.NoError(t, err)
		require.NoError(t, svc.Consume("outbound", queue.NewTaskHandler(func(context.Context, testPayload) error {
			return nil
		})))

		w, ok := svc.Worker("outbound")
		require.True(t, ok)
		assert.Equal(t, queue.AckManual, w.AckMode())

		require.NoError(t, svc.Enqueue(context.Background(), testPayload{}, queue.WithQueue("outbound")))
		tasks := storage.Tasks("outbound")
		require.Len(t, tasks, 1)
		assert.Equal(t, int8(1), tasks[0].MaxRetries)
	})
}
