package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository persists new tasks.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// WorkerRepository is what a Worker needs from storage.
type WorkerRepository interface {
	// ClaimTask atomically locks the next claimable task in one of queues.
	// Returns ErrNoTaskToClaim when nothing is due.
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)
	CompleteTask(ctx context.Context, taskID uuid.UUID) error
	// FailTask records the error and increments the retry count. When retries
	// remain the task goes back to pending after RetryDelay.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error
	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error
	ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error
}

// Storage combines the repositories used by the Enqueuer and Workers.
type Storage interface {
	EnqueuerRepository
	WorkerRepository
}

// Purger deletes completed tasks older than a cutoff.
type Purger interface {
	PurgeCompleted(ctx context.Context, before time.Time) (int64, error)
}
