package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/chatbridge/core/logger"
)

// MemoryStorage implements Storage in process memory. It is not durable and
// is meant for tests and local runs without PostgreSQL.
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	dlq   map[uuid.UUID]*TasksDlq

	byStatus map[TaskStatus][]uuid.UUID

	lockCheckInterval time.Duration
	logger            *slog.Logger

	cancel            context.CancelFunc
	expiredLocksFreed atomic.Int64
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithLockCheckInterval sets how often expired locks are released.
func WithLockCheckInterval(interval time.Duration) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if interval > 0 {
			ms.lockCheckInterval = interval
		}
	}
}

// WithMemoryStorageLogger sets the logger.
func WithMemoryStorageLogger(l *slog.Logger) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if l != nil {
			ms.logger = l
		}
	}
}

// NewMemoryStorage creates an empty storage. Run the lock expiration loop
// with Run or Start when tasks may be abandoned by crashed handlers.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		tasks:             make(map[uuid.UUID]*Task),
		dlq:               make(map[uuid.UUID]*TasksDlq),
		byStatus:          make(map[TaskStatus][]uuid.UUID),
		lockCheckInterval: time.Second,
		logger:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// CreateTask stores a copy of task.
func (ms *MemoryStorage) CreateTask(_ context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	cp := *task
	ms.tasks[task.ID] = &cp
	ms.byStatus[task.Status] = append(ms.byStatus[task.Status], task.ID)
	return nil
}

// ClaimTask locks the oldest claimable task in one of queues. Tasks whose
// lock expired are claimable even before the expiration loop releases them.
func (ms *MemoryStorage) ClaimTask(_ context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Task
	candidates := slices.Concat(ms.byStatus[TaskStatusPending], ms.byStatus[TaskStatusProcessing])
	for _, id := range candidates {
		task := ms.tasks[id]
		if !slices.Contains(queues, task.Queue) || !task.Claimable(now) {
			continue
		}
		if best == nil || task.before(best) {
			best = task
		}
	}
	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID
	ms.setStatus(best, TaskStatusProcessing)

	cp := *best
	return &cp, nil
}

// CompleteTask marks a processing task completed.
func (ms *MemoryStorage) CompleteTask(_ context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processing(taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil
	ms.setStatus(task, TaskStatusCompleted)
	return nil
}

// FailTask records the error and reschedules the task while retries remain.
func (ms *MemoryStorage) FailTask(_ context.Context, taskID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processing(taskID)
	if err != nil {
		return err
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.RetryCount >= task.MaxRetries {
		ms.setStatus(task, TaskStatusFailed)
		return nil
	}

	task.ScheduledAt = time.Now().Add(RetryDelay(task.RetryCount))
	ms.setStatus(task, TaskStatusPending)
	return nil
}

// MoveToDLQ removes the task and records it in the dead-letter table.
func (ms *MemoryStorage) MoveToDLQ(_ context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, ok := ms.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	entry := NewDeadLetter(task, time.Now())
	ms.dlq[entry.ID] = entry
	ms.removeFromStatusIndex(taskID, task.Status)
	delete(ms.tasks, taskID)
	return nil
}

// ExtendLock pushes the lock expiry of a processing task.
func (ms *MemoryStorage) ExtendLock(_ context.Context, taskID uuid.UUID, duration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processing(taskID)
	if err != nil {
		return err
	}
	lockUntil := time.Now().Add(duration)
	task.LockedUntil = &lockUntil
	return nil
}

// PurgeCompleted deletes completed tasks processed before the cutoff.
func (ms *MemoryStorage) PurgeCompleted(_ context.Context, before time.Time) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var n int64
	for _, id := range slices.Clone(ms.byStatus[TaskStatusCompleted]) {
		task := ms.tasks[id]
		if task.ProcessedAt != nil && task.ProcessedAt.Before(before) {
			ms.removeFromStatusIndex(id, TaskStatusCompleted)
			delete(ms.tasks, id)
			n++
		}
	}
	return n, nil
}

// Task returns a copy of a stored task.
func (ms *MemoryStorage) Task(taskID uuid.UUID) (Task, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, ok := ms.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Tasks returns copies of every stored task in queue.
func (ms *MemoryStorage) Tasks(queue string) []Task {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []Task
	for _, task := range ms.tasks {
		if task.Queue == queue {
			out = append(out, *task)
		}
	}
	slices.SortFunc(out, func(a, b Task) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// DeadLetters returns copies of every dead-lettered task.
func (ms *MemoryStorage) DeadLetters() []TasksDlq {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]TasksDlq, 0, len(ms.dlq))
	for _, d := range ms.dlq {
		out = append(out, *d)
	}
	return out
}

func (ms *MemoryStorage) processing(taskID uuid.UUID) (*Task, error) {
	task, ok := ms.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	return task, nil
}

func (ms *MemoryStorage) setStatus(task *Task, status TaskStatus) {
	ms.removeFromStatusIndex(task.ID, task.Status)
	task.Status = status
	ms.byStatus[status] = append(ms.byStatus[status], task.ID)
}

func (ms *MemoryStorage) removeFromStatusIndex(taskID uuid.UUID, status TaskStatus) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == taskID
	})
}

// Start releases expired locks every lock check interval until ctx is done.
func (ms *MemoryStorage) Start(ctx context.Context) error {
	ms.mu.Lock()
	if ms.cancel != nil {
		ms.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, ms.cancel = context.WithCancel(ctx)
	ms.mu.Unlock()

	defer func() {
		ms.mu.Lock()
		ms.cancel = nil
		ms.mu.Unlock()
	}()

	ticker := time.NewTicker(ms.lockCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := ms.expireLocks(); n > 0 {
				ms.logger.DebugContext(ctx, "released expired task locks", slog.Int("count", n))
			}
		}
	}
}

// Run adapts Start to errgroup.
func (ms *MemoryStorage) Run(ctx context.Context) func() error {
	return func() error {
		err := ms.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// ExpiredLocksFreed reports how many locks the expiration loop released.
func (ms *MemoryStorage) ExpiredLocksFreed() int64 {
	return ms.expiredLocksFreed.Load()
}

func (ms *MemoryStorage) expireLocks() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	freed := 0
	for _, id := range slices.Clone(ms.byStatus[TaskStatusProcessing]) {
		task := ms.tasks[id]
		if task.LockedUntil != nil && task.LockedUntil.Before(now) {
			task.LockedUntil = nil
			task.LockedBy = nil
			ms.setStatus(task, TaskStatusPending)
			freed++
		}
	}
	ms.expiredLocksFreed.Add(int64(freed))
	return freed
}
