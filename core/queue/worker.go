package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/chatbridge/core/logger"
)

// Worker claims tasks from its queues and runs the matching handler.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wake     chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex

	ackMode         AckMode
	pullInterval    time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	tasksProcessed atomic.Int64
	tasksFailed    atomic.Int64
	activeTasks    atomic.Int32
	saturatedSince atomic.Int64 // unix nanos; 0 while a slot is free
	overloadAfter  time.Duration
}

// WorkerStats is a snapshot of worker counters.
type WorkerStats struct {
	TasksProcessed int64
	TasksFailed    int64
	ActiveTasks    int32
	IsRunning      bool
}

// NewWorker creates a worker. Defaults: default queue, auto ack, one task at a time.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		ackMode:            AckAuto,
		pullInterval:       time.Second,
		lockTimeout:        5 * time.Minute,
		shutdownTimeout:    30 * time.Second,
		overloadAfter:      time.Minute,
		maxConcurrentTasks: 1,
		logger:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:            repo,
		handlers:        make(map[string]Handler),
		queues:          options.queues,
		workerID:        uuid.New(),
		sem:             make(chan struct{}, options.maxConcurrentTasks),
		wake:            make(chan struct{}, 1),
		ackMode:         options.ackMode,
		pullInterval:    options.pullInterval,
		lockTimeout:     options.lockTimeout,
		shutdownTimeout: options.shutdownTimeout,
		overloadAfter:   options.overloadAfter,
		logger:          options.logger,
	}, nil
}

// RegisterHandler registers a handler under its Name. Nil handlers are ignored.
func (w *Worker) RegisterHandler(handler Handler) {
	if handler == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[handler.Name()] = handler
}

// RegisterHandlers registers several handlers.
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	for _, h := range handlers {
		w.RegisterHandler(h)
	}
}

// Start processes tasks until ctx is cancelled or Stop is called.
// Handlers receive the worker's context: shutdown cancels running handlers.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	runCtx := w.ctx
	w.mu.Unlock()

	w.logger.InfoContext(runCtx, "worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.String("ack_mode", string(w.ackMode)),
		slog.Int("max_concurrent", cap(w.sem)))

	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case <-ticker.C:
			w.dispatch(runCtx)
		case <-w.wake:
			w.dispatch(runCtx)
		}
	}
}

// dispatch starts one pull if a slot is free.
func (w *Worker) dispatch(ctx context.Context) {
	select {
	case w.sem <- struct{}{}:
	default:
		return
	}

	w.mu.RLock()
	if w.cancel == nil {
		w.mu.RUnlock()
		<-w.sem
		return
	}
	w.wg.Add(1)
	w.mu.RUnlock()

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()

		claimed, err := w.pullAndProcess(ctx)
		if err != nil && !errors.Is(err, ErrHandlerNotFound) {
			w.logger.ErrorContext(ctx, "failed to process task",
				slog.String("worker_id", w.workerID.String()),
				logger.Error(err))
		}
		if claimed {
			// Queue may hold more work; pull again without waiting for the ticker.
			select {
			case w.wake <- struct{}{}:
			default:
			}
		}
	}()
}

// Stop cancels the worker and waits for running tasks up to the shutdown timeout.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrNotStarted
	}
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped", slog.String("worker_id", w.workerID.String()))
		return nil
	case <-time.After(w.shutdownTimeout):
		w.logger.Warn("worker shutdown timeout exceeded, some tasks may be abandoned",
			slog.String("worker_id", w.workerID.String()),
			slog.Duration("timeout", w.shutdownTimeout))
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, w.shutdownTimeout)
	}
}

// Run adapts the worker to errgroup: it blocks until ctx is done, then stops gracefully.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- w.Start(ctx) }()

		select {
		case <-ctx.Done():
			_ = w.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (w *Worker) pullAndProcess(ctx context.Context) (bool, error) {
	task, err := w.repo.ClaimTask(context.WithoutCancel(ctx), w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim task: %w", err)
	}
	if task == nil {
		return false, nil
	}

	w.logger.DebugContext(ctx, "claimed task",
		slog.String("worker_id", w.workerID.String()),
		logger.TaskID(task.ID.String()),
		slog.String("task_name", task.TaskName),
		logger.Queue(task.Queue))

	return true, w.processTask(ctx, task)
}

func (w *Worker) processTask(ctx context.Context, task *Task) error {
	start := time.Now()
	slots := int32(cap(w.sem))
	if w.activeTasks.Add(1) >= slots {
		w.saturatedSince.CompareAndSwap(0, time.Now().UnixNano())
	}
	defer func() {
		if w.activeTasks.Add(-1) < slots {
			w.saturatedSince.Store(0)
		}
	}()

	// Storage bookkeeping must survive shutdown of the run context.
	bookkeeping := context.WithoutCancel(ctx)

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()
	if !ok {
		return w.handleMissingHandler(bookkeeping, task)
	}

	if w.ackMode == AckAuto {
		if err := w.repo.CompleteTask(bookkeeping, task.ID); err != nil {
			return fmt.Errorf("failed to ack task %s: %w", task.ID, err)
		}
	}

	err := w.invoke(ctx, handler, task)
	duration := time.Since(start)

	switch {
	case err == nil && w.ackMode == AckAuto:
		w.tasksProcessed.Add(1)
		w.logTaskDone(ctx, task, duration)
		return nil
	case err == nil:
		return w.handleTaskSuccess(bookkeeping, task, duration)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Interrupted by shutdown. Manual mode leaves the lock to expire so the task is redelivered.
		w.logger.WarnContext(bookkeeping, "task interrupted by shutdown",
			logger.TaskID(task.ID.String()),
			slog.String("task_name", task.TaskName),
			slog.String("ack_mode", string(w.ackMode)))
		return nil
	case w.ackMode == AckAuto:
		w.tasksFailed.Add(1)
		w.logger.ErrorContext(bookkeeping, "task failed, already acknowledged and will not be redelivered",
			slog.String("worker_id", w.workerID.String()),
			logger.TaskID(task.ID.String()),
			slog.String("task_name", task.TaskName),
			logger.Queue(task.Queue),
			logger.Duration(duration),
			logger.Error(err))
		return nil
	default:
		return w.handleTaskFailure(bookkeeping, task, err, duration)
	}
}

func (w *Worker) invoke(ctx context.Context, h Handler, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			w.logger.ErrorContext(ctx, "handler panicked",
				logger.TaskID(task.ID.String()),
				slog.String("task_name", task.TaskName),
				slog.Any("panic", r))
		}
	}()
	return h.Handle(ctx, task.Payload)
}

// handleMissingHandler dead-letters the task: retrying cannot help until a handler is deployed.
func (w *Worker) handleMissingHandler(ctx context.Context, task *Task) error {
	w.tasksFailed.Add(1)

	w.logger.ErrorContext(ctx, "no handler registered for task",
		logger.TaskID(task.ID.String()),
		slog.String("task_name", task.TaskName),
		logger.Queue(task.Queue))

	if err := w.repo.FailTask(ctx, task.ID, "no handler registered for task: "+task.TaskName); err != nil {
		return fmt.Errorf("failed to mark task %s as failed: %w", task.ID, err)
	}
	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to move task %s to DLQ: %w", task.ID, err)
	}
	return ErrHandlerNotFound
}

func (w *Worker) handleTaskFailure(ctx context.Context, task *Task, execErr error, duration time.Duration) error {
	w.tasksFailed.Add(1)

	attempt := task.RetryCount + 1
	w.logger.ErrorContext(ctx, "task failed",
		logger.TaskID(task.ID.String()),
		slog.String("task_name", task.TaskName),
		logger.Queue(task.Queue),
		slog.Int("attempt", int(attempt)),
		slog.Int("max_retries", int(task.MaxRetries)),
		logger.Duration(duration),
		logger.Error(execErr))

	if err := w.repo.FailTask(ctx, task.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to update task %s status to failed: %w", task.ID, err)
	}

	if attempt >= task.MaxRetries {
		if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
			return fmt.Errorf("failed to move task %s to DLQ after max retries: %w", task.ID, err)
		}
		w.logger.WarnContext(ctx, "task moved to dead letter queue",
			logger.TaskID(task.ID.String()),
			slog.String("task_name", task.TaskName),
			logger.Queue(task.Queue))
	}
	return nil
}

func (w *Worker) handleTaskSuccess(ctx context.Context, task *Task, duration time.Duration) error {
	if err := w.repo.CompleteTask(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}
	w.tasksProcessed.Add(1)
	w.logTaskDone(ctx, task, duration)
	return nil
}

func (w *Worker) logTaskDone(ctx context.Context, task *Task, duration time.Duration) {
	w.logger.DebugContext(ctx, "task completed",
		logger.TaskID(task.ID.String()),
		slog.String("task_name", task.TaskName),
		logger.Queue(task.Queue),
		logger.Duration(duration))
}

// ExtendLockForTask extends the lock of a long-running task.
func (w *Worker) ExtendLockForTask(ctx context.Context, taskID uuid.UUID, extension time.Duration) error {
	return w.repo.ExtendLock(ctx, taskID, extension)
}

// Queues returns a copy of the queues this worker consumes.
func (w *Worker) Queues() []string {
	out := make([]string, len(w.queues))
	copy(out, w.queues)
	return out
}

// AckMode reports the acknowledgement mode.
func (w *Worker) AckMode() AckMode { return w.ackMode }

// Stats returns current counters.
func (w *Worker) Stats() WorkerStats {
	w.mu.RLock()
	running := w.cancel != nil
	w.mu.RUnlock()

	return WorkerStats{
		TasksProcessed: w.tasksProcessed.Load(),
		TasksFailed:    w.tasksFailed.Load(),
		ActiveTasks:    w.activeTasks.Load(),
		IsRunning:      running,
	}
}

// Healthcheck fails when the worker is stopped, or when every slot has been
// busy for longer than the overload threshold.
func (w *Worker) Healthcheck(ctx context.Context) error {
	stats := w.Stats()
	if !stats.IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrWorkerNotRunning)
	}
	if since := w.saturatedSince.Load(); since != 0 {
		if busy := time.Since(time.Unix(0, since)); busy >= w.overloadAfter {
			return errors.Join(ErrHealthcheckFailed, ErrWorkerOverloaded,
				fmt.Errorf("%d/%d slots busy for %s", stats.ActiveTasks, cap(w.sem), busy.Round(time.Second)))
		}
	}
	return nil
}
