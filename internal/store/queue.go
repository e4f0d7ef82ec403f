package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/chatbridge/core/queue"
	"github.com/dmitrymomot/chatbridge/integration/database/pg"
)

const taskColumns = `id, queue, task_name, payload, status, retry_count, max_retries,
	scheduled_at, locked_until, locked_by, processed_at, error, created_at`

// QueueStorage is the durable queue backend. Claims use FOR UPDATE SKIP
// LOCKED so several instances can consume the same queues.
type QueueStorage struct {
	db  DB
	now func() time.Time
}

var (
	_ queue.Storage = (*QueueStorage)(nil)
	_ queue.Purger  = (*QueueStorage)(nil)
)

func NewQueueStorage(db DB) *QueueStorage {
	return &QueueStorage{db: db, now: time.Now}
}

func scanTask(row pgx.Row) (*queue.Task, error) {
	var (
		t      queue.Task
		status string
	)
	if err := row.Scan(&t.ID, &t.Queue, &t.TaskName, &t.Payload, &status, &t.RetryCount, &t.MaxRetries,
		&t.ScheduledAt, &t.LockedUntil, &t.LockedBy, &t.ProcessedAt, &t.Error, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = queue.TaskStatus(status)
	return &t, nil
}

// CreateTask inserts task, inside the transaction on ctx when there is one.
func (s *QueueStorage) CreateTask(ctx context.Context, task *queue.Task) error {
	if task == nil {
		return queue.ErrPayloadNil
	}
	_, err := pg.Conn(ctx, s.db).Exec(ctx, `INSERT INTO queue_tasks
			(id, queue, task_name, payload, status, retry_count, max_retries, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.Queue, task.TaskName, task.Payload, string(task.Status),
		task.RetryCount, task.MaxRetries, task.ScheduledAt, task.CreatedAt)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", queue.ErrTaskExists, task.ID)
	}
	return err
}

func (s *QueueStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	now := s.now()
	t, err := scanTask(s.db.QueryRow(ctx, `UPDATE queue_tasks SET
			status = 'processing', locked_until = $3, locked_by = $2
		WHERE id = (
			SELECT id FROM queue_tasks
			WHERE queue = ANY($1)
			  AND ((status = 'pending' AND scheduled_at <= $4)
			    OR (status = 'processing' AND locked_until < $4))
			ORDER BY scheduled_at, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1)
		RETURNING `+taskColumns,
		queues, workerID, now.Add(lockDuration), now))
	if pg.IsNotFoundError(err) {
		return nil, queue.ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return t, nil
}

func (s *QueueStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	return s.updateProcessing(ctx, taskID, `UPDATE queue_tasks SET
			status = 'completed', processed_at = $2, locked_until = NULL, locked_by = NULL
		WHERE id = $1 AND status = 'processing'`, taskID, s.now())
}

// FailTask records the error. The task is rescheduled after
// queue.RetryDelay while retries remain, otherwise it is marked failed.
func (s *QueueStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	now := s.now()
	return s.updateProcessing(ctx, taskID, `UPDATE queue_tasks SET
			retry_count = retry_count + 1,
			error = $2,
			locked_until = NULL,
			locked_by = NULL,
			status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
			scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at
				ELSE $3::timestamptz + make_interval(secs => (retry_count + 1) * $4::int) END
		WHERE id = $1 AND status = 'processing'`,
		taskID, errorMsg, now, int(queue.RetryDelay(1)/time.Second))
}

// MoveToDLQ copies the task into the dead-letter table and deletes it.
func (s *QueueStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTask(tx.QueryRow(ctx, `DELETE FROM queue_tasks WHERE id = $1 RETURNING `+taskColumns, taskID))
	if pg.IsNotFoundError(err) {
		return fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return err
	}

	d := queue.NewDeadLetter(t, s.now())
	if _, err := tx.Exec(ctx, `INSERT INTO queue_dead_letters
			(id, task_id, queue, task_name, payload, error, retry_count, failed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.TaskID, d.Queue, d.TaskName, d.Payload, d.Error, d.RetryCount, d.FailedAt, d.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *QueueStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	return s.updateProcessing(ctx, taskID,
		`UPDATE queue_tasks SET locked_until = $2 WHERE id = $1 AND status = 'processing'`,
		taskID, s.now().Add(duration))
}

// PurgeCompleted deletes completed tasks processed before the cutoff.
func (s *QueueStorage) PurgeCompleted(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM queue_tasks WHERE status = 'completed' AND processed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge completed tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeadLetters lists dead-lettered tasks of a queue, newest first.
func (s *QueueStorage) DeadLetters(ctx context.Context, queueName string, limit int) ([]queue.TasksDlq, error) {
	rows, err := s.db.Query(ctx, `SELECT id, task_id, queue, task_name, payload, error, retry_count, failed_at, created_at
		FROM queue_dead_letters WHERE queue = $1 ORDER BY failed_at DESC LIMIT $2`, queueName, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (queue.TasksDlq, error) {
		var d queue.TasksDlq
		err := row.Scan(&d.ID, &d.TaskID, &d.Queue, &d.TaskName, &d.Payload, &d.Error, &d.RetryCount, &d.FailedAt, &d.CreatedAt)
		return d, err
	})
}

// updateProcessing distinguishes a missing task from one that is not
// processing when the update matched nothing.
func (s *QueueStorage) updateProcessing(ctx context.Context, taskID uuid.UUID, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM queue_tasks WHERE id = $1)`, taskID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
	}
	return fmt.Errorf("%w: %s", queue.ErrTaskNotProcessing, taskID)
}

// Pending counts tasks of a queue that are waiting or running.
func (s *QueueStorage) Pending(ctx context.Context, queueName string) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM queue_tasks WHERE queue = $1 AND status IN ('pending', 'processing')`, queueName).Scan(&n)
	return n, err
}
