package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is used when no queue is specified.
const DefaultQueueName = "default"

// DefaultMaxRetries applies when neither the enqueuer nor the call sets one.
const DefaultMaxRetries int8 = 3

// TaskStatus tracks the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// AckMode decides when a claimed task counts as delivered.
type AckMode string

const (
	// AckAuto completes the task before the handler runs. Failures are not redelivered.
	AckAuto AckMode = "auto"
	// AckManual completes the task only after the handler succeeds.
	AckManual AckMode = "manual"
)

// ParseAckMode accepts "auto" or "manual", case-insensitively.
func ParseAckMode(s string) (AckMode, error) {
	switch m := AckMode(strings.ToLower(strings.TrimSpace(s))); m {
	case AckAuto, AckManual:
		return m, nil
	case "":
		return AckAuto, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAckMode, s)
	}
}

// Task is one unit of work in a named queue.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	TaskName    string     `json:"task_name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      TaskStatus `json:"status"`
	RetryCount  int8       `json:"retry_count"`
	MaxRetries  int8       `json:"max_retries"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Claimable reports whether a worker may take the task at now: either pending
// and due, or processing under an expired lock.
func (t *Task) Claimable(now time.Time) bool {
	switch t.Status {
	case TaskStatusPending:
		return !t.ScheduledAt.After(now)
	case TaskStatusProcessing:
		return t.LockedUntil != nil && t.LockedUntil.Before(now)
	default:
		return false
	}
}

// before orders tasks FIFO by schedule time, then creation time.
func (t *Task) before(o *Task) bool {
	if !t.ScheduledAt.Equal(o.ScheduledAt) {
		return t.ScheduledAt.Before(o.ScheduledAt)
	}
	return t.CreatedAt.Before(o.CreatedAt)
}

// TasksDlq is a task that exhausted its retries, kept for inspection and requeue.
type TasksDlq struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	Queue      string    `json:"queue"`
	TaskName   string    `json:"task_name"`
	Payload    []byte    `json:"payload,omitempty"`
	Error      string    `json:"error"`
	RetryCount int8      `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDeadLetter builds the DLQ record for task.
func NewDeadLetter(task *Task, now time.Time) *TasksDlq {
	d := &TasksDlq{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Queue:      task.Queue,
		TaskName:   task.TaskName,
		Payload:    task.Payload,
		RetryCount: task.RetryCount,
		FailedAt:   now,
		CreatedAt:  now,
	}
	if task.Error != nil {
		d.Error = *task.Error
	}
	return d
}

// RetryDelay is the linear backoff applied by storages when a task is
// rescheduled after a failure: 30s, 60s, 90s...
func RetryDelay(retryCount int8) time.Duration {
	return time.Duration(retryCount) * 30 * time.Second
}
