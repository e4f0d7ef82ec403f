package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	boltTasksBucket = []byte("tasks")
	boltDLQBucket   = []byte("tasks_dlq")
)

// BoltStorage is a durable single-node Storage backed by a bbolt file.
// Completed tasks are deleted on completion, so the file holds only
// pending, processing and failed work. Expired locks are reclaimed lazily
// by ClaimTask.
type BoltStorage struct {
	db *bolt.DB
}

// OpenBoltStorage opens or creates the database file at path.
func OpenBoltStorage(path string) (*BoltStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("queue: create bolt dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("queue: open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{boltTasksBucket, boltDLQBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("queue: init bolt buckets: %w", err)
	}

	return &BoltStorage{db: db}, nil
}

// Close closes the database file.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

// CreateTask stores a new task.
func (s *BoltStorage) CreateTask(_ context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltTasksBucket)
		if b.Get(task.ID[:]) != nil {
			return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
		}
		return putTask(b, task)
	})
}

// ClaimTask locks the oldest claimable task in one of queues.
func (s *BoltStorage) ClaimTask(_ context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	var claimed *Task
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltTasksBucket)
		now := time.Now()

		err := b.ForEach(func(_, v []byte) error {
			var t Task
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if !slices.Contains(queues, t.Queue) || !t.Claimable(now) {
				return nil
			}
			if claimed == nil || t.before(claimed) {
				claimed = &t
			}
			return nil
		})
		if err != nil {
			return err
		}
		if claimed == nil {
			return ErrNoTaskToClaim
		}

		lockUntil := now.Add(lockDuration)
		claimed.Status = TaskStatusProcessing
		claimed.LockedUntil = &lockUntil
		claimed.LockedBy = &workerID
		return putTask(b, claimed)
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CompleteTask deletes a processing task.
func (s *BoltStorage) CompleteTask(_ context.Context, taskID uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltTasksBucket)
		if _, err := getProcessing(b, taskID); err != nil {
			return err
		}
		return b.Delete(taskID[:])
	})
}

// FailTask records the error and reschedules the task while retries remain.
func (s *BoltStorage) FailTask(_ context.Context, taskID uuid.UUID, errorMsg string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltTasksBucket)
		t, err := getProcessing(b, taskID)
		if err != nil {
			return err
		}

		t.RetryCount++
		t.Error = &errorMsg
		t.LockedUntil = nil
		t.LockedBy = nil
		if t.RetryCount >= t.MaxRetries {
			t.Status = TaskStatusFailed
		} else {
			t.Status = TaskStatusPending
			t.ScheduledAt = time.Now().Add(RetryDelay(t.RetryCount))
		}
		return putTask(b, t)
	})
}

// MoveToDLQ moves a task into the dead-letter bucket.
func (s *BoltStorage) MoveToDLQ(_ context.Context, taskID uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltTasksBucket)
		t, err := getTask(b, taskID)
		if err != nil {
			return err
		}

		entry := NewDeadLetter(t, time.Now())
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := tx.Bucket(boltDLQBucket).Put(entry.ID[:], data); err != nil {
			return err
		}
		return b.Delete(taskID[:])
	})
}

// ExtendLock pushes the lock expiry of a processing task.
func (s *BoltStorage) ExtendLock(_ context.Context, taskID uuid.UUID, duration time.Duration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltTasksBucket)
		t, err := getProcessing(b, taskID)
		if err != nil {
			return err
		}
		lockUntil := time.Now().Add(duration)
		t.LockedUntil = &lockUntil
		return putTask(b, t)
	})
}

// PurgeCompleted is a no-op: completed tasks are deleted on completion.
func (s *BoltStorage) PurgeCompleted(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Task returns a stored task.
func (s *BoltStorage) Task(taskID uuid.UUID) (Task, bool) {
	var out Task
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		t, err := getTask(tx.Bucket(boltTasksBucket), taskID)
		if err != nil {
			return err
		}
		out, found = *t, true
		return nil
	})
	return out, found
}

// DeadLetters returns every dead-lettered task.
func (s *BoltStorage) DeadLetters() ([]TasksDlq, error) {
	var out []TasksDlq
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltDLQBucket).ForEach(func(_, v []byte) error {
			var d TasksDlq
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	return out, err
}

func putTask(b *bolt.Bucket, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return b.Put(t.ID[:], data)
}

func getTask(b *bolt.Bucket, id uuid.UUID) (*Task, error) {
	v := b.Get(id[:])
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	var t Task
	if err := json.Unmarshal(v, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func getProcessing(b *bolt.Bucket, id uuid.UUID) (*Task, error) {
	t, err := getTask(b, id)
	if err != nil {
		return nil, err
	}
	if t.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, id)
	}
	return t, nil
}
