package maintenance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/internal/maintenance"
)

type call struct {
	name   string
	before time.Time
}

type recorder struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]error
}

func (r *recorder) record(name string, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{name, before})
	return 1, r.fail[name]
}

func (r *recorder) DeleteCompletedCampaigns(_ context.Context, before time.Time) (int64, error) {
	return r.record("campaigns", before)
}

func (r *recorder) DeactivateCampaignImages(_ context.Context, before time.Time) (int64, error) {
	return r.record("images", before)
}

func (r *recorder) PurgeCompleted(_ context.Context, before time.Time) (int64, error) {
	return r.record("queue", before)
}

var (
	now = time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	cfg = maintenance.Config{
		Schedule:          "0 2 * * *",
		CampaignRetention: 30 * 24 * time.Hour,
		ImageRetention:    90 * 24 * time.Hour,
	}
)

func TestRunOnce(t *testing.T) {
	t.Parallel()

	t.Run("applies each retention window", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		r := maintenance.New(cfg, rec,
			maintenance.WithQueuePurger(rec, 7*24*time.Hour),
			maintenance.WithClock(func() time.Time { return now }))

		require.NoError(t, r.RunOnce(context.Background()))
		assert.Equal(t, []call{
			{"campaigns", time.Date(2025, 5, 2, 2, 0, 0, 0, time.UTC)},
			{"images", time.Date(2025, 3, 3, 2, 0, 0, 0, time.UTC)},
			{"queue", time.Date(2025, 5, 25, 2, 0, 0, 0, time.UTC)},
		}, rec.calls)
	})

	t.Run("without purger", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		r := maintenance.New(cfg, rec, maintenance.WithClock(func() time.Time { return now }))
		require.NoError(t, r.RunOnce(context.Background()))
		assert.Len(t, rec.calls, 2)
	})

	t.Run("failure does not stop later steps", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		rec := &recorder{fail: map[string]error{"campaigns": boom}}
		r := maintenance.New(cfg, rec, maintenance.WithQueuePurger(rec, 7*24*time.Hour))

		err := r.RunOnce(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.ErrorContains(t, err, "campaigns")
		assert.Len(t, rec.calls, 3)
	})
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid schedule", func(t *testing.T) {
		t.Parallel()

		bad := cfg
		bad.Schedule = "every night"
		err := maintenance.New(bad, &recorder{}).Run(context.Background())()
		assert.ErrorContains(t, err, "invalid schedule")
	})

	t.Run("stops with context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- maintenance.New(cfg, &recorder{}).Run(ctx)() }()
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	})
}
