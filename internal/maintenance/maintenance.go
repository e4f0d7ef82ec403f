// Package maintenance runs the nightly cleanup: expired broadcast
// campaigns, stale campaign images and completed queue tasks.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/core/queue"
)

// Config controls the schedule and retention windows.
type Config struct {
	Schedule          string        `env:"MAINTENANCE_SCHEDULE" envDefault:"0 2 * * *"`
	CampaignRetention time.Duration `env:"MAINTENANCE_CAMPAIGN_RETENTION" envDefault:"720h"`
	ImageRetention    time.Duration `env:"MAINTENANCE_IMAGE_RETENTION" envDefault:"2160h"`
}

// Store is the part of store.Store the cleanup uses.
type Store interface {
	DeleteCompletedCampaigns(ctx context.Context, before time.Time) (int64, error)
	DeactivateCampaignImages(ctx context.Context, before time.Time) (int64, error)
}

// Runner schedules and executes the cleanup.
type Runner struct {
	cfg       Config
	store     Store
	purger    queue.Purger
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

type Option func(*Runner)

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithQueuePurger enables purging of queue tasks completed more than
// retention ago.
func WithQueuePurger(p queue.Purger, retention time.Duration) Option {
	return func(r *Runner) {
		r.purger = p
		r.retention = retention
	}
}

func New(cfg Config, st Store, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, store: st, now: time.Now, log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce executes every cleanup step. A failing step does not stop the
// others; their errors are joined.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := r.now()
	now := start.UTC()
	var errs []error

	step := func(name string, retention time.Duration, fn func(context.Context, time.Time) (int64, error)) {
		n, err := fn(ctx, now.Add(-retention))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			r.log.ErrorContext(ctx, "maintenance step failed", slog.String("step", name), logger.Error(err))
			return
		}
		r.log.InfoContext(ctx, "maintenance step done", slog.String("step", name), slog.Int64("rows", n))
	}

	step("campaigns", r.cfg.CampaignRetention, r.store.DeleteCompletedCampaigns)
	step("campaign_images", r.cfg.ImageRetention, r.store.DeactivateCampaignImages)
	if r.purger != nil {
		step("queue_tasks", r.retention, r.purger.PurgeCompleted)
	}

	r.log.InfoContext(ctx, "maintenance finished", logger.Elapsed(start))
	return errors.Join(errs...)
}

// Run starts the scheduler and blocks until ctx is done. Runs in flight
// are awaited before it returns.
func (r *Runner) Run(ctx context.Context) func() error {
	return func() error {
		sched, err := cron.ParseStandard(r.cfg.Schedule)
		if err != nil {
			return fmt.Errorf("maintenance: invalid schedule %q: %w", r.cfg.Schedule, err)
		}

		c := cron.New(cron.WithLocation(time.UTC))
		c.Schedule(sched, cron.FuncJob(func() {
			// Errors are logged per step.
			_ = r.RunOnce(ctx)
		}))
		c.Start()
		r.log.InfoContext(ctx, "maintenance scheduler started",
			slog.String("schedule", r.cfg.Schedule),
			slog.Time("next", sched.Next(r.now().UTC())))

		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	}
}
