// Package app wires the service together: storage, queues, dispatchers,
// the command pipeline, the image processor, the maintenance scheduler and
// the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/chatbridge/core/health"
	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/core/queue"
	"github.com/dmitrymomot/chatbridge/core/server"
	"github.com/dmitrymomot/chatbridge/db/migrations"
	"github.com/dmitrymomot/chatbridge/integration/database/pg"
	"github.com/dmitrymomot/chatbridge/integration/database/redis"
	"github.com/dmitrymomot/chatbridge/integration/storage/s3"
	"github.com/dmitrymomot/chatbridge/internal/bus"
	"github.com/dmitrymomot/chatbridge/internal/chat"
	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/internal/commands"
	"github.com/dmitrymomot/chatbridge/internal/dedup"
	"github.com/dmitrymomot/chatbridge/internal/dispatch"
	"github.com/dmitrymomot/chatbridge/internal/httpapi"
	"github.com/dmitrymomot/chatbridge/internal/maintenance"
	"github.com/dmitrymomot/chatbridge/internal/media"
	"github.com/dmitrymomot/chatbridge/internal/payfast"
	"github.com/dmitrymomot/chatbridge/internal/pipeline"
	"github.com/dmitrymomot/chatbridge/internal/store"
	"github.com/dmitrymomot/chatbridge/internal/worker"
	"github.com/dmitrymomot/chatbridge/pkg/jwt"
	"github.com/dmitrymomot/chatbridge/pkg/ratelimiter"
	"github.com/dmitrymomot/chatbridge/pkg/webhook"
)

// drainTimeout bounds the wait for webhook publishes still in flight at
// shutdown.
const drainTimeout = 10 * time.Second

// App is the assembled service.
type App struct {
	cfg     Config
	log     *slog.Logger
	pool    *pgxpool.Pool
	redis   goredis.UniversalClient
	queue   *queue.Service
	api     *httpapi.Server
	server  *server.Server
	cleanup *maintenance.Runner
	runners []runner
	closers []io.Closer
}

// runner is an in-memory rate limit store that sweeps expired entries until
// ctx ends.
type runner interface {
	Run(ctx context.Context) func() error
}

// New connects to the dependencies and builds every component. Call Close
// when done, including after Run returns.
func New(ctx context.Context, cfg Config, log *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.pool, err = pg.Connect(ctx, cfg.DB); err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err = pg.Migrate(ctx, a.pool, cfg.DB, migrations.FS, log); err != nil {
			return nil, err
		}
	}
	st := store.New(a.pool)

	taskStorage, err := a.queueStorage(cfg.Queue)
	if err != nil {
		return nil, err
	}
	if a.queue, err = queue.NewServiceFromConfig(cfg.Queue, taskStorage,
		queue.WithServiceLogger(log.With(logger.Component("queue")))); err != nil {
		return nil, err
	}
	publisher := bus.NewPublisher(a.queue)

	checks := []health.CheckFunc{
		health.Check("postgres", pg.Healthcheck(a.pool)),
		health.Check("queue", a.queue.Healthcheck),
	}
	var guard dedup.Guard = dedup.Disabled{}
	if cfg.Redis.Enabled() {
		if a.redis, err = redis.Connect(ctx, cfg.Redis); err != nil {
			return nil, err
		}
		guard = dedup.NewRedis(a.redis, cfg.Dedup)
		checks = append(checks, health.Check("redis", redis.Healthcheck(a.redis)))
	} else {
		log.WarnContext(ctx, "REDIS_URL not set, inbound dedup disabled")
	}

	outbound, err := a.bucket(cfg.OutboundRate)
	if err != nil {
		return nil, fmt.Errorf("app: outbound rate: %w", err)
	}
	inbound, err := a.bucket(cfg.InboundRate)
	if err != nil {
		return nil, fmt.Errorf("app: inbound rate: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	graph := webhook.NewSender(
		webhook.WithHTTPClient(httpClient),
		webhook.WithLogger(log.With(logger.Component("graph"))),
		webhook.WithRateLimit(rate.Limit(cfg.WhatsApp.RateLimit), max(1, int(cfg.WhatsApp.RateLimit))))
	files := webhook.NewSender(
		webhook.WithHTTPClient(httpClient),
		webhook.WithLogger(log.With(logger.Component("media"))))
	bot := dispatch.NewTelegramBot(cfg.Telegram, httpClient)

	dispatchLog := log.With(logger.Component("dispatch"))
	telegram := dispatch.NewTelegram(bot,
		dispatch.WithLogger(dispatchLog),
		dispatch.WithThrottle(outbound),
		dispatch.WithMaxRetries(cfg.Telegram.MaxRetries))
	whatsapp := dispatch.NewWhatsApp(cfg.WhatsApp, graph,
		dispatch.WithLogger(dispatchLog),
		dispatch.WithThrottle(outbound),
		dispatch.WithMaxRetries(cfg.WhatsApp.MaxRetries))

	deps := commands.Deps{
		Users:     st,
		Catalog:   st,
		Sales:     st,
		Payments:  payfast.NewClient(cfg.PayFast, payfast.WithHTTPClient(httpClient), payfast.WithLogger(log)),
		Images:    st,
		ImageJobs: publisher,
		Driver:    cfg.Driver,
		Logger:    log.With(logger.Component("commands")),
	}
	if cfg.Driver.SigningKey != "" {
		tokens, err := jwt.NewFromString(cfg.Driver.SigningKey)
		if err != nil {
			return nil, err
		}
		deps.Tokens = tokens
	}
	registry, err := command.NewRegistry(commands.Table(deps),
		command.WithDisabled(cfg.Commands.Disabled...),
		command.WithLogger(log))
	if err != nil {
		return nil, err
	}
	pipe := pipeline.New(cfg.Pipeline, registry, st, st,
		pipeline.WithLogger(log.With(logger.Component("pipeline"))))

	var uploader media.Uploader
	if cfg.S3.Bucket != "" {
		if uploader, err = s3.New(ctx, cfg.S3, s3.WithHTTPClient(httpClient)); err != nil {
			return nil, err
		}
	} else {
		log.WarnContext(ctx, "S3_BUCKET not set, ID images will not be archived")
	}
	images := media.New(st, uploader,
		media.WithLogger(log.With(logger.Component("media"))),
		media.WithDownloader(chat.ChannelTelegram, media.NewTelegram(cfg.Telegram, bot, files)),
		media.WithDownloader(chat.ChannelWhatsApp, media.NewWhatsApp(cfg.WhatsApp, files)))

	handlers := worker.New(pipe, publisher, telegram, whatsapp, images,
		worker.WithLogger(log.With(logger.Component("worker"))))
	if err = handlers.Register(a.queue); err != nil {
		return nil, err
	}

	cleanupOpts := []maintenance.Option{maintenance.WithLogger(log.With(logger.Component("maintenance")))}
	if p, ok := taskStorage.(queue.Purger); ok {
		cleanupOpts = append(cleanupOpts, maintenance.WithQueuePurger(p, cfg.Queue.Retention))
	}
	a.cleanup = maintenance.New(cfg.Maintenance, st, cleanupOpts...)

	if cfg.WhatsApp.AppSecret == "" {
		log.WarnContext(ctx, "WHATSAPP_APP_SECRET not set, whatsapp webhooks will be rejected")
	}
	apiCfg := httpapi.NewConfig(cfg.Telegram, cfg.WhatsApp, cfg.PayFast)
	apiCfg.MaxBodyBytes = cfg.MaxBodyBytes
	a.api = httpapi.New(apiCfg, publisher, st,
		httpapi.WithLogger(log),
		httpapi.WithDedup(guard),
		httpapi.WithRateLimit(inbound),
		httpapi.WithSourceValidator(payfast.NewSourceValidator(cfg.PayFast.ValidHosts, nil)),
		httpapi.WithReadinessChecks(checks...))

	if a.server, err = server.NewFromConfig(cfg.Server, server.WithLogger(log)); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) queueStorage(cfg queue.Config) (queue.Storage, error) {
	switch cfg.Backend {
	case queue.BackendPostgres, "":
		return store.NewQueueStorage(a.pool), nil
	case queue.BackendBolt:
		bs, err := queue.OpenBoltStorage(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bs)
		return bs, nil
	case queue.BackendMemory:
		// queue.Service runs the storage's expiry loop itself.
		return queue.NewMemoryStorage(queue.WithMemoryStorageLogger(a.log)), nil
	default:
		return nil, fmt.Errorf("app: unknown queue backend %q", cfg.Backend)
	}
}

func (a *App) bucket(cfg ratelimiter.Config) (*ratelimiter.Bucket, error) {
	ms := ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreLogger(a.log))
	b, err := ratelimiter.NewBucket(ms, cfg)
	if err != nil {
		return nil, err
	}
	a.runners = append(a.runners, ms)
	return b, nil
}

// Run serves until ctx is cancelled or a component fails, then waits for
// in-flight webhook publishes.
func (a *App) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(a.server.Run(ctx, a.api.Handler()))
	eg.Go(a.cleanup.Run(ctx))
	for _, fn := range a.background(ctx) {
		eg.Go(fn)
	}
	err := eg.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if derr := a.api.Drain(drainCtx); derr != nil {
		a.log.Warn("webhook publishes still running at shutdown", logger.Error(derr))
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// background returns the queue workers and the store janitors.
func (a *App) background(ctx context.Context) []func() error {
	fns := []func() error{a.queue.Run(ctx)}
	for _, r := range a.runners {
		fns = append(fns, r.Run(ctx))
	}
	return fns
}

// Maintenance runs the nightly cleanup once.
func (a *App) Maintenance(ctx context.Context) error {
	return a.cleanup.RunOnce(ctx)
}

// Close releases connections. It is safe to call on a partially built App.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Error("close failed", logger.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// Migrate applies pending schema migrations and returns.
func Migrate(ctx context.Context, cfg Config, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()
	return pg.Migrate(ctx, pool, cfg.DB, migrations.FS, log)
}
