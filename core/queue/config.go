package queue

import "time"

// Backend names accepted by Config.Backend.
const (
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

// Config holds worker, enqueuer and storage settings.
type Config struct {
	Backend            string        `env:"QUEUE_BACKEND" envDefault:"postgres"`
	BoltPath           string        `env:"QUEUE_BOLT_PATH" envDefault:"data/queue.db"`
	AckMode            AckMode       `env:"QUEUE_ACK_MODE" envDefault:"auto"`
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"250ms"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"4"`
	OverloadAfter      time.Duration `env:"QUEUE_OVERLOAD_AFTER" envDefault:"1m"`
	MaxRetries         int8          `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	Retention          time.Duration `env:"QUEUE_RETENTION" envDefault:"168h"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendPostgres,
		BoltPath:           "data/queue.db",
		AckMode:            AckAuto,
		PollInterval:       250 * time.Millisecond,
		LockTimeout:        5 * time.Minute,
		ShutdownTimeout:    30 * time.Second,
		MaxConcurrentTasks: 4,
		OverloadAfter:      time.Minute,
		MaxRetries:         DefaultMaxRetries,
		Retention:          7 * 24 * time.Hour,
	}
}

// WorkerOptions translates the config into worker options.
func (c Config) WorkerOptions() []WorkerOption {
	return []WorkerOption{
		WithAckMode(c.AckMode),
		WithPullInterval(c.PollInterval),
		WithLockTimeout(c.LockTimeout),
		WithShutdownTimeout(c.ShutdownTimeout),
		WithMaxConcurrentTasks(c.MaxConcurrentTasks),
		WithOverloadAfter(c.OverloadAfter),
	}
}
