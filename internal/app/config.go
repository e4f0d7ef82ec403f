package app

import (
	"github.com/dmitrymomot/chatbridge/core/queue"
	"github.com/dmitrymomot/chatbridge/core/server"
	"github.com/dmitrymomot/chatbridge/integration/database/pg"
	"github.com/dmitrymomot/chatbridge/integration/database/redis"
	"github.com/dmitrymomot/chatbridge/integration/storage/s3"
	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/internal/commands"
	"github.com/dmitrymomot/chatbridge/internal/dedup"
	"github.com/dmitrymomot/chatbridge/internal/dispatch"
	"github.com/dmitrymomot/chatbridge/internal/maintenance"
	"github.com/dmitrymomot/chatbridge/internal/payfast"
	"github.com/dmitrymomot/chatbridge/internal/pipeline"
	"github.com/dmitrymomot/chatbridge/pkg/ratelimiter"
)

// Config is the whole service configuration, loaded from the environment.
type Config struct {
	AppName      string `env:"APP_NAME" envDefault:"chatbridge"`
	Env          string `env:"APP_ENV" envDefault:"development"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile      string `env:"LOG_FILE"`
	MaxBodyBytes int64  `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
	AutoMigrate  bool   `env:"PG_AUTO_MIGRATE" envDefault:"false"`

	Server      server.Config
	DB          pg.Config
	Redis       redis.Config
	Dedup       dedup.Config
	Queue       queue.Config
	Telegram    dispatch.TelegramConfig
	WhatsApp    dispatch.WhatsAppConfig
	PayFast     payfast.Config
	Pipeline    pipeline.Config
	Commands    command.Config
	Driver      commands.DriverConfig
	S3          s3.Config
	Maintenance maintenance.Config

	// OutboundRate throttles replies per recipient.
	OutboundRate ratelimiter.Config `envPrefix:"OUTBOUND_RATE_"`
	// InboundRate limits webhook requests per client address.
	InboundRate ratelimiter.Config `envPrefix:"INBOUND_RATE_"`
}
