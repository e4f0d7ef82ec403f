package app_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/core/config"
	"github.com/dmitrymomot/chatbridge/core/queue"
	"github.com/dmitrymomot/chatbridge/internal/app"
)

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config.Reset()
		t.Setenv("PG_CONN_URL", "postgres://localhost/chatbridge")

		var cfg app.Config
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "chatbridge", cfg.AppName)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, queue.BackendPostgres, cfg.Queue.Backend)
		assert.EqualValues(t, 1<<20, cfg.MaxBodyBytes)
		assert.Equal(t, "0 2 * * *", cfg.Maintenance.Schedule)
		assert.Equal(t, 20, cfg.OutboundRate.Capacity)
		assert.Equal(t, 3*time.Second, cfg.InboundRate.RefillInterval)
		assert.False(t, cfg.Redis.Enabled())
		assert.Empty(t, cfg.S3.Bucket)
	})

	t.Run("prefixed rate limits", func(t *testing.T) {
		config.Reset()
		t.Setenv("PG_CONN_URL", "postgres://localhost/chatbridge")
		t.Setenv("OUTBOUND_RATE_CAPACITY", "5")
		t.Setenv("INBOUND_RATE_CAPACITY", "50")
		t.Setenv("INBOUND_RATE_REFILL_INTERVAL", "1s")
		t.Setenv("COMMANDS_DISABLED", "checkout,driver")

		var cfg app.Config
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, 5, cfg.OutboundRate.Capacity)
		assert.Equal(t, 50, cfg.InboundRate.Capacity)
		assert.Equal(t, time.Second, cfg.InboundRate.RefillInterval)
		assert.Equal(t, []string{"checkout", "driver"}, cfg.Commands.Disabled)
	})

	t.Run("database url is required", func(t *testing.T) {
		config.Reset()
		t.Setenv("PG_CONN_URL", "unused")
		require.NoError(t, os.Unsetenv("PG_CONN_URL"))

		var cfg app.Config
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PG_CONN_URL")
	})
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("debug level", func(t *testing.T) {
		t.Parallel()
		log := app.NewLogger(app.Config{LogLevel: "debug", LogFormat: "text"})
		assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		t.Parallel()
		log := app.NewLogger(app.Config{LogLevel: "chatty"})
		assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
		assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
	})
}
