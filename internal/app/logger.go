package app

import (
	"log/slog"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/middleware"
)

// NewLogger builds the process logger from cfg. An unknown level falls
// back to info.
func NewLogger(cfg Config) *slog.Logger {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := []logger.Option{
		logger.WithLevel(level),
		logger.WithAttr(slog.String("app", cfg.AppName), slog.String("env", cfg.Env)),
		logger.WithContextExtractors(middleware.RequestIDExtractor),
	}
	if cfg.LogFormat == "text" {
		opts = append(opts, logger.WithTextFormatter())
	} else {
		opts = append(opts, logger.WithJSONFormatter())
	}
	if cfg.LogFile != "" {
		opts = append(opts, logger.WithRotatingFile(cfg.LogFile, 100, 5, 28))
	}
	return logger.New(opts...)
}
