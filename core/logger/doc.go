// Package logger builds log/slog loggers for the service and provides
// attribute helpers that keep log keys consistent across packages.
//
//	log := logger.New(
//		logger.WithLevel(slog.LevelDebug),
//		logger.WithJSONFormatter(),
//		logger.WithAttr(slog.String("service", "chatbridge")),
//		logger.WithContextExtractors(middleware.RequestIDExtractor()),
//	)
//
//	log.InfoContext(ctx, "dispatch sent",
//		logger.Channel("telegram"),
//		logger.CorrelationID(env.CorrelationID),
//		logger.Error(err), // empty attr when err is nil
//	)
//
// WithRotatingFile writes to a size-rotated file through lumberjack in
// addition to the configured output.
package logger
