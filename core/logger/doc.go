// Package logger provides structured logging utilities built on Go's standard slog package.
//
// Loggers are built with New and functional options; attribute helpers keep field names
// consistent across the broker, the requester and the fulfiller node.
//
// # Basic Usage
//
//	log := logger.New(
//		logger.WithDevelopment("arbiter"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
//	log.Info("request registered",
//		logger.Component("broker"),
//		logger.RequestID(string(id)),
//		logger.Address("requester", string(caller)),
//	)
//
// # Context-Aware Logging
//
// Extractors pull attributes out of the context on every record:
//
//	log := logger.New(
//		logger.WithProduction("arbiter"),
//		logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
//			if id := event.EventID(ctx); id != "" {
//				return logger.CorrelationID(id), true
//			}
//			return slog.Attr{}, false
//		}),
//	)
//
// # Nil Safety
//
// Attribute helpers return an empty slog.Attr for nil or empty input, which slog drops,
// so log.Error("failed", logger.Error(err)) is safe without a nil check.
package logger
