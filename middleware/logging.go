package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/burst/delivery"
)

// Logging logs the start and outcome of each delivery.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, m delivery.Message, next Handler) (delivery.Receipt, error) {
		logger.Debug("delivery started",
			slog.String("delivery_id", m.ID.String()),
			slog.String("run_id", m.RunID.String()),
			slog.String("summary", m.Summary()),
			slog.String("attempt", m.Attempt),
		)

		start := time.Now()
		rcpt, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("delivery failed",
				slog.String("delivery_id", m.ID.String()),
				slog.String("summary", m.Summary()),
				slog.String("attempt", m.Attempt),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("delivery completed",
				slog.String("delivery_id", m.ID.String()),
				slog.String("summary", m.Summary()),
				slog.String("attempt", m.Attempt),
				slog.Int("status_code", rcpt.StatusCode),
				slog.Duration("elapsed", elapsed),
			)
		}
		return rcpt, err
	}
}
