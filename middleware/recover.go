package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/burst/delivery"
)

// Recover converts a panic in the sender into an error and logs the stack.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, m delivery.Message, next Handler) (rcpt delivery.Receipt, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("sender panicked",
					slog.String("delivery_id", m.ID.String()),
					slog.String("summary", m.Summary()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("panic in delivery %s: %v", m.ID, r)
			}
		}()
		return next(ctx)
	}
}
