package middleware

import (
	"context"
	"time"

	"github.com/xraph/burst/delivery"
)

// Timeout bounds each delivery by d. A zero d disables the bound.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ delivery.Message, next Handler) (delivery.Receipt, error) {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
