package middleware

import (
	"context"

	"github.com/xraph/burst/delivery"
)

// Handler is the terminal call that delivers the message.
type Handler func(ctx context.Context) (delivery.Receipt, error)

// Middleware wraps a Handler. It must call next unless it deliberately
// short-circuits the delivery.
type Middleware func(ctx context.Context, m delivery.Message, next Handler) (delivery.Receipt, error)

// Chain composes mws into a single Middleware. The first element is the
// outermost wrapper:
//
//	Chain(logging, recover) runs logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, m delivery.Message, next Handler) (delivery.Receipt, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw, inner := mws[i], h
			h = func(ctx context.Context) (delivery.Receipt, error) {
				return mw(ctx, m, inner)
			}
		}
		return h(ctx)
	}
}

// Wrap returns a sender that runs every delivery of s through mws.
func Wrap(s delivery.Sender, mws ...Middleware) delivery.Sender {
	if len(mws) == 0 {
		return s
	}
	chain := Chain(mws...)
	return delivery.Func(func(ctx context.Context, m delivery.Message) (delivery.Receipt, error) {
		return chain(ctx, m, func(ctx context.Context) (delivery.Receipt, error) {
			return s.Deliver(ctx, m)
		})
	})
}
