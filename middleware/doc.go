// Package middleware provides composable wrappers around a delivery.
//
// A [Middleware] wraps the call that hands one message to a sender.
// Middleware are composed with [Chain] and applied right-to-left: the
// first middleware in the list is the outermost wrapper. [Wrap] turns a
// chain and a sender into a new sender.
//
//	sender = middleware.Wrap(pd,
//	    middleware.Logging(logger),
//	    middleware.Recover(logger),
//	    middleware.Timeout(10*time.Second),
//	)
//
// Built in: [Logging], [Recover], [Timeout], [Tracing] and [Metrics].
package middleware
