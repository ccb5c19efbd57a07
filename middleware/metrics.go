package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/burst/delivery"
)

// Metrics records per-delivery instruments on the global MeterProvider.
//
// Instruments:
//   - burst.delivery.duration (Float64Histogram, seconds)
//   - burst.delivery.sends (Int64Counter)
//
// both with attributes kind, action and status ("ok" or "error").
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(instrumentationName))
}

// MetricsWithMeter is Metrics with an explicit meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The API returns noop instruments on error.
	duration, _ := meter.Float64Histogram(
		"burst.delivery.duration",
		metric.WithDescription("Duration of a delivery including retries"),
		metric.WithUnit("s"),
	)
	sends, _ := meter.Int64Counter(
		"burst.delivery.sends",
		metric.WithDescription("Deliveries handed to the sender"),
		metric.WithUnit("{delivery}"),
	)

	return func(ctx context.Context, m delivery.Message, next Handler) (delivery.Receipt, error) {
		start := time.Now()
		rcpt, err := next(ctx)

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("kind", string(m.Kind)),
			attribute.String("action", string(m.Action)),
			attribute.String("status", status),
		)
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
		sends.Add(ctx, 1, attrs)
		return rcpt, err
	}
}
