package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/burst/delivery"
)

const instrumentationName = "github.com/xraph/burst"

// Tracing wraps each delivery in a span from the global TracerProvider.
// Without a configured provider the noop tracer makes this a pass-through.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(instrumentationName))
}

// TracingWithTracer is Tracing with an explicit tracer.
//
// Span attributes: burst.delivery.id, burst.run.id, burst.kind,
// burst.action, burst.template, burst.occurrence and, once known,
// burst.status_code.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, m delivery.Message, next Handler) (delivery.Receipt, error) {
		ctx, span := tracer.Start(ctx, "burst.delivery.send",
			trace.WithAttributes(
				attribute.String("burst.delivery.id", m.ID.String()),
				attribute.String("burst.run.id", m.RunID.String()),
				attribute.String("burst.kind", string(m.Kind)),
				attribute.String("burst.action", string(m.Action)),
				attribute.Int("burst.template", m.Template),
				attribute.Int("burst.occurrence", m.Occurrence),
			),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		defer span.End()

		rcpt, err := next(ctx)
		if rcpt.StatusCode != 0 {
			span.SetAttributes(attribute.Int("burst.status_code", rcpt.StatusCode))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return rcpt, err
	}
}
