package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/ext"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/run"
)

// Compile-time interface checks.
var (
	_ ext.Extension      = (*MetricsExtension)(nil)
	_ ext.PlanCompiled   = (*MetricsExtension)(nil)
	_ ext.RunStarted     = (*MetricsExtension)(nil)
	_ ext.EntryFired     = (*MetricsExtension)(nil)
	_ ext.EntryDelivered = (*MetricsExtension)(nil)
	_ ext.EntryFailed    = (*MetricsExtension)(nil)
	_ ext.EntrySkipped   = (*MetricsExtension)(nil)
	_ ext.RunCompleted   = (*MetricsExtension)(nil)
	_ ext.ReplayFired    = (*MetricsExtension)(nil)
)

const instrumentationName = "github.com/xraph/burst/observability"

// MetricsExtension records system-wide lifecycle metrics. Register it as
// a Burst extension to track compiled plans, active runs, entry outcomes
// and replay fires.
//
// Instruments:
//   - burst.plan.compiled (Int64Counter)
//   - burst.plan.entries (Int64Histogram)
//   - burst.run.started (Int64Counter)
//   - burst.run.active (Int64UpDownCounter)
//   - burst.run.completed (Int64Counter, attribute state)
//   - burst.run.duration (Float64Histogram, seconds, attribute state)
//   - burst.entry.fired (Int64Counter, attribute kind)
//   - burst.entry.outcomes (Int64Counter, attributes kind and status)
//   - burst.replay.fired (Int64Counter, attribute replay)
type MetricsExtension struct {
	PlanCompiled metric.Int64Counter
	PlanEntries  metric.Int64Histogram
	RunStarted   metric.Int64Counter
	RunActive    metric.Int64UpDownCounter
	RunCompleted metric.Int64Counter
	RunDuration  metric.Float64Histogram
	EntryFired   metric.Int64Counter
	EntryOutcome metric.Int64Counter
	ReplayFired  metric.Int64Counter
}

// NewMetricsExtension uses the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(instrumentationName))
}

// NewMetricsExtensionWithMeter uses meter for every instrument.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// The API returns noop instruments on error.
	m := &MetricsExtension{}
	m.PlanCompiled, _ = meter.Int64Counter("burst.plan.compiled",
		metric.WithDescription("Plans compiled"), metric.WithUnit("{plan}"))
	m.PlanEntries, _ = meter.Int64Histogram("burst.plan.entries",
		metric.WithDescription("Dispatch entries per compiled plan"), metric.WithUnit("{entry}"))
	m.RunStarted, _ = meter.Int64Counter("burst.run.started",
		metric.WithDescription("Runs started"), metric.WithUnit("{run}"))
	m.RunActive, _ = meter.Int64UpDownCounter("burst.run.active",
		metric.WithDescription("Runs in progress"), metric.WithUnit("{run}"))
	m.RunCompleted, _ = meter.Int64Counter("burst.run.completed",
		metric.WithDescription("Runs finished"), metric.WithUnit("{run}"))
	m.RunDuration, _ = meter.Float64Histogram("burst.run.duration",
		metric.WithDescription("Wall-clock duration of a run"), metric.WithUnit("s"))
	m.EntryFired, _ = meter.Int64Counter("burst.entry.fired",
		metric.WithDescription("Entries whose scheduled time arrived"), metric.WithUnit("{entry}"))
	m.EntryOutcome, _ = meter.Int64Counter("burst.entry.outcomes",
		metric.WithDescription("Entry outcomes by status"), metric.WithUnit("{entry}"))
	m.ReplayFired, _ = meter.Int64Counter("burst.replay.fired",
		metric.WithDescription("Recurring replays started"), metric.WithUnit("{run}"))
	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Plan hooks ──────────────────────────────────────

// OnPlanCompiled implements ext.PlanCompiled.
func (m *MetricsExtension) OnPlanCompiled(ctx context.Context, p *plan.Plan) error {
	m.PlanCompiled.Add(ctx, 1)
	m.PlanEntries.Record(ctx, int64(p.Len()))
	return nil
}

// ── Run hooks ───────────────────────────────────────

// OnRunStarted implements ext.RunStarted.
func (m *MetricsExtension) OnRunStarted(ctx context.Context, _ *run.Report) error {
	m.RunStarted.Add(ctx, 1)
	m.RunActive.Add(ctx, 1)
	return nil
}

// OnRunCompleted implements ext.RunCompleted.
func (m *MetricsExtension) OnRunCompleted(ctx context.Context, r *run.Report) error {
	attrs := metric.WithAttributes(attribute.String("state", string(r.State)))
	m.RunActive.Add(ctx, -1)
	m.RunCompleted.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, r.Elapsed().Seconds(), attrs)
	return nil
}

// ── Entry hooks ─────────────────────────────────────

// OnEntryFired implements ext.EntryFired.
func (m *MetricsExtension) OnEntryFired(ctx context.Context, msg delivery.Message) error {
	m.EntryFired.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(msg.Kind))))
	return nil
}

// OnEntryDelivered implements ext.EntryDelivered.
func (m *MetricsExtension) OnEntryDelivered(ctx context.Context, o run.Outcome) error {
	m.outcome(ctx, o)
	return nil
}

// OnEntryFailed implements ext.EntryFailed.
func (m *MetricsExtension) OnEntryFailed(ctx context.Context, o run.Outcome, _ error) error {
	m.outcome(ctx, o)
	return nil
}

// OnEntrySkipped implements ext.EntrySkipped.
func (m *MetricsExtension) OnEntrySkipped(ctx context.Context, o run.Outcome, _ error) error {
	m.outcome(ctx, o)
	return nil
}

func (m *MetricsExtension) outcome(ctx context.Context, o run.Outcome) {
	m.EntryOutcome.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", o.Kind),
		attribute.String("status", string(o.Status)),
	))
}

// ── Replay hooks ────────────────────────────────────

// OnReplayFired implements ext.ReplayFired.
func (m *MetricsExtension) OnReplayFired(ctx context.Context, name string, _ id.RunID) error {
	m.ReplayFired.Add(ctx, 1, metric.WithAttributes(attribute.String("replay", name)))
	return nil
}
