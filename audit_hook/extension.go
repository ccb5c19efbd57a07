package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/xraph/burst/ext"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/run"
)

// Compile-time interface checks.
var (
	_ ext.Extension      = (*Extension)(nil)
	_ ext.PlanCompiled   = (*Extension)(nil)
	_ ext.RunStarted     = (*Extension)(nil)
	_ ext.RunCompleted   = (*Extension)(nil)
	_ ext.EntryDelivered = (*Extension)(nil)
	_ ext.EntryFailed    = (*Extension)(nil)
	_ ext.EntrySkipped   = (*Extension)(nil)
	_ ext.ReplayFired    = (*Extension)(nil)
)

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail record.
type AuditEvent struct {
	Time time.Time `json:"time"`

	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges burst lifecycle events to an audit trail.
type Extension struct {
	recorder    Recorder
	actions     []string // nil records every action
	minSeverity int
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Plan hooks ──────────────────────────────────────

// OnPlanCompiled implements ext.PlanCompiled.
func (e *Extension) OnPlanCompiled(ctx context.Context, p *plan.Plan) error {
	flagged := make([]int, 0)
	for _, t := range p.Flagged() {
		flagged = append(flagged, t.Index)
	}
	return e.record(ctx, ActionPlanCompiled, SeverityInfo, OutcomeSuccess,
		ResourcePlan, p.ID().String(), CategoryPlan, nil,
		"templates", len(p.Templates()),
		"entries", p.Len(),
		"span_seconds", p.Span().Seconds(),
		"flagged", flagged,
	)
}

// ── Run hooks ───────────────────────────────────────

// OnRunStarted implements ext.RunStarted.
func (e *Extension) OnRunStarted(ctx context.Context, r *run.Report) error {
	return e.record(ctx, ActionRunStarted, SeverityInfo, OutcomeSuccess,
		ResourceRun, r.RunID.String(), CategoryRun, nil,
		"plan_id", r.PlanID.String(),
		"scheduled", r.Totals.Scheduled,
	)
}

// OnRunCompleted implements ext.RunCompleted.
func (e *Extension) OnRunCompleted(ctx context.Context, r *run.Report) error {
	action, severity, outcome := ActionRunCompleted, SeverityInfo, OutcomeSuccess
	if r.State == run.StateAborted {
		action, severity, outcome = ActionRunAborted, SeverityWarning, OutcomeFailure
	} else if r.Totals.Failed > 0 {
		outcome = OutcomeFailure
	}
	return e.record(ctx, action, severity, outcome,
		ResourceRun, r.RunID.String(), CategoryRun, nil,
		"plan_id", r.PlanID.String(),
		"fired", r.Totals.Fired,
		"delivered", r.Totals.Delivered,
		"failed", r.Totals.Failed,
		"skipped", r.Totals.Skipped,
		"elapsed_ms", r.Elapsed().Milliseconds(),
	)
}

// ── Entry hooks ─────────────────────────────────────

// OnEntryDelivered implements ext.EntryDelivered.
func (e *Extension) OnEntryDelivered(ctx context.Context, o run.Outcome) error {
	return e.recordEntry(ctx, ActionEntryDelivered, SeverityInfo, OutcomeSuccess, o, nil)
}

// OnEntryFailed implements ext.EntryFailed.
func (e *Extension) OnEntryFailed(ctx context.Context, o run.Outcome, err error) error {
	return e.recordEntry(ctx, ActionEntryFailed, SeverityCritical, OutcomeFailure, o, err)
}

// OnEntrySkipped implements ext.EntrySkipped.
func (e *Extension) OnEntrySkipped(ctx context.Context, o run.Outcome, err error) error {
	return e.recordEntry(ctx, ActionEntrySkipped, SeverityWarning, OutcomeFailure, o, err)
}

func (e *Extension) recordEntry(ctx context.Context, action, severity, outcome string, o run.Outcome, err error) error {
	return e.record(ctx, action, severity, outcome,
		ResourceDelivery, o.DeliveryID.String(), CategoryEntry, err,
		"run_id", o.RunID.String(),
		"template", o.Template,
		"attempt", o.Attempt,
		"kind", o.Kind,
		"summary", o.Summary,
		"offset_seconds", o.Offset.Seconds(),
		"status_code", o.Receipt.StatusCode,
		"elapsed_ms", o.Elapsed.Milliseconds(),
	)
}

// ── Replay hooks ────────────────────────────────────

// OnReplayFired implements ext.ReplayFired.
func (e *Extension) OnReplayFired(ctx context.Context, name string, runID id.RunID) error {
	return e.record(ctx, ActionReplayFired, SeverityInfo, OutcomeSuccess,
		ResourceReplay, name, CategoryReplay, nil,
		"run_id", runID.String(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action and severity pass
// the configured filters.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.actions != nil && !slices.Contains(e.actions, action) {
		return nil
	}
	if severityRank(severity) < e.minSeverity {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Time:       e.now().UTC(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
