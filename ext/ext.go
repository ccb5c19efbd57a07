// Package ext defines the extension system for Burst.
// Extensions are notified of compilation and run lifecycle events and can
// react to them with metrics, streaming or audit logging.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"

	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/run"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// PlanCompiled is called after a schedule compiles into a plan.
type PlanCompiled interface {
	OnPlanCompiled(ctx context.Context, p *plan.Plan) error
}

// RunStarted is called when a run begins, before the first entry fires.
type RunStarted interface {
	OnRunStarted(ctx context.Context, r *run.Report) error
}

// EntryFired is called when an entry's payload is resolved and about to
// be handed to the sender.
type EntryFired interface {
	OnEntryFired(ctx context.Context, m delivery.Message) error
}

// EntryDelivered is called after the sender accepted an entry.
type EntryDelivered interface {
	OnEntryDelivered(ctx context.Context, o run.Outcome) error
}

// EntryFailed is called after the sender rejected an entry.
type EntryFailed interface {
	OnEntryFailed(ctx context.Context, o run.Outcome, err error) error
}

// EntrySkipped is called for an entry that never reached the sender.
type EntrySkipped interface {
	OnEntrySkipped(ctx context.Context, o run.Outcome, err error) error
}

// RunCompleted is called once every entry of a run has an outcome.
type RunCompleted interface {
	OnRunCompleted(ctx context.Context, r *run.Report) error
}

// ReplayFired is called when a recurring replay starts a run.
type ReplayFired interface {
	OnReplayFired(ctx context.Context, name string, runID id.RunID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
