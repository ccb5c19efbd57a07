package ext

import (
	"context"
	"log/slog"

	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/run"
)

// entry pairs a hook with the extension name captured at registration.
type entry[H any] struct {
	name string
	hook H
}

// hooks caches the extensions implementing H.
type hooks[H any] []entry[H]

func (hs *hooks[H]) add(name string, e Extension) {
	if h, ok := e.(H); ok {
		*hs = append(*hs, entry[H]{name, h})
	}
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. Extensions are type-cached at registration so each emit only
// visits the extensions implementing that hook.
//
// Registration must complete before events are emitted.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	planCompiled   hooks[PlanCompiled]
	runStarted     hooks[RunStarted]
	entryFired     hooks[EntryFired]
	entryDelivered hooks[EntryDelivered]
	entryFailed    hooks[EntryFailed]
	entrySkipped   hooks[EntrySkipped]
	runCompleted   hooks[RunCompleted]
	replayFired    hooks[ReplayFired]
	shutdown       hooks[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension. Extensions are notified in registration
// order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	r.planCompiled.add(name, e)
	r.runStarted.add(name, e)
	r.entryFired.add(name, e)
	r.entryDelivered.add(name, e)
	r.entryFailed.add(name, e)
	r.entrySkipped.add(name, e)
	r.runCompleted.add(name, e)
	r.replayFired.add(name, e)
	r.shutdown.add(name, e)
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitPlanCompiled notifies PlanCompiled hooks.
func (r *Registry) EmitPlanCompiled(ctx context.Context, p *plan.Plan) {
	for _, e := range r.planCompiled {
		if err := e.hook.OnPlanCompiled(ctx, p); err != nil {
			r.logHookError("OnPlanCompiled", e.name, err)
		}
	}
}

// EmitRunStarted notifies RunStarted hooks.
func (r *Registry) EmitRunStarted(ctx context.Context, rep *run.Report) {
	for _, e := range r.runStarted {
		if err := e.hook.OnRunStarted(ctx, rep); err != nil {
			r.logHookError("OnRunStarted", e.name, err)
		}
	}
}

// EmitEntryFired notifies EntryFired hooks.
func (r *Registry) EmitEntryFired(ctx context.Context, m delivery.Message) {
	for _, e := range r.entryFired {
		if err := e.hook.OnEntryFired(ctx, m); err != nil {
			r.logHookError("OnEntryFired", e.name, err)
		}
	}
}

// EmitEntryDelivered notifies EntryDelivered hooks.
func (r *Registry) EmitEntryDelivered(ctx context.Context, o run.Outcome) {
	for _, e := range r.entryDelivered {
		if err := e.hook.OnEntryDelivered(ctx, o); err != nil {
			r.logHookError("OnEntryDelivered", e.name, err)
		}
	}
}

// EmitEntryFailed notifies EntryFailed hooks.
func (r *Registry) EmitEntryFailed(ctx context.Context, o run.Outcome, sendErr error) {
	for _, e := range r.entryFailed {
		if err := e.hook.OnEntryFailed(ctx, o, sendErr); err != nil {
			r.logHookError("OnEntryFailed", e.name, err)
		}
	}
}

// EmitEntrySkipped notifies EntrySkipped hooks.
func (r *Registry) EmitEntrySkipped(ctx context.Context, o run.Outcome, reason error) {
	for _, e := range r.entrySkipped {
		if err := e.hook.OnEntrySkipped(ctx, o, reason); err != nil {
			r.logHookError("OnEntrySkipped", e.name, err)
		}
	}
}

// EmitRunCompleted notifies RunCompleted hooks.
func (r *Registry) EmitRunCompleted(ctx context.Context, rep *run.Report) {
	for _, e := range r.runCompleted {
		if err := e.hook.OnRunCompleted(ctx, rep); err != nil {
			r.logHookError("OnRunCompleted", e.name, err)
		}
	}
}

// EmitReplayFired notifies ReplayFired hooks.
func (r *Registry) EmitReplayFired(ctx context.Context, name string, runID id.RunID) {
	for _, e := range r.replayFired {
		if err := e.hook.OnReplayFired(ctx, name, runID); err != nil {
			r.logHookError("OnReplayFired", e.name, err)
		}
	}
}

// EmitShutdown notifies Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a hook failure. Hook errors never reach the caller.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
