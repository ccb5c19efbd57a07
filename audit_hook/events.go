package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event. Run completion maps to
// run.completed or run.aborted depending on the final state.
const (
	ActionPlanCompiled   = "plan.compiled"
	ActionRunStarted     = "run.started"
	ActionRunCompleted   = "run.completed"
	ActionRunAborted     = "run.aborted"
	ActionEntryDelivered = "entry.delivered"
	ActionEntryFailed    = "entry.failed"
	ActionEntrySkipped   = "entry.skipped"
	ActionReplayFired    = "replay.fired"
)

// Audit event categories group related actions.
const (
	CategoryPlan   = "burst.plan"
	CategoryRun    = "burst.run"
	CategoryEntry  = "burst.entry"
	CategoryReplay = "burst.replay"
)

// Resource types used as the Resource field in audit events.
const (
	ResourcePlan     = "plan"
	ResourceRun      = "run"
	ResourceDelivery = "delivery"
	ResourceReplay   = "replay"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionPlanCompiled,
		ActionRunStarted,
		ActionRunCompleted,
		ActionRunAborted,
		ActionEntryDelivered,
		ActionEntryFailed,
		ActionEntrySkipped,
		ActionReplayFired,
	}
}
