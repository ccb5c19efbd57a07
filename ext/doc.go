// Package ext defines the extension system for Burst.
//
// Extensions are notified of lifecycle events and can react to them by
// recording metrics, streaming progress to clients or writing audit logs.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type Counter struct{ failed atomic.Int64 }
//
//	func (c *Counter) Name() string { return "counter" }
//
//	func (c *Counter) OnEntryFailed(ctx context.Context, o run.Outcome, err error) error {
//	    c.failed.Add(1)
//	    return nil
//	}
//
// # Hooks
//
//   - [PlanCompiled]: a schedule compiled into a plan
//   - [RunStarted]: a run began
//   - [EntryFired]: an entry's payload was resolved and is being sent
//   - [EntryDelivered]: the sender accepted an entry
//   - [EntryFailed]: the sender rejected an entry
//   - [EntrySkipped]: an entry was never sent
//   - [RunCompleted]: every entry of a run has an outcome
//   - [ReplayFired]: a recurring replay started a run
//   - [Shutdown]: the engine is stopping
//
// The [Registry] fans out each event to the registered extensions that
// implement the corresponding hook interface.
package ext
