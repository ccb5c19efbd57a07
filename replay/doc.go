// Package replay re-runs compiled plans on cron schedules so demo
// environments stay populated.
//
// # Entry
//
// An [Entry] binds a unique name to a cron expression and a compiled plan:
//   - Schedule: standard 5-field cron (e.g. "*/15 9-17 * * 1-5") or a
//     descriptor such as "@hourly" or "@every 20m"
//   - Plan: the plan started every time the entry fires
//   - Enabled: whether the entry fires
//
// # Scheduler
//
// The [Scheduler] evaluates due entries on every tick, starts a run of
// each through its StartFunc and advances NextRunAt. The ext.ReplayFired
// hook fires after each start. Runs of one entry may overlap when the
// schedule is shorter than the plan's span.
package replay
