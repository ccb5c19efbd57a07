// Package burst compiles LLM-authored incident event templates into timed
// alert dispatch plans and delivers them with placeholder tokens resolved
// fresh at the moment of each send.
//
// A scenario moves through four stages:
//
//	raw text → schedule.Normalize → plan.Build → runner.Run
//
// The normalizer repairs and validates loosely structured JSON from an
// upstream generator. The plan builder expands every template's repeat
// rules into a flat, time-ordered list of dispatch entries bounded by the
// scenario duration. The runner fires each entry on a timer relative to a
// single start instant T0, resolving tokens such as
//
//	{{ ipv4 }}  {{ enumChoice("db-01", "db-02") }}  {{ timestamp(-1800, -60) }}
//
// independently for every delivery so repeated alerts never share fake
// values or timestamps.
//
// # Quick Start
//
//	eng, err := engine.New(engine.WithSender(sender))
//	p, err := eng.Compile(rawText)
//	run, err := eng.Start(ctx, p)
//	report, err := run.Wait(ctx)
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package burst
