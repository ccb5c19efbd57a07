// Package audithook is a burst extension that bridges lifecycle events
// to an audit trail.
//
// Every plan, run, entry and replay hook emits a structured audit event
// through the [Recorder] interface. The extension assigns severity levels
// (info for normal operations, warning for skipped entries and aborted
// runs, critical for delivery failures) and metadata such as the template
// index, attempt label and status code.
//
// # Writing an audit log
//
//	f, _ := os.OpenFile("audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
//	engine.New(engine.WithExtension(audithook.New(audithook.NewWriterRecorder(f))))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionEntryFailed,
//	        audithook.ActionRunAborted,
//	    ),
//	)
package audithook
