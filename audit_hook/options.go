package audithook

import (
	"log/slog"
	"slices"
	"time"
)

// Option configures an Extension.
type Option func(*Extension)

// WithActions limits the trail to the named actions, for instance only
// ActionEntryFailed and ActionRunAborted. Names outside AllActions match
// nothing. Without this option every action is recorded.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.actions = append([]string{}, actions...)
	}
}

// WithMinSeverity drops events below severity (info < warning <
// critical). An unknown severity keeps everything.
func WithMinSeverity(severity string) Option {
	return func(e *Extension) {
		e.minSeverity = severityRank(severity)
	}
}

// WithLogger sets the logger that reports recorder failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// WithClock sets the time source stamped on each event.
func WithClock(now func() time.Time) Option {
	return func(e *Extension) { e.now = now }
}

func severityRank(severity string) int {
	return slices.Index([]string{SeverityInfo, SeverityWarning, SeverityCritical}, severity)
}
