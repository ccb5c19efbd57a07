package plan

import (
	"time"

	"github.com/xraph/burst/schedule"
)

// TemplateSummary describes how one template will be sent.
type TemplateSummary struct {
	Index         int     `json:"index"`
	Summary       string  `json:"summary"`
	InitialOffset float64 `json:"initial_offset"`
	TotalRepeats  int     `json:"total_repeats"`

	// TotalSends is the declared count, 1 plus all repeats.
	TotalSends int `json:"total_sends"`

	// ScheduledSends is how many sends survive the duration bound.
	ScheduledSends int `json:"scheduled_sends"`

	// NextOffset is the first repeat interval in seconds, nil without
	// repeats.
	NextOffset *float64 `json:"next_offset"`

	Flagged bool `json:"flagged"`
}

// Summarize reports the declared and scheduled sends of each template.
func Summarize(templates []*schedule.Template, bound time.Duration) []TemplateSummary {
	out := make([]TemplateSummary, 0, len(templates))
	for _, t := range templates {
		s := TemplateSummary{
			Index:          t.Index,
			Summary:        t.Summary,
			InitialOffset:  t.BaseOffset.Seconds(),
			TotalSends:     t.DeclaredSends(),
			ScheduledSends: scheduled(t, bound),
			Flagged:        t.Flagged,
		}
		s.TotalRepeats = s.TotalSends - 1
		if len(t.Repeats) > 0 {
			next := t.Repeats[0].Interval.Seconds()
			s.NextOffset = &next
		}
		out = append(out, s)
	}
	return out
}
