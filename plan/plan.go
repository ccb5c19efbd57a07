package plan

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/xraph/burst"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/schedule"
)

// EmptyScheduleError reports that compilation produced no entries.
type EmptyScheduleError struct {
	Templates int
	Bound     time.Duration
}

func (e *EmptyScheduleError) Error() string {
	if e.Templates == 0 {
		return "plan: empty schedule: no templates"
	}
	return fmt.Sprintf("plan: empty schedule: all %d templates fall beyond %s", e.Templates, e.Bound)
}

// Unwrap returns burst.ErrEmptySchedule.
func (e *EmptyScheduleError) Unwrap() error { return burst.ErrEmptySchedule }

// DefaultMaxEntries caps the entries of one plan.
const DefaultMaxEntries = burst.DefaultMaxEntries

// TooManyEntriesError reports a schedule that expands past the entry
// limit. Template is the event whose expansion crossed it.
type TooManyEntriesError struct {
	Template int
	Limit    int
}

func (e *TooManyEntriesError) Error() string {
	return fmt.Sprintf("plan: event %d expands the schedule past %d entries", e.Template, e.Limit)
}

// Unwrap returns burst.ErrValidation.
func (e *TooManyEntriesError) Unwrap() error { return burst.ErrValidation }

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	epsilon    time.Duration
	maxEntries int
}

// WithEpsilon sets the collision nudge used when expanding templates.
func WithEpsilon(eps time.Duration) Option {
	return func(o *buildOptions) { o.epsilon = eps }
}

// WithMaxEntries sets the entry limit. Values below 1 keep
// DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(o *buildOptions) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// Plan is an immutable, offset-ordered list of entries.
type Plan struct {
	id        id.PlanID
	entries   []Entry
	templates []*schedule.Template
	bound     time.Duration
}

// Build expands every template and merges the results. Entries are sorted
// by offset, then by template declaration index, then by occurrence.
// Entries of different templates may share an offset; a template listed
// twice contributes its entries once. A schedule expanding past the entry
// limit fails with TooManyEntriesError.
func Build(templates []*schedule.Template, bound time.Duration, opts ...Option) (*Plan, error) {
	o := buildOptions{epsilon: DefaultEpsilon, maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(&o)
	}

	seen := make(map[*schedule.Template]struct{}, len(templates))

	var entries []Entry
	for _, t := range templates {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}

		over := false
		walk(t, bound, o.epsilon, func(e Entry) bool {
			if len(entries) == o.maxEntries {
				over = true
				return false
			}
			entries = append(entries, e)
			return true
		})
		if over {
			return nil, &TooManyEntriesError{Template: t.Index, Limit: o.maxEntries}
		}
	}
	if len(entries) == 0 {
		return nil, &EmptyScheduleError{Templates: len(templates), Bound: bound}
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.Offset, b.Offset),
			cmp.Compare(a.Template.Index, b.Template.Index),
			cmp.Compare(a.Occurrence, b.Occurrence),
		)
	})

	return &Plan{
		id:        id.NewPlanID(),
		entries:   entries,
		templates: slices.Clone(templates),
		bound:     bound,
	}, nil
}

// ID returns the plan identifier.
func (p *Plan) ID() id.PlanID { return p.id }

// Len returns the number of entries.
func (p *Plan) Len() int { return len(p.entries) }

// At returns the i-th entry.
func (p *Plan) At(i int) Entry { return p.entries[i] }

// Entries returns a copy of the ordered entries.
func (p *Plan) Entries() []Entry { return slices.Clone(p.entries) }

// Templates returns the templates the plan was built from.
func (p *Plan) Templates() []*schedule.Template { return slices.Clone(p.templates) }

// DurationBound returns the bound used during compilation.
func (p *Plan) DurationBound() time.Duration { return p.bound }

// Span returns the offset of the last entry.
func (p *Plan) Span() time.Duration { return p.entries[len(p.entries)-1].Offset }

// Flagged returns the templates marked as the major failure.
func (p *Plan) Flagged() []*schedule.Template {
	var out []*schedule.Template
	for _, t := range p.templates {
		if t.Flagged {
			out = append(out, t)
		}
	}
	return out
}

type entryJSON struct {
	Offset     float64 `json:"offset_seconds"`
	Template   int     `json:"template_index"`
	Occurrence int     `json:"occurrence"`
	Kind       string  `json:"kind"`
	Action     string  `json:"action,omitempty"`
	Summary    string  `json:"summary"`
}

// MarshalJSON renders the plan as its ordered (offset, template, action)
// tuples.
func (p *Plan) MarshalJSON() ([]byte, error) {
	out := struct {
		ID            string      `json:"id"`
		DurationBound float64     `json:"duration_bound_seconds"`
		Entries       []entryJSON `json:"entries"`
	}{
		ID:            p.id.String(),
		DurationBound: p.bound.Seconds(),
		Entries:       make([]entryJSON, 0, len(p.entries)),
	}
	for _, e := range p.entries {
		out.Entries = append(out.Entries, entryJSON{
			Offset:     e.Offset.Seconds(),
			Template:   e.TemplateIndex(),
			Occurrence: e.Occurrence,
			Kind:       string(e.Template.Kind),
			Action:     string(e.Template.Action),
			Summary:    e.Template.Summary,
		})
	}
	return json.Marshal(out)
}
