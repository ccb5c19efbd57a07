package schedule

import (
	"time"
)

// Severity is the alert severity enum accepted by the receiver.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
)

// Valid reports whether s is one of the four accepted severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical, SeverityError:
		return true
	}
	return false
}

// Action is the event action of an alert template.
type Action string

const (
	ActionTrigger Action = "trigger"
	ActionResolve Action = "resolve"
)

// Valid reports whether a is a supported action.
func (a Action) Valid() bool {
	return a == ActionTrigger || a == ActionResolve
}

// Kind distinguishes alert events from change events.
type Kind string

const (
	KindAlert  Kind = "alert"
	KindChange Kind = "change"
)

// RepeatRule fires Count further occurrences spaced Interval apart,
// continuing from wherever the previous rule left off.
type RepeatRule struct {
	Count    int           `json:"count"`
	Interval time.Duration `json:"interval"`
}

// Template is one validated, author-declared event before expansion.
//
// A Template is shared by reference between every dispatch entry derived
// from it and must not be mutated after Normalize returns it.
type Template struct {
	// Index is the declaration position in the source list.
	Index int `json:"index"`

	Kind     Kind     `json:"kind"`
	Action   Action   `json:"action,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	Summary  string   `json:"summary"`
	Source   string   `json:"source"`

	// Payload is the full payload mapping, including custom_details.
	// String leaves may contain placeholder tokens.
	Payload map[string]any `json:"payload"`

	BaseOffset time.Duration `json:"base_offset"`
	Repeats    []RepeatRule  `json:"repeats,omitempty"`

	DedupKey  string `json:"dedup_key,omitempty"`
	Client    string `json:"client,omitempty"`
	ClientURL string `json:"client_url,omitempty"`
	Links     []any  `json:"links,omitempty"`

	// Flagged marks the template whose custom_details declare
	// "major_failure": true.
	Flagged bool `json:"flagged,omitempty"`
}

// CustomDetails returns the nested custom_details mapping.
func (t *Template) CustomDetails() map[string]any {
	cd, _ := t.Payload["custom_details"].(map[string]any)
	return cd
}

// DeclaredSends is 1 plus the sum of all repeat counts, before any
// duration bound is applied. Change events always send once.
func (t *Template) DeclaredSends() int {
	if t.Kind == KindChange {
		return 1
	}
	n := 1
	for _, r := range t.Repeats {
		n += r.Count
	}
	return n
}
