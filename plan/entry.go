package plan

import (
	"fmt"
	"time"

	"github.com/xraph/burst/schedule"
)

// Entry is one scheduled send of a template.
type Entry struct {
	// Template is shared by every entry derived from it and is never
	// mutated; token resolution works on a copy of its payload.
	Template *schedule.Template

	// Offset is the fire time relative to scenario start.
	Offset time.Duration

	// Occurrence is 0 for the first send and 1..N for repeats.
	Occurrence int
}

// TemplateIndex returns the declaration index of the owning template.
func (e Entry) TemplateIndex() int { return e.Template.Index }

// Attempt labels the send the way delivery reports do: "initial" or
// "repeat N".
func (e Entry) Attempt() string {
	if e.Occurrence == 0 {
		return "initial"
	}
	return fmt.Sprintf("repeat %d", e.Occurrence)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s@%s#%d", e.Template.Summary, e.Offset, e.Occurrence)
}
