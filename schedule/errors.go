package schedule

import (
	"fmt"

	"github.com/xraph/burst"
)

// MalformedError reports that no repair strategy produced a JSON array of
// objects. It unwraps to burst.ErrMalformedSchedule.
type MalformedError struct {
	Reason  string
	Repairs []string
	Err     error
}

func (e *MalformedError) Error() string {
	msg := "schedule: malformed: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the sentinel so errors.Is(err, burst.ErrMalformedSchedule) holds.
func (e *MalformedError) Unwrap() []error {
	if e.Err != nil {
		return []error{burst.ErrMalformedSchedule, e.Err}
	}
	return []error{burst.ErrMalformedSchedule}
}

// ValidationError reports one invalid field of one element. Normalize
// joins every ValidationError of a batch with errors.Join.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schedule: event %d: %s: %s", e.Index, e.Field, e.Reason)
}

// Unwrap returns burst.ErrValidation.
func (e *ValidationError) Unwrap() error { return burst.ErrValidation }
