// Package run holds the data recorded while a dispatch plan executes: the
// run state, one Outcome per entry and the aggregated Report.
package run

import (
	"slices"
	"time"

	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
)

// State is the lifecycle state of a run.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Terminal reports whether the run has finished.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// Status is the outcome class of one entry.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"

	// StatusSkipped marks an entry that never reached the sender, because
	// token resolution failed or the run was aborted first.
	StatusSkipped Status = "skipped"
)

// Outcome is the result of one plan entry.
type Outcome struct {
	RunID      id.RunID      `json:"run_id"`
	DeliveryID id.DeliveryID `json:"delivery_id"`

	Template   int           `json:"template"`
	Occurrence int           `json:"occurrence"`
	Attempt    string        `json:"attempt"`
	Offset     time.Duration `json:"offset"`
	Summary    string        `json:"summary"`
	Kind       string        `json:"kind"`

	Status  Status           `json:"status"`
	Receipt delivery.Receipt `json:"receipt"`
	Error   string           `json:"error,omitempty"`
	FiredAt time.Time        `json:"fired_at,omitempty"`
	Elapsed time.Duration    `json:"elapsed,omitempty"`
}

// NewOutcome returns an Outcome describing e before it is sent.
func NewOutcome(runID id.RunID, e plan.Entry) Outcome {
	return Outcome{
		RunID:      runID,
		DeliveryID: id.NewDeliveryID(),
		Template:   e.TemplateIndex(),
		Occurrence: e.Occurrence,
		Attempt:    e.Attempt(),
		Offset:     e.Offset,
		Summary:    e.Template.Summary,
		Kind:       string(e.Template.Kind),
	}
}

// Totals counts entries by status.
type Totals struct {
	Scheduled int `json:"scheduled"`
	Fired     int `json:"fired"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Report summarizes a run. Reports handed out by a running run are
// snapshots.
type Report struct {
	RunID      id.RunID  `json:"run_id"`
	PlanID     id.PlanID `json:"plan_id"`
	State      State     `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Totals     Totals    `json:"totals"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Record appends o and updates the totals.
func (r *Report) Record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusDelivered:
		r.Totals.Delivered++
	case StatusFailed:
		r.Totals.Failed++
	case StatusSkipped:
		r.Totals.Skipped++
	}
}

// Clone returns a deep copy.
func (r *Report) Clone() *Report {
	c := *r
	c.Outcomes = slices.Clone(r.Outcomes)
	return &c
}

// Elapsed returns the run duration so far.
func (r *Report) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
