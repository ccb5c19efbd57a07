package replay

import (
	"time"

	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
)

// Entry is a recurring replay of one plan.
type Entry struct {
	ID        id.ReplayID `json:"id"`
	Name      string      `json:"name"`
	Schedule  string      `json:"schedule"`
	Plan      *plan.Plan  `json:"-"`
	PlanID    id.PlanID   `json:"plan_id"`
	Enabled   bool        `json:"enabled"`
	Fired     int         `json:"fired"`
	LastRunID id.RunID    `json:"last_run_id,omitzero"`
	LastRunAt *time.Time  `json:"last_run_at,omitempty"`
	NextRunAt *time.Time  `json:"next_run_at,omitempty"`
}
