package api

import (
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/run"
	"github.com/xraph/burst/stream"
)

// CompileRequest is the JSON form of POST /v1/plans. Any other content
// type is treated as raw generator output.
type CompileRequest struct {
	Raw string `json:"raw"`
}

// PlanResponse describes a compiled plan.
type PlanResponse struct {
	Plan    *plan.Plan             `json:"plan"`
	Repairs []string               `json:"repairs,omitempty"`
	Summary []plan.TemplateSummary `json:"summary"`
}

// StartRunRequest starts a run of a compiled plan or of raw output
// compiled on the spot. PlanID wins when both are set.
type StartRunRequest struct {
	PlanID string `json:"plan_id,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

// ListRunsResponse lists retained runs, oldest first.
type ListRunsResponse struct {
	Runs []*run.Report `json:"runs"`
}

// ExportRequest is the body of POST /v1/export/postman.
type ExportRequest struct {
	Name   string `json:"name"`
	PlanID string `json:"plan_id,omitempty"`
	Raw    string `json:"raw,omitempty"`

	// Resolve substitutes placeholders with generated values. When false
	// they are exported verbatim.
	Resolve bool `json:"resolve"`
}

// StatsResponse reports engine and broker counters.
type StatsResponse struct {
	Runs       int                `json:"runs"`
	ActiveRuns int                `json:"active_runs"`
	Replays    int                `json:"replays"`
	Stream     stream.BrokerStats `json:"stream"`
}
