package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/run"
)

func (a *API) startRun(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	var p *plan.Plan
	switch {
	case req.PlanID != "":
		var ok bool
		if p, ok = a.eng.Plan(req.PlanID); !ok {
			notFound(c, "plan not found: "+req.PlanID)
			return
		}
	case req.Raw != "":
		comp, err := a.eng.Compile(c.Request.Context(), req.Raw)
		if err != nil {
			fail(c, err)
			return
		}
		p = comp.Plan
	default:
		badRequest(c, "plan_id or raw is required")
		return
	}

	rn, err := a.eng.Start(a.base, p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, rn.Report())
}

func (a *API) listRuns(c *gin.Context) {
	runs := a.eng.Runs()
	if state := run.State(c.Query("state")); state != "" {
		kept := runs[:0]
		for _, r := range runs {
			if r.State == state {
				kept = append(kept, r)
			}
		}
		runs = kept
	}
	c.JSON(http.StatusOK, ListRunsResponse{Runs: runs})
}

func (a *API) getRun(c *gin.Context) {
	rn, err := a.eng.Run(c.Param("runId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rn.Report())
}

func (a *API) abortRun(c *gin.Context) {
	rn, err := a.eng.Run(c.Param("runId"))
	if err != nil {
		fail(c, err)
		return
	}
	rn.Abort()
	c.Status(http.StatusAccepted)
}

func (a *API) stats(c *gin.Context) {
	resp := StatsResponse{Stream: a.eng.Broker().Stats()}
	for _, r := range a.eng.Runs() {
		resp.Runs++
		if !r.State.Terminal() {
			resp.ActiveRuns++
		}
	}
	if a.replays != nil {
		resp.Replays = len(a.replays.Entries())
	}
	c.JSON(http.StatusOK, resp)
}
