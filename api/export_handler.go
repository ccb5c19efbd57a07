package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/burst/export"
	"github.com/xraph/burst/schedule"
	"github.com/xraph/burst/token"
)

func (a *API) exportPostman(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	var templates []*schedule.Template
	switch {
	case req.PlanID != "":
		p, ok := a.eng.Plan(req.PlanID)
		if !ok {
			notFound(c, "plan not found: "+req.PlanID)
			return
		}
		templates = p.Templates()
	case req.Raw != "":
		var err error
		if templates, err = schedule.Normalize(req.Raw); err != nil {
			fail(c, err)
			return
		}
	default:
		badRequest(c, "plan_id or raw is required")
		return
	}

	name := req.Name
	if name == "" {
		name = "burst scenario"
	}
	var res *token.Resolver
	if req.Resolve {
		res = a.eng.Resolver()
	}
	col, err := export.Postman(name, templates, res, a.endpoints)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}
