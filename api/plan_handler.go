package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/burst/plan"
)

// maxBody bounds request bodies carrying generator output.
const maxBody = 4 << 20

func readRaw(c *gin.Context) (string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	if c.ContentType() == gin.MIMEJSON {
		var req CompileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return "", false
		}
		return req.Raw, true
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "read body: "+err.Error())
		return "", false
	}
	return string(data), true
}

func (a *API) compilePlan(c *gin.Context) {
	raw, ok := readRaw(c)
	if !ok {
		return
	}
	comp, err := a.eng.Compile(c.Request.Context(), raw)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, PlanResponse{
		Plan:    comp.Plan,
		Repairs: comp.Repairs,
		Summary: comp.Summary,
	})
}

func (a *API) getPlan(c *gin.Context) {
	p, ok := a.eng.Plan(c.Param("planId"))
	if !ok {
		notFound(c, "plan not found: "+c.Param("planId"))
		return
	}
	c.JSON(http.StatusOK, PlanResponse{
		Plan:    p,
		Summary: plan.Summarize(p.Templates(), p.DurationBound()),
	})
}
