package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/burst/replay"
)

func (a *API) requireReplays(c *gin.Context) bool {
	if a.replays == nil {
		notFound(c, "replays are not configured")
		return false
	}
	return true
}

func (a *API) listReplays(c *gin.Context) {
	if a.replays == nil {
		c.JSON(http.StatusOK, []replay.Entry{})
		return
	}
	c.JSON(http.StatusOK, a.replays.Entries())
}

func (a *API) getReplay(c *gin.Context) {
	if !a.requireReplays(c) {
		return
	}
	e, err := a.replays.Get(c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (a *API) enableReplay(c *gin.Context)  { a.setReplayEnabled(c, true) }
func (a *API) disableReplay(c *gin.Context) { a.setReplayEnabled(c, false) }

func (a *API) setReplayEnabled(c *gin.Context, enabled bool) {
	if !a.requireReplays(c) {
		return
	}
	name := c.Param("name")
	if err := a.replays.SetEnabled(name, enabled); err != nil {
		fail(c, err)
		return
	}
	e, err := a.replays.Get(name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}
