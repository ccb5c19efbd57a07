package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/burst"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps burst errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, burst.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, burst.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, burst.ErrRunNotFound),
		errors.Is(err, burst.ErrReplayNotFound):
		return http.StatusNotFound
	case errors.Is(err, burst.ErrDuplicateReplay):
		return http.StatusConflict
	case errors.Is(err, burst.ErrMalformedSchedule):
		return http.StatusBadRequest
	case errors.Is(err, burst.ErrValidation),
		errors.Is(err, burst.ErrEmptySchedule),
		errors.Is(err, burst.ErrUnknownToken),
		errors.Is(err, burst.ErrTokenRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, burst.ErrNoSender),
		errors.Is(err, burst.ErrEngineStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func notFound(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: msg})
}
