package burst

import "errors"

var (
	// Compilation errors. These are fatal to a generation request.
	ErrMalformedSchedule = errors.New("burst: malformed schedule")
	ErrValidation        = errors.New("burst: validation failed")
	ErrEmptySchedule     = errors.New("burst: empty schedule")

	// Resolution errors. These skip a single delivery and never abort a run.
	ErrUnknownToken = errors.New("burst: unknown token")
	ErrTokenRange   = errors.New("burst: token range")

	// Run errors.
	ErrRunNotFound   = errors.New("burst: run not found")
	ErrRunAborted    = errors.New("burst: run aborted")
	ErrNoSender      = errors.New("burst: no sender configured")
	ErrEngineStopped = errors.New("burst: engine stopped")

	// API errors.
	ErrUnauthorized = errors.New("burst: unauthorized")
	ErrForbidden    = errors.New("burst: insufficient scope")

	// Replay errors.
	ErrReplayNotFound  = errors.New("burst: replay entry not found")
	ErrDuplicateReplay = errors.New("burst: duplicate replay entry")
)
