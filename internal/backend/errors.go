package backend

import "errors"

// Failure taxonomy the rest of the service programs against. Transport
// failures (no response) and application failures (error status with a
// body) are both folded into one of these before leaving the package, so
// callers never inspect transport-specific shapes.
var (
	ErrStartSession      = errors.New("start session failed")
	ErrSubmitQuestion    = errors.New("submit question failed")
	ErrHistoryLoad       = errors.New("history load failed")
	ErrTitleFinalization = errors.New("title finalization failed")
)
