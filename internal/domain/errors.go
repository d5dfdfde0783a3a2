package domain

import "errors"

var (
	// ErrNotFound means the portal explicitly reported zero results.
	ErrNotFound = errors.New("not found")
	// ErrTransient covers timeouts and unexpected page states.
	ErrTransient = errors.New("transient portal failure")
	// ErrSessionExpired means the portal redirected to its login route.
	ErrSessionExpired = errors.New("session expired")
	// ErrLoginFailed is fatal for the worker that owns the session.
	ErrLoginFailed = errors.New("login failed")
	// ErrThrottled signals a portal-level rate limit.
	ErrThrottled = errors.New("portal throttled")
	// ErrChallenge means a human challenge could not be resolved.
	ErrChallenge = errors.New("challenge not resolved")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrColumnOwnership rejects writes outside the stage's columns.
	ErrColumnOwnership = errors.New("column not owned by stage")
	// ErrRunCancelled is returned when the operator declines a run.
	ErrRunCancelled = errors.New("run cancelled by operator")
)
