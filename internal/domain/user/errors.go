package user

import "errors"

var (
	ErrNotFound         = errors.New("user not found")
	ErrEmailAlreadyUsed = errors.New("email already in use")
	// ErrStalePlanEvent means a newer billing event has already been applied.
	ErrStalePlanEvent = errors.New("stale plan event")
)
