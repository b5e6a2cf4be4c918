package domain

import "errors"

var (
	ErrInvalidEmotion     = errors.New("invalid emotion")
	ErrInvalidParticipant = errors.New("participant id is required")
	ErrVoteNotFound       = errors.New("vote not found")

	// ErrStoreUnavailable marks a storage call rejected without reaching the
	// backend, such as while a circuit breaker is open.
	ErrStoreUnavailable = errors.New("store unavailable")
)
