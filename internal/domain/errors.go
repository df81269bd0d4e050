package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common business logic failures.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrUnauthorized     = errors.New("actor is not allowed to modify this resource")
	ErrAlreadyTaken     = errors.New("participant name already taken")
	ErrUnknownSender    = errors.New("sender is not a registered participant")
	ErrStoreUnavailable = errors.New("store unavailable")
)
