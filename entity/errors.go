package entity

import "errors"

var (
	// ErrJobNotFound is returned for IDs that were never issued.
	ErrJobNotFound      = errors.New("job not found")
	ErrJobAlreadyExists = errors.New("job already exists")

	// ErrStaleTransition marks a write rejected because it would move a
	// record backward or touch a terminal record. Expected under duplicate
	// or late delivery; never surfaced to clients.
	ErrStaleTransition = errors.New("stale job state transition")

	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid job payload")
)
