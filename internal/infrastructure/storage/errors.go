package storage

import "errors"

// Storage-level sentinel errors. The service layer maps these onto its
// public error kinds.
var (
	// ErrMatchNotFound means no match with the given id exists for the tenant.
	ErrMatchNotFound = errors.New("match not found")

	// ErrNotReviewable means the match is no longer in a reviewable state.
	ErrNotReviewable = errors.New("match is not awaiting review")

	// ErrActiveMatchConflict means the transaction or expense already has an
	// active match, so a second approval would violate the invariant.
	ErrActiveMatchConflict = errors.New("entity already has an active match")
)
