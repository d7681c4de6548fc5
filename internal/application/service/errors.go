package service

import "errors"

// Sentinel errors returned by the service layer. Handlers map these onto
// HTTP status codes; wrap them with fmt.Errorf("...: %w", Err...) to add
// context while keeping errors.Is checks working.
var (
	// ErrInvalidArgument indicates a request the caller can fix.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates the referenced record does not exist for the tenant.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates a state transition that is not allowed, such as
	// reviewing a match that already left the review queue.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict indicates the operation would violate the one-active-match
	// guarantee for a transaction or expense.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyRunning indicates a matching run is already in flight for the
	// tenant.
	ErrAlreadyRunning = errors.New("matching run already in progress")
)
