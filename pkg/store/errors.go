package store

import "errors"

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized indicates the requester does not own the target.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrConflict indicates the operation does not apply to the target,
	// e.g. generating a variation for a user-sent message.
	ErrConflict = errors.New("conflict")
)
