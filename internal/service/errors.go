package service

import "errors"

// ConflictError is returned when a write precondition fails. Current carries
// the authoritative copy so handlers can hand it straight back to the client.
type ConflictError struct {
	Current interface{}
}

func (e *ConflictError) Error() string {
	return "version conflict"
}

var (
	ErrNotFound     = errors.New("entity not found")
	ErrUnauthorized = errors.New("entity does not belong to user")
	ErrForbidden    = errors.New("operation not permitted")
)
