package engine

import (
	"context"
	"errors"
	"fmt"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one remote mutation notification. Doc is the zero value for
// delete events.
type Event[T Entity] struct {
	Type EventType
	ID   string
	Doc  T
}

// Feed is one live change subscription. Events is closed when the feed dies
// for any reason; the engine resubscribes and refetches.
type Feed[T Entity] interface {
	Events() <-chan Event[T]
	Close() error
}

// Store is the remote data store for one collection, already scoped to what
// the current user may see. Implementations handle transport-level retry;
// errors returned from Put are classified via ConflictError and
// ValidationError, anything else is treated as a transport failure.
type Store[T Entity] interface {
	FetchAll(ctx context.Context) ([]T, error)
	Put(ctx context.Context, doc T, expectedVersion int64) (T, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (Feed[T], error)
}

// ConflictError reports a rejected write precondition. Remote carries the
// current authoritative copy so the caller can resolve without another fetch.
type ConflictError[T Entity] struct {
	Remote T
}

func (e *ConflictError[T]) Error() string {
	return fmt.Sprintf("write conflict: remote copy at version %d", e.Remote.EntityVersion())
}

// ValidationError reports a payload the store rejected. Retrying an invalid
// payload fails identically, so the engine never retries these.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "payload rejected: " + e.Reason
}

var (
	ErrNotFound   = errors.New("entity not found")
	ErrExists     = errors.New("entity already exists")
	ErrNoConflict = errors.New("no conflict recorded for entity")
	ErrStopped    = errors.New("engine stopped")
)
