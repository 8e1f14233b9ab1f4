package engine

import "time"

// Conflict records a write whose version precondition was rejected: someone
// else wrote the entity after the client's last observed version. Both copies
// are exposed untouched; nothing is applied until the caller resolves.
type Conflict[T Entity] struct {
	ID         string
	Local      T // buffered, unsent payload
	Remote     T // current authoritative copy
	DetectedAt time.Time
}
