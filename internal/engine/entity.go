// Package engine keeps a client-side in-memory cache of entities consistent
// with a remote multi-writer store. One Engine instance owns one collection:
// it applies remote change events to the cache, coalesces and debounces local
// edits into version-preconditioned writes, surfaces conflicts for explicit
// resolution, and queues writes made while offline.
package engine

import "time"

// Entity is the minimal shape the engine needs from a synced document.
// Implementations use value receivers; the engine stores and passes documents
// by value so no two call sites share a mutable copy.
type Entity interface {
	EntityID() string
	EntityVersion() int64
	EntityUpdatedAt() time.Time
}

// Status is the client-side sync state of one entity.
type Status string

const (
	// StatusSynced: local payload equals the last acknowledged remote payload.
	StatusSynced Status = "synced"
	// StatusPending: local edits exist that have not been sent yet.
	StatusPending Status = "pending"
	// StatusSyncing: a write is in flight.
	StatusSyncing Status = "syncing"
	// StatusError: the last write failed for a non-conflict reason.
	StatusError Status = "error"
	// StatusConflict: the last write was rejected by the version precondition
	// and awaits explicit resolution.
	StatusConflict Status = "conflict"
)

// Resolution picks a side of a detected conflict.
type Resolution string

const (
	// AcceptRemote discards the local edits and adopts the remote copy.
	AcceptRemote Resolution = "accept_remote"
	// KeepLocal force-pushes the local payload with the remote's version as
	// the new precondition.
	KeepLocal Resolution = "keep_local"
)
