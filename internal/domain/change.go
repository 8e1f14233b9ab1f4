package domain

import (
	"encoding/json"
	"time"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Collection names as they appear in API paths and change events.
const (
	CollectionNotes       = "notes"
	CollectionFriendships = "friendships"
	CollectionGroups      = "groups"
	CollectionMemberships = "memberships"
	CollectionMessages    = "messages"
)

// ChangeEvent is one remote mutation notification as delivered over the
// change feed. Entity carries the full document for insert/update; delete
// events carry the id and final version only.
type ChangeEvent struct {
	Type       ChangeType      `json:"type"`
	Collection string          `json:"collection"`
	EntityID   string          `json:"entity_id"`
	Version    int64           `json:"version"`
	Entity     json.RawMessage `json:"entity,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
