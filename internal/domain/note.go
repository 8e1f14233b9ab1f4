package domain

import "time"

// Note is the primary user-owned entity. The server bumps Version on every
// accepted write and sets UpdatedAt; clients carry the last observed Version
// as the precondition for their next write.
type Note struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	Title    string   `json:"title"`
	Content  string   `json:"content,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Archived bool     `json:"archived"`
	Favorite bool     `json:"favorite"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
	Version   int64     `json:"version"`
}

func (n Note) EntityID() string           { return n.ID }
func (n Note) EntityVersion() int64       { return n.Version }
func (n Note) EntityUpdatedAt() time.Time { return n.UpdatedAt }
func (n Note) EntityDeleted() bool        { return n.IsDeleted }

type PutNoteRequest struct {
	Entity          Note  `json:"entity" validate:"required"`
	ExpectedVersion int64 `json:"expected_version" validate:"gte=0"`
}
