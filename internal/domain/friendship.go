package domain

import "time"

type FriendshipState string

const (
	FriendshipPending  FriendshipState = "pending"
	FriendshipAccepted FriendshipState = "accepted"
	FriendshipDeclined FriendshipState = "declined"
	FriendshipBlocked  FriendshipState = "blocked"
)

// Friendship links two users. Both endpoints observe the entity, so change
// events fan out to requester and addressee alike.
type Friendship struct {
	ID          string          `json:"id"`
	RequesterID string          `json:"requester_id"`
	AddresseeID string          `json:"addressee_id"`
	State       FriendshipState `json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
	Version   int64     `json:"version"`
}

func (f Friendship) EntityID() string           { return f.ID }
func (f Friendship) EntityVersion() int64       { return f.Version }
func (f Friendship) EntityUpdatedAt() time.Time { return f.UpdatedAt }
func (f Friendship) EntityDeleted() bool        { return f.IsDeleted }

func (f Friendship) Involves(userID string) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

type PutFriendshipRequest struct {
	Entity          Friendship `json:"entity" validate:"required"`
	ExpectedVersion int64      `json:"expected_version" validate:"gte=0"`
}
