package domain

import "time"

// ChatGroup is a named conversation. Visibility is scoped through
// GroupMembership: only members receive change events for the group, its
// memberships and its messages.
type ChatGroup struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Topic   string `json:"topic,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
	Version   int64     `json:"version"`
}

func (g ChatGroup) EntityID() string           { return g.ID }
func (g ChatGroup) EntityVersion() int64       { return g.Version }
func (g ChatGroup) EntityUpdatedAt() time.Time { return g.UpdatedAt }
func (g ChatGroup) EntityDeleted() bool        { return g.IsDeleted }

type MembershipRole string

const (
	RoleOwner  MembershipRole = "owner"
	RoleMember MembershipRole = "member"
)

type GroupMembership struct {
	ID      string         `json:"id"`
	GroupID string         `json:"group_id"`
	UserID  string         `json:"user_id"`
	Role    MembershipRole `json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
	Version   int64     `json:"version"`
}

func (m GroupMembership) EntityID() string           { return m.ID }
func (m GroupMembership) EntityVersion() int64       { return m.Version }
func (m GroupMembership) EntityUpdatedAt() time.Time { return m.UpdatedAt }
func (m GroupMembership) EntityDeleted() bool        { return m.IsDeleted }

type ChatMessage struct {
	ID       string `json:"id"`
	GroupID  string `json:"group_id"`
	AuthorID string `json:"author_id"`
	Body     string `json:"body"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
	Version   int64     `json:"version"`
}

func (m ChatMessage) EntityID() string           { return m.ID }
func (m ChatMessage) EntityVersion() int64       { return m.Version }
func (m ChatMessage) EntityUpdatedAt() time.Time { return m.UpdatedAt }
func (m ChatMessage) EntityDeleted() bool        { return m.IsDeleted }

type PutGroupRequest struct {
	Entity          ChatGroup `json:"entity" validate:"required"`
	ExpectedVersion int64     `json:"expected_version" validate:"gte=0"`
}

type PutMembershipRequest struct {
	Entity          GroupMembership `json:"entity" validate:"required"`
	ExpectedVersion int64           `json:"expected_version" validate:"gte=0"`
}

type PutMessageRequest struct {
	Entity          ChatMessage `json:"entity" validate:"required"`
	ExpectedVersion int64       `json:"expected_version" validate:"gte=0"`
}
