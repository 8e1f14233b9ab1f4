package service

import (
	"errors"
	"testing"

	"notewire/internal/domain"
	"notewire/internal/repository"
)

type mockGroupRepo struct {
	groups map[string]*domain.ChatGroup
}

func (m *mockGroupRepo) Save(g *domain.ChatGroup) error {
	copied := *g
	m.groups[g.ID] = &copied
	return nil
}

func (m *mockGroupRepo) FindByID(id string) (*domain.ChatGroup, error) {
	if g, exists := m.groups[id]; exists {
		copied := *g
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

type mockMembershipRepo struct {
	memberships map[string]*domain.GroupMembership
}

func (m *mockMembershipRepo) Save(ms *domain.GroupMembership) error {
	copied := *ms
	m.memberships[ms.ID] = &copied
	return nil
}

func (m *mockMembershipRepo) FindByID(id string) (*domain.GroupMembership, error) {
	if ms, exists := m.memberships[id]; exists {
		copied := *ms
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockMembershipRepo) ListByUser(userID string) ([]*domain.GroupMembership, error) {
	var out []*domain.GroupMembership
	for _, ms := range m.memberships {
		if ms.UserID == userID {
			copied := *ms
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockMembershipRepo) ListByGroup(groupID string) ([]*domain.GroupMembership, error) {
	var out []*domain.GroupMembership
	for _, ms := range m.memberships {
		if ms.GroupID == groupID {
			copied := *ms
			out = append(out, &copied)
		}
	}
	return out, nil
}

type mockMessageRepo struct {
	messages map[string]*domain.ChatMessage
}

func (m *mockMessageRepo) Save(msg *domain.ChatMessage) error {
	copied := *msg
	m.messages[msg.ID] = &copied
	return nil
}

func (m *mockMessageRepo) FindByID(id string) (*domain.ChatMessage, error) {
	if msg, exists := m.messages[id]; exists {
		copied := *msg
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockMessageRepo) ListByGroups(groupIDs []string) ([]*domain.ChatMessage, error) {
	wanted := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}
	var out []*domain.ChatMessage
	for _, msg := range m.messages {
		if wanted[msg.GroupID] {
			copied := *msg
			out = append(out, &copied)
		}
	}
	return out, nil
}

func newChatService() *ChatService {
	return NewChatService(
		&mockGroupRepo{groups: make(map[string]*domain.ChatGroup)},
		&mockMembershipRepo{memberships: make(map[string]*domain.GroupMembership)},
		&mockMessageRepo{messages: make(map[string]*domain.ChatMessage)},
		nil,
	)
}

func TestChatService_CreateGroupSeatsOwner(t *testing.T) {
	service := newChatService()

	group, err := service.PutGroup("alice", "d1", &domain.PutGroupRequest{
		Entity: domain.ChatGroup{ID: "g1", Name: "lunch crew"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if group.OwnerID != "alice" || group.Version != 1 {
		t.Errorf("unexpected group: %+v", group)
	}

	memberships, err := service.ListMemberships("alice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(memberships) != 1 || memberships[0].Role != domain.RoleOwner {
		t.Errorf("owner membership missing: %+v", memberships)
	}

	groups, _ := service.ListGroups("alice")
	if len(groups) != 1 || groups[0].ID != "g1" {
		t.Errorf("group missing from owner's list: %+v", groups)
	}
}

func TestChatService_OnlyOwnerSeatsMembers(t *testing.T) {
	service := newChatService()
	service.PutGroup("alice", "d1", &domain.PutGroupRequest{
		Entity: domain.ChatGroup{ID: "g1", Name: "lunch crew"},
	})

	_, err := service.PutMembership("bob", "d2", &domain.PutMembershipRequest{
		Entity: domain.GroupMembership{ID: "m1", GroupID: "g1", UserID: "bob"},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	membership, err := service.PutMembership("alice", "d1", &domain.PutMembershipRequest{
		Entity: domain.GroupMembership{ID: "m1", GroupID: "g1", UserID: "bob"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if membership.Role != domain.RoleMember {
		t.Errorf("expected default member role, got %s", membership.Role)
	}

	groups, _ := service.ListGroups("bob")
	if len(groups) != 1 {
		t.Errorf("member cannot see group: %+v", groups)
	}
}

func TestChatService_MessagesScopedToMembers(t *testing.T) {
	service := newChatService()
	service.PutGroup("alice", "d1", &domain.PutGroupRequest{
		Entity: domain.ChatGroup{ID: "g1", Name: "lunch crew"},
	})
	service.PutMembership("alice", "d1", &domain.PutMembershipRequest{
		Entity: domain.GroupMembership{ID: "m1", GroupID: "g1", UserID: "bob"},
	})

	if _, err := service.PutMessage("mallory", "d3", &domain.PutMessageRequest{
		Entity: domain.ChatMessage{ID: "msg1", GroupID: "g1", Body: "hi"},
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}

	message, err := service.PutMessage("bob", "d2", &domain.PutMessageRequest{
		Entity: domain.ChatMessage{ID: "msg1", GroupID: "g1", Body: "hi"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if message.AuthorID != "bob" || message.Version != 1 {
		t.Errorf("unexpected message: %+v", message)
	}

	aliceMsgs, _ := service.ListMessages("alice")
	if len(aliceMsgs) != 1 {
		t.Errorf("member missing message: %+v", aliceMsgs)
	}
	outsiderMsgs, _ := service.ListMessages("mallory")
	if len(outsiderMsgs) != 0 {
		t.Errorf("outsider sees messages: %+v", outsiderMsgs)
	}
}

func TestChatService_EditMessageGuardsVersionAndAuthor(t *testing.T) {
	service := newChatService()
	service.PutGroup("alice", "d1", &domain.PutGroupRequest{
		Entity: domain.ChatGroup{ID: "g1", Name: "lunch crew"},
	})
	service.PutMembership("alice", "d1", &domain.PutMembershipRequest{
		Entity: domain.GroupMembership{ID: "m1", GroupID: "g1", UserID: "bob"},
	})
	service.PutMessage("bob", "d2", &domain.PutMessageRequest{
		Entity: domain.ChatMessage{ID: "msg1", GroupID: "g1", Body: "first"},
	})

	if _, err := service.PutMessage("alice", "d1", &domain.PutMessageRequest{
		Entity:          domain.ChatMessage{ID: "msg1", GroupID: "g1", Body: "hijack"},
		ExpectedVersion: 1,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-author edit, got %v", err)
	}

	if _, err := service.PutMessage("bob", "d2", &domain.PutMessageRequest{
		Entity:          domain.ChatMessage{ID: "msg1", GroupID: "g1", Body: "stale"},
		ExpectedVersion: 0,
	}); err == nil {
		t.Fatal("expected conflict for stale edit")
	}

	edited, err := service.PutMessage("bob", "d2", &domain.PutMessageRequest{
		Entity:          domain.ChatMessage{ID: "msg1", GroupID: "g1", Body: "edited"},
		ExpectedVersion: 1,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if edited.Version != 2 || edited.Body != "edited" {
		t.Errorf("unexpected edit result: %+v", edited)
	}
}

func TestChatService_MemberLeavesOwnerRemoves(t *testing.T) {
	service := newChatService()
	service.PutGroup("alice", "d1", &domain.PutGroupRequest{
		Entity: domain.ChatGroup{ID: "g1", Name: "lunch crew"},
	})
	service.PutMembership("alice", "d1", &domain.PutMembershipRequest{
		Entity: domain.GroupMembership{ID: "m1", GroupID: "g1", UserID: "bob"},
	})
	service.PutMembership("alice", "d1", &domain.PutMembershipRequest{
		Entity: domain.GroupMembership{ID: "m2", GroupID: "g1", UserID: "carol"},
	})

	// carol cannot remove bob
	if err := service.DeleteMembership("carol", "d3", "m1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	// bob leaves voluntarily
	if err := service.DeleteMembership("bob", "d2", "m1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// owner removes carol
	if err := service.DeleteMembership("alice", "d1", "m2"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if groups, _ := service.ListGroups("bob"); len(groups) != 0 {
		t.Errorf("departed member still sees group: %+v", groups)
	}
}
