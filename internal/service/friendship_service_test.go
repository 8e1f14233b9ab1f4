package service

import (
	"errors"
	"testing"

	"notewire/internal/domain"
	"notewire/internal/repository"
)

type mockFriendshipRepo struct {
	friendships map[string]*domain.Friendship
}

func newMockFriendshipRepo() *mockFriendshipRepo {
	return &mockFriendshipRepo{friendships: make(map[string]*domain.Friendship)}
}

func (m *mockFriendshipRepo) Save(f *domain.Friendship) error {
	copied := *f
	m.friendships[f.ID] = &copied
	return nil
}

func (m *mockFriendshipRepo) FindByID(id string) (*domain.Friendship, error) {
	if f, exists := m.friendships[id]; exists {
		copied := *f
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockFriendshipRepo) ListInvolving(userID string) ([]*domain.Friendship, error) {
	var out []*domain.Friendship
	for _, f := range m.friendships {
		if f.Involves(userID) {
			copied := *f
			out = append(out, &copied)
		}
	}
	return out, nil
}

func TestFriendshipService_RequestOpensPending(t *testing.T) {
	repo := newMockFriendshipRepo()
	service := NewFriendshipService(repo, nil)

	friendship, err := service.Put("alice", "d1", &domain.PutFriendshipRequest{
		Entity: domain.Friendship{
			ID:          "f1",
			RequesterID: "alice",
			AddresseeID: "bob",
			State:       domain.FriendshipAccepted, // client cannot pre-accept
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if friendship.State != domain.FriendshipPending {
		t.Errorf("expected pending, got %s", friendship.State)
	}
	if friendship.Version != 1 {
		t.Errorf("expected version 1, got %d", friendship.Version)
	}
}

func TestFriendshipService_OnlyRequesterOpens(t *testing.T) {
	repo := newMockFriendshipRepo()
	service := NewFriendshipService(repo, nil)

	_, err := service.Put("bob", "d1", &domain.PutFriendshipRequest{
		Entity: domain.Friendship{ID: "f1", RequesterID: "alice", AddresseeID: "bob"},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	_, err = service.Put("mallory", "d1", &domain.PutFriendshipRequest{
		Entity: domain.Friendship{ID: "f2", RequesterID: "alice", AddresseeID: "bob"},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for outsider, got %v", err)
	}
}

func TestFriendshipService_AcceptBumpsVersion(t *testing.T) {
	repo := newMockFriendshipRepo()
	service := NewFriendshipService(repo, nil)

	service.Put("alice", "d1", &domain.PutFriendshipRequest{
		Entity: domain.Friendship{ID: "f1", RequesterID: "alice", AddresseeID: "bob"},
	})

	friendship, err := service.Put("bob", "d2", &domain.PutFriendshipRequest{
		Entity: domain.Friendship{
			ID: "f1", RequesterID: "alice", AddresseeID: "bob",
			State: domain.FriendshipAccepted,
		},
		ExpectedVersion: 1,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if friendship.State != domain.FriendshipAccepted {
		t.Errorf("expected accepted, got %s", friendship.State)
	}
	if friendship.Version != 2 {
		t.Errorf("expected version 2, got %d", friendship.Version)
	}
}

func TestFriendshipService_StaleUpdateConflicts(t *testing.T) {
	repo := newMockFriendshipRepo()
	service := NewFriendshipService(repo, nil)

	service.Put("alice", "d1", &domain.PutFriendshipRequest{
		Entity: domain.Friendship{ID: "f1", RequesterID: "alice", AddresseeID: "bob"},
	})
	service.Put("bob", "d2", &domain.PutFriendshipRequest{
		Entity: domain.Friendship{
			ID: "f1", RequesterID: "alice", AddresseeID: "bob",
			State: domain.FriendshipAccepted,
		},
		ExpectedVersion: 1,
	})

	_, err := service.Put("alice", "d1", &domain.PutFriendshipRequest{
		Entity: domain.Friendship{
			ID: "f1", RequesterID: "alice", AddresseeID: "bob",
			State: domain.FriendshipDeclined,
		},
		ExpectedVersion: 1,
	})

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	current := conflict.Current.(*domain.Friendship)
	if current.State != domain.FriendshipAccepted {
		t.Errorf("conflict carries wrong copy: %+v", current)
	}
}

func TestFriendshipService_EitherSideUnfriends(t *testing.T) {
	repo := newMockFriendshipRepo()
	service := NewFriendshipService(repo, nil)

	service.Put("alice", "d1", &domain.PutFriendshipRequest{
		Entity: domain.Friendship{ID: "f1", RequesterID: "alice", AddresseeID: "bob"},
	})

	if err := service.Delete("bob", "d2", "f1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	list, _ := service.List("alice")
	if len(list) != 0 {
		t.Errorf("tombstone leaked into list: %d entries", len(list))
	}
}
