package service

import (
	"errors"
	"testing"

	"notewire/internal/domain"
	"notewire/internal/repository"
)

type mockNoteRepo struct {
	notes map[string]*domain.Note
}

func newMockNoteRepo() *mockNoteRepo {
	return &mockNoteRepo{notes: make(map[string]*domain.Note)}
}

func (m *mockNoteRepo) Save(note *domain.Note) error {
	copied := *note
	m.notes[note.ID] = &copied
	return nil
}

func (m *mockNoteRepo) FindByID(id string) (*domain.Note, error) {
	if n, exists := m.notes[id]; exists {
		copied := *n
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockNoteRepo) ListByOwner(ownerID string) ([]*domain.Note, error) {
	var notes []*domain.Note
	for _, n := range m.notes {
		if n.OwnerID == ownerID {
			copied := *n
			notes = append(notes, &copied)
		}
	}
	return notes, nil
}

func TestNoteService_PutCreates(t *testing.T) {
	repo := newMockNoteRepo()
	service := NewNoteService(repo, nil)

	note, err := service.Put("user1", "device1", &domain.PutNoteRequest{
		Entity:          domain.Note{ID: "n1", Title: "hello"},
		ExpectedVersion: 0,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if note.Version != 1 {
		t.Errorf("expected version 1, got %d", note.Version)
	}
	if note.OwnerID != "user1" {
		t.Errorf("expected owner user1, got %s", note.OwnerID)
	}
}

func TestNoteService_PutIncrementsVersion(t *testing.T) {
	repo := newMockNoteRepo()
	service := NewNoteService(repo, nil)

	service.Put("user1", "d1", &domain.PutNoteRequest{Entity: domain.Note{ID: "n1", Title: "v1"}})

	note, err := service.Put("user1", "d1", &domain.PutNoteRequest{
		Entity:          domain.Note{ID: "n1", Title: "v2"},
		ExpectedVersion: 1,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if note.Version != 2 {
		t.Errorf("expected version 2, got %d", note.Version)
	}
	if note.Title != "v2" {
		t.Errorf("expected title v2, got %s", note.Title)
	}
}

func TestNoteService_StalePutConflicts(t *testing.T) {
	repo := newMockNoteRepo()
	service := NewNoteService(repo, nil)

	service.Put("user1", "d1", &domain.PutNoteRequest{Entity: domain.Note{ID: "n1", Title: "v1"}})
	service.Put("user1", "d1", &domain.PutNoteRequest{
		Entity: domain.Note{ID: "n1", Title: "v2"}, ExpectedVersion: 1,
	})

	_, err := service.Put("user1", "d2", &domain.PutNoteRequest{
		Entity:          domain.Note{ID: "n1", Title: "stale"},
		ExpectedVersion: 1,
	})

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	current, ok := conflict.Current.(*domain.Note)
	if !ok {
		t.Fatalf("expected current note in conflict, got %T", conflict.Current)
	}
	if current.Version != 2 || current.Title != "v2" {
		t.Errorf("conflict carries wrong copy: %+v", current)
	}

	// the losing write must not have touched storage
	stored, _ := repo.FindByID("n1")
	if stored.Title != "v2" {
		t.Errorf("stale write was applied: %s", stored.Title)
	}
}

func TestNoteService_PutWrongOwner(t *testing.T) {
	repo := newMockNoteRepo()
	service := NewNoteService(repo, nil)

	service.Put("user1", "d1", &domain.PutNoteRequest{Entity: domain.Note{ID: "n1", Title: "mine"}})

	_, err := service.Put("user2", "d2", &domain.PutNoteRequest{
		Entity: domain.Note{ID: "n1", Title: "theirs"}, ExpectedVersion: 1,
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestNoteService_DeleteTombstones(t *testing.T) {
	repo := newMockNoteRepo()
	service := NewNoteService(repo, nil)

	service.Put("user1", "d1", &domain.PutNoteRequest{Entity: domain.Note{ID: "n1", Title: "doomed"}})

	if err := service.Delete("user1", "d1", "n1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := repo.FindByID("n1")
	if !stored.IsDeleted {
		t.Error("expected tombstone")
	}
	if stored.Version != 2 {
		t.Errorf("expected delete to bump version, got %d", stored.Version)
	}

	// repeat deletes and deletes of unknown ids are no-ops
	if err := service.Delete("user1", "d1", "n1"); err != nil {
		t.Errorf("repeat delete: %v", err)
	}
	if err := service.Delete("user1", "d1", "ghost"); err != nil {
		t.Errorf("delete of unknown id: %v", err)
	}

	list, _ := service.List("user1")
	if len(list) != 0 {
		t.Errorf("tombstone leaked into list: %d entries", len(list))
	}
}

func TestNoteService_RecreateAfterDelete(t *testing.T) {
	repo := newMockNoteRepo()
	service := NewNoteService(repo, nil)

	service.Put("user1", "d1", &domain.PutNoteRequest{Entity: domain.Note{ID: "n1", Title: "first"}})
	service.Delete("user1", "d1", "n1")

	note, err := service.Put("user1", "d1", &domain.PutNoteRequest{
		Entity: domain.Note{ID: "n1", Title: "reborn"}, ExpectedVersion: 0,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// the version line continues past the tombstone
	if note.Version != 3 {
		t.Errorf("expected version 3, got %d", note.Version)
	}
	if note.IsDeleted {
		t.Error("recreated note still tombstoned")
	}
}
