package service

import (
	"errors"
	"time"

	"notewire/internal/domain"
	"notewire/internal/repository"
)

type NoteService struct {
	repo        repository.NoteRepository
	syncService *SyncService
}

func NewNoteService(repo repository.NoteRepository, syncService *SyncService) *NoteService {
	return &NoteService{
		repo:        repo,
		syncService: syncService,
	}
}

// List returns the live notes of one user. Tombstones stay server-side.
func (s *NoteService) List(userID string) ([]*domain.Note, error) {
	notes, err := s.repo.ListByOwner(userID)
	if err != nil {
		return nil, err
	}

	live := make([]*domain.Note, 0, len(notes))
	for _, n := range notes {
		if !n.IsDeleted {
			live = append(live, n)
		}
	}
	return live, nil
}

// Put upserts a note behind a version precondition. ExpectedVersion 0 means
// the client believes the note does not exist yet; anything else must match
// the stored version exactly or the current copy comes back in a
// ConflictError.
func (s *NoteService) Put(userID, deviceID string, req *domain.PutNoteRequest) (*domain.Note, error) {
	note := req.Entity
	now := time.Now()

	existing, err := s.repo.FindByID(note.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if req.ExpectedVersion != 0 {
			return nil, &ConflictError{Current: nil}
		}
		note.CreatedAt = now
		note.Version = 1

	case err != nil:
		return nil, err

	default:
		if existing.OwnerID != userID {
			return nil, ErrUnauthorized
		}
		// a tombstone behaves like an absent note for creation purposes,
		// but its version line continues so stale clients still conflict
		if existing.IsDeleted && req.ExpectedVersion == 0 {
			note.CreatedAt = now
			note.Version = existing.Version + 1
		} else {
			if req.ExpectedVersion != existing.Version {
				return nil, &ConflictError{Current: existing}
			}
			note.CreatedAt = existing.CreatedAt
			note.Version = existing.Version + 1
		}
	}

	note.OwnerID = userID
	note.UpdatedAt = now
	note.IsDeleted = false

	if err := s.repo.Save(&note); err != nil {
		return nil, err
	}

	changeType := domain.ChangeUpdate
	if note.Version == 1 {
		changeType = domain.ChangeInsert
	}
	s.syncService.BroadcastChange(
		[]string{userID}, deviceID,
		changeType, domain.CollectionNotes, note.ID, note.Version, &note,
	)

	return &note, nil
}

// Delete tombstones a note. Deleting an absent or already deleted note is a
// no-op so replays stay idempotent.
func (s *NoteService) Delete(userID, deviceID, noteID string) error {
	note, err := s.repo.FindByID(noteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if note.OwnerID != userID {
		return ErrUnauthorized
	}
	if note.IsDeleted {
		return nil
	}

	note.IsDeleted = true
	note.UpdatedAt = time.Now()
	note.Version++

	if err := s.repo.Save(note); err != nil {
		return err
	}

	s.syncService.BroadcastChange(
		[]string{userID}, deviceID,
		domain.ChangeDelete, domain.CollectionNotes, note.ID, note.Version, nil,
	)

	return nil
}
