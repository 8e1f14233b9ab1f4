package service

import (
	"errors"
	"time"

	"notewire/internal/domain"
	"notewire/internal/repository"
)

type FriendshipService struct {
	repo        repository.FriendshipRepository
	syncService *SyncService
}

func NewFriendshipService(repo repository.FriendshipRepository, syncService *SyncService) *FriendshipService {
	return &FriendshipService{
		repo:        repo,
		syncService: syncService,
	}
}

func (s *FriendshipService) List(userID string) ([]*domain.Friendship, error) {
	friendships, err := s.repo.ListInvolving(userID)
	if err != nil {
		return nil, err
	}

	live := make([]*domain.Friendship, 0, len(friendships))
	for _, f := range friendships {
		if !f.IsDeleted {
			live = append(live, f)
		}
	}
	return live, nil
}

func (s *FriendshipService) Put(userID, deviceID string, req *domain.PutFriendshipRequest) (*domain.Friendship, error) {
	friendship := req.Entity
	if !friendship.Involves(userID) {
		return nil, ErrUnauthorized
	}
	now := time.Now()

	existing, err := s.repo.FindByID(friendship.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if req.ExpectedVersion != 0 {
			return nil, &ConflictError{Current: nil}
		}
		// only the requester opens a friendship, and it opens pending
		if friendship.RequesterID != userID {
			return nil, ErrForbidden
		}
		friendship.State = domain.FriendshipPending
		friendship.CreatedAt = now
		friendship.Version = 1

	case err != nil:
		return nil, err

	default:
		if !existing.Involves(userID) {
			return nil, ErrUnauthorized
		}
		if req.ExpectedVersion != existing.Version {
			return nil, &ConflictError{Current: existing}
		}
		// the two endpoints are fixed for the life of the friendship
		friendship.RequesterID = existing.RequesterID
		friendship.AddresseeID = existing.AddresseeID
		friendship.CreatedAt = existing.CreatedAt
		friendship.Version = existing.Version + 1
	}

	friendship.UpdatedAt = now
	friendship.IsDeleted = false

	if err := s.repo.Save(&friendship); err != nil {
		return nil, err
	}

	changeType := domain.ChangeUpdate
	if friendship.Version == 1 {
		changeType = domain.ChangeInsert
	}
	s.syncService.BroadcastChange(
		[]string{friendship.RequesterID, friendship.AddresseeID}, deviceID,
		changeType, domain.CollectionFriendships, friendship.ID, friendship.Version, &friendship,
	)

	return &friendship, nil
}

func (s *FriendshipService) Delete(userID, deviceID, friendshipID string) error {
	friendship, err := s.repo.FindByID(friendshipID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !friendship.Involves(userID) {
		return ErrUnauthorized
	}
	if friendship.IsDeleted {
		return nil
	}

	friendship.IsDeleted = true
	friendship.UpdatedAt = time.Now()
	friendship.Version++

	if err := s.repo.Save(friendship); err != nil {
		return err
	}

	s.syncService.BroadcastChange(
		[]string{friendship.RequesterID, friendship.AddresseeID}, deviceID,
		domain.ChangeDelete, domain.CollectionFriendships, friendship.ID, friendship.Version, nil,
	)

	return nil
}
