package service

import (
	"errors"
	"time"

	"notewire/internal/domain"
	"notewire/internal/repository"

	"github.com/google/uuid"
)

// ChatService owns groups, memberships and messages. All three share the
// same visibility rule: change events reach the group's live members only.
type ChatService struct {
	groupRepo      repository.GroupRepository
	membershipRepo repository.MembershipRepository
	messageRepo    repository.MessageRepository
	syncService    *SyncService
}

func NewChatService(
	groupRepo repository.GroupRepository,
	membershipRepo repository.MembershipRepository,
	messageRepo repository.MessageRepository,
	syncService *SyncService,
) *ChatService {
	return &ChatService{
		groupRepo:      groupRepo,
		membershipRepo: membershipRepo,
		messageRepo:    messageRepo,
		syncService:    syncService,
	}
}

func (s *ChatService) memberIDs(groupID string) ([]string, error) {
	memberships, err := s.membershipRepo.ListByGroup(groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if !m.IsDeleted {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}

func (s *ChatService) membership(groupID, userID string) (*domain.GroupMembership, error) {
	memberships, err := s.membershipRepo.ListByGroup(groupID)
	if err != nil {
		return nil, err
	}
	for _, m := range memberships {
		if m.UserID == userID && !m.IsDeleted {
			return m, nil
		}
	}
	return nil, ErrForbidden
}

func (s *ChatService) userGroupIDs(userID string) ([]string, error) {
	memberships, err := s.membershipRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if !m.IsDeleted {
			ids = append(ids, m.GroupID)
		}
	}
	return ids, nil
}

func (s *ChatService) ListGroups(userID string) ([]*domain.ChatGroup, error) {
	groupIDs, err := s.userGroupIDs(userID)
	if err != nil {
		return nil, err
	}

	groups := make([]*domain.ChatGroup, 0, len(groupIDs))
	for _, id := range groupIDs {
		group, err := s.groupRepo.FindByID(id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !group.IsDeleted {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

func (s *ChatService) PutGroup(userID, deviceID string, req *domain.PutGroupRequest) (*domain.ChatGroup, error) {
	group := req.Entity
	now := time.Now()

	existing, err := s.groupRepo.FindByID(group.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if req.ExpectedVersion != 0 {
			return nil, &ConflictError{Current: nil}
		}
		group.OwnerID = userID
		group.CreatedAt = now
		group.Version = 1

	case err != nil:
		return nil, err

	default:
		if existing.OwnerID != userID {
			return nil, ErrForbidden
		}
		if req.ExpectedVersion != existing.Version {
			return nil, &ConflictError{Current: existing}
		}
		group.OwnerID = existing.OwnerID
		group.CreatedAt = existing.CreatedAt
		group.Version = existing.Version + 1
	}

	group.UpdatedAt = now
	group.IsDeleted = false

	if err := s.groupRepo.Save(&group); err != nil {
		return nil, err
	}

	// a fresh group gets its owner membership in the same stroke
	if group.Version == 1 {
		membership := &domain.GroupMembership{
			ID:        uuid.New().String(),
			GroupID:   group.ID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		}
		if err := s.membershipRepo.Save(membership); err != nil {
			return nil, err
		}
		s.syncService.BroadcastChange(
			[]string{userID}, deviceID,
			domain.ChangeInsert, domain.CollectionMemberships, membership.ID, membership.Version, membership,
		)
	}

	members, err := s.memberIDs(group.ID)
	if err != nil {
		return nil, err
	}
	changeType := domain.ChangeUpdate
	if group.Version == 1 {
		changeType = domain.ChangeInsert
	}
	s.syncService.BroadcastChange(
		members, deviceID,
		changeType, domain.CollectionGroups, group.ID, group.Version, &group,
	)

	return &group, nil
}

func (s *ChatService) DeleteGroup(userID, deviceID, groupID string) error {
	group, err := s.groupRepo.FindByID(groupID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if group.OwnerID != userID {
		return ErrForbidden
	}
	if group.IsDeleted {
		return nil
	}

	members, err := s.memberIDs(groupID)
	if err != nil {
		return err
	}

	group.IsDeleted = true
	group.UpdatedAt = time.Now()
	group.Version++

	if err := s.groupRepo.Save(group); err != nil {
		return err
	}

	s.syncService.BroadcastChange(
		members, deviceID,
		domain.ChangeDelete, domain.CollectionGroups, group.ID, group.Version, nil,
	)

	return nil
}

// ListMemberships returns every live membership of every group the user
// belongs to, so clients can render rosters.
func (s *ChatService) ListMemberships(userID string) ([]*domain.GroupMembership, error) {
	groupIDs, err := s.userGroupIDs(userID)
	if err != nil {
		return nil, err
	}

	var all []*domain.GroupMembership
	for _, groupID := range groupIDs {
		memberships, err := s.membershipRepo.ListByGroup(groupID)
		if err != nil {
			return nil, err
		}
		for _, m := range memberships {
			if !m.IsDeleted {
				all = append(all, m)
			}
		}
	}
	return all, nil
}

func (s *ChatService) PutMembership(userID, deviceID string, req *domain.PutMembershipRequest) (*domain.GroupMembership, error) {
	membership := req.Entity
	now := time.Now()

	group, err := s.groupRepo.FindByID(membership.GroupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if group.IsDeleted {
		return nil, ErrNotFound
	}

	existing, err := s.membershipRepo.FindByID(membership.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if req.ExpectedVersion != 0 {
			return nil, &ConflictError{Current: nil}
		}
		// only the group owner seats new members
		if group.OwnerID != userID {
			return nil, ErrForbidden
		}
		if membership.Role == "" {
			membership.Role = domain.RoleMember
		}
		membership.CreatedAt = now
		membership.Version = 1

	case err != nil:
		return nil, err

	default:
		if group.OwnerID != userID {
			return nil, ErrForbidden
		}
		if req.ExpectedVersion != existing.Version {
			return nil, &ConflictError{Current: existing}
		}
		membership.GroupID = existing.GroupID
		membership.UserID = existing.UserID
		membership.CreatedAt = existing.CreatedAt
		membership.Version = existing.Version + 1
	}

	membership.UpdatedAt = now
	membership.IsDeleted = false

	if err := s.membershipRepo.Save(&membership); err != nil {
		return nil, err
	}

	members, err := s.memberIDs(membership.GroupID)
	if err != nil {
		return nil, err
	}
	changeType := domain.ChangeUpdate
	if membership.Version == 1 {
		changeType = domain.ChangeInsert
	}
	s.syncService.BroadcastChange(
		members, deviceID,
		changeType, domain.CollectionMemberships, membership.ID, membership.Version, &membership,
	)

	return &membership, nil
}

// DeleteMembership removes a seat. The group owner can remove anyone;
// a member can remove themselves to leave.
func (s *ChatService) DeleteMembership(userID, deviceID, membershipID string) error {
	membership, err := s.membershipRepo.FindByID(membershipID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if membership.IsDeleted {
		return nil
	}

	group, err := s.groupRepo.FindByID(membership.GroupID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if membership.UserID != userID && (group == nil || group.OwnerID != userID) {
		return ErrForbidden
	}

	// snapshot the roster before the seat disappears so the removed member
	// still hears about their own removal
	members, err := s.memberIDs(membership.GroupID)
	if err != nil {
		return err
	}

	membership.IsDeleted = true
	membership.UpdatedAt = time.Now()
	membership.Version++

	if err := s.membershipRepo.Save(membership); err != nil {
		return err
	}

	s.syncService.BroadcastChange(
		members, deviceID,
		domain.ChangeDelete, domain.CollectionMemberships, membership.ID, membership.Version, nil,
	)

	return nil
}

func (s *ChatService) ListMessages(userID string) ([]*domain.ChatMessage, error) {
	groupIDs, err := s.userGroupIDs(userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByGroups(groupIDs)
	if err != nil {
		return nil, err
	}

	live := make([]*domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if !m.IsDeleted {
			live = append(live, m)
		}
	}
	return live, nil
}

func (s *ChatService) PutMessage(userID, deviceID string, req *domain.PutMessageRequest) (*domain.ChatMessage, error) {
	message := req.Entity
	now := time.Now()

	if _, err := s.membership(message.GroupID, userID); err != nil {
		return nil, err
	}

	existing, err := s.messageRepo.FindByID(message.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if req.ExpectedVersion != 0 {
			return nil, &ConflictError{Current: nil}
		}
		message.AuthorID = userID
		message.CreatedAt = now
		message.Version = 1

	case err != nil:
		return nil, err

	default:
		if existing.AuthorID != userID {
			return nil, ErrForbidden
		}
		if req.ExpectedVersion != existing.Version {
			return nil, &ConflictError{Current: existing}
		}
		message.GroupID = existing.GroupID
		message.AuthorID = existing.AuthorID
		message.CreatedAt = existing.CreatedAt
		message.Version = existing.Version + 1
	}

	message.UpdatedAt = now
	message.IsDeleted = false

	if err := s.messageRepo.Save(&message); err != nil {
		return nil, err
	}

	members, err := s.memberIDs(message.GroupID)
	if err != nil {
		return nil, err
	}
	changeType := domain.ChangeUpdate
	if message.Version == 1 {
		changeType = domain.ChangeInsert
	}
	s.syncService.BroadcastChange(
		members, deviceID,
		changeType, domain.CollectionMessages, message.ID, message.Version, &message,
	)

	return &message, nil
}

func (s *ChatService) DeleteMessage(userID, deviceID, messageID string) error {
	message, err := s.messageRepo.FindByID(messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if message.AuthorID != userID {
		return ErrForbidden
	}
	if message.IsDeleted {
		return nil
	}

	message.IsDeleted = true
	message.UpdatedAt = time.Now()
	message.Version++

	if err := s.messageRepo.Save(message); err != nil {
		return err
	}

	members, err := s.memberIDs(message.GroupID)
	if err != nil {
		return err
	}
	s.syncService.BroadcastChange(
		members, deviceID,
		domain.ChangeDelete, domain.CollectionMessages, message.ID, message.Version, nil,
	)

	return nil
}
