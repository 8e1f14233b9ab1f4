package repository

import (
	"context"
	"fmt"

	"notewire/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type MembershipRepository interface {
	Save(membership *domain.GroupMembership) error
	FindByID(id string) (*domain.GroupMembership, error)
	ListByUser(userID string) ([]*domain.GroupMembership, error)
	ListByGroup(groupID string) ([]*domain.GroupMembership, error)
}

type membershipRepository struct {
	client *kivik.Client
	dbName string
}

func NewMembershipRepository(client *kivik.Client, dbName string) MembershipRepository {
	return &membershipRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *membershipRepository) Save(membership *domain.GroupMembership) error {
	return saveDoc(r.client, r.dbName, "membership:"+membership.ID, membership)
}

func (r *membershipRepository) FindByID(id string) (*domain.GroupMembership, error) {
	var membership domain.GroupMembership
	if err := getDoc(r.client, r.dbName, "membership:"+id, &membership); err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *membershipRepository) ListByUser(userID string) ([]*domain.GroupMembership, error) {
	return r.list(map[string]interface{}{
		"user_id":  userID,
		"group_id": map[string]interface{}{"$exists": true},
		"role":     map[string]interface{}{"$exists": true},
	})
}

func (r *membershipRepository) ListByGroup(groupID string) ([]*domain.GroupMembership, error) {
	return r.list(map[string]interface{}{
		"group_id": groupID,
		"user_id":  map[string]interface{}{"$exists": true},
		"role":     map[string]interface{}{"$exists": true},
	})
}

func (r *membershipRepository) list(selector map[string]interface{}) ([]*domain.GroupMembership, error) {
	db := r.client.DB(r.dbName)

	rows := db.Find(context.Background(), map[string]interface{}{"selector": selector})
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*domain.GroupMembership
	for rows.Next() {
		var membership domain.GroupMembership
		if err := rows.ScanDoc(&membership); err != nil {
			continue
		}
		memberships = append(memberships, &membership)
	}

	return memberships, nil
}
