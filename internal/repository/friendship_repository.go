package repository

import (
	"context"
	"fmt"

	"notewire/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type FriendshipRepository interface {
	Save(friendship *domain.Friendship) error
	FindByID(id string) (*domain.Friendship, error)
	ListInvolving(userID string) ([]*domain.Friendship, error)
}

type friendshipRepository struct {
	client *kivik.Client
	dbName string
}

func NewFriendshipRepository(client *kivik.Client, dbName string) FriendshipRepository {
	return &friendshipRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *friendshipRepository) Save(friendship *domain.Friendship) error {
	return saveDoc(r.client, r.dbName, "friendship:"+friendship.ID, friendship)
}

func (r *friendshipRepository) FindByID(id string) (*domain.Friendship, error) {
	var friendship domain.Friendship
	if err := getDoc(r.client, r.dbName, "friendship:"+id, &friendship); err != nil {
		return nil, err
	}
	return &friendship, nil
}

func (r *friendshipRepository) ListInvolving(userID string) ([]*domain.Friendship, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"$or": []map[string]interface{}{
				{"requester_id": userID},
				{"addressee_id": userID},
			},
			"state": map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list friendships: %w", err)
	}
	defer rows.Close()

	var friendships []*domain.Friendship
	for rows.Next() {
		var friendship domain.Friendship
		if err := rows.ScanDoc(&friendship); err != nil {
			continue
		}
		friendships = append(friendships, &friendship)
	}

	return friendships, nil
}
