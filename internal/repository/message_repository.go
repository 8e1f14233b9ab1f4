package repository

import (
	"context"
	"fmt"

	"notewire/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type MessageRepository interface {
	Save(message *domain.ChatMessage) error
	FindByID(id string) (*domain.ChatMessage, error)
	ListByGroups(groupIDs []string) ([]*domain.ChatMessage, error)
}

type messageRepository struct {
	client *kivik.Client
	dbName string
}

func NewMessageRepository(client *kivik.Client, dbName string) MessageRepository {
	return &messageRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *messageRepository) Save(message *domain.ChatMessage) error {
	return saveDoc(r.client, r.dbName, "message:"+message.ID, message)
}

func (r *messageRepository) FindByID(id string) (*domain.ChatMessage, error) {
	var message domain.ChatMessage
	if err := getDoc(r.client, r.dbName, "message:"+id, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) ListByGroups(groupIDs []string) ([]*domain.ChatMessage, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"group_id":  map[string]interface{}{"$in": groupIDs},
			"author_id": map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		var message domain.ChatMessage
		if err := rows.ScanDoc(&message); err != nil {
			continue
		}
		messages = append(messages, &message)
	}

	return messages, nil
}
