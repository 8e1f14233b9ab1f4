package repository

import (
	"context"
	"fmt"

	"notewire/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type NoteRepository interface {
	Save(note *domain.Note) error
	FindByID(id string) (*domain.Note, error)
	ListByOwner(ownerID string) ([]*domain.Note, error)
}

type noteRepository struct {
	client *kivik.Client
	dbName string
}

func NewNoteRepository(client *kivik.Client, dbName string) NoteRepository {
	return &noteRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *noteRepository) Save(note *domain.Note) error {
	return saveDoc(r.client, r.dbName, "note:"+note.ID, note)
}

func (r *noteRepository) FindByID(id string) (*domain.Note, error) {
	var note domain.Note
	if err := getDoc(r.client, r.dbName, "note:"+id, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *noteRepository) ListByOwner(ownerID string) ([]*domain.Note, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"owner_id": ownerID,
			"title":    map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var note domain.Note
		if err := rows.ScanDoc(&note); err != nil {
			continue
		}
		notes = append(notes, &note)
	}

	return notes, nil
}
