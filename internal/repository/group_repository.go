package repository

import (
	"notewire/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type GroupRepository interface {
	Save(group *domain.ChatGroup) error
	FindByID(id string) (*domain.ChatGroup, error)
}

type groupRepository struct {
	client *kivik.Client
	dbName string
}

func NewGroupRepository(client *kivik.Client, dbName string) GroupRepository {
	return &groupRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *groupRepository) Save(group *domain.ChatGroup) error {
	return saveDoc(r.client, r.dbName, "group:"+group.ID, group)
}

func (r *groupRepository) FindByID(id string) (*domain.ChatGroup, error) {
	var group domain.ChatGroup
	if err := getDoc(r.client, r.dbName, "group:"+id, &group); err != nil {
		return nil, err
	}
	return &group, nil
}
