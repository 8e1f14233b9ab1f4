package service

import (
	"encoding/json"
	"log"
	"time"

	"notewire/internal/domain"
	"notewire/internal/websocket"
)

// SyncService fans change events out to connected devices. The originating
// device is always excluded so clients never see their own writes echoed.
type SyncService struct {
	manager *websocket.Manager
}

func NewSyncService(manager *websocket.Manager) *SyncService {
	return &SyncService{manager: manager}
}

func (s *SyncService) BroadcastChange(
	recipients []string,
	excludeDeviceID string,
	changeType domain.ChangeType,
	collection, entityID string,
	version int64,
	entity interface{},
) {
	if s == nil || s.manager == nil {
		return
	}

	change := &domain.ChangeEvent{
		Type:       changeType,
		Collection: collection,
		EntityID:   entityID,
		Version:    version,
		OccurredAt: time.Now(),
	}
	if entity != nil && changeType != domain.ChangeDelete {
		raw, err := json.Marshal(entity)
		if err != nil {
			log.Printf("failed to encode change entity: %v", err)
			return
		}
		change.Entity = raw
	}

	msg, err := websocket.NewChangeMessage(change)
	if err != nil {
		log.Printf("failed to build change message: %v", err)
		return
	}

	if err := s.manager.BroadcastToUsers(recipients, msg, excludeDeviceID); err != nil {
		log.Printf("failed to broadcast change: %v", err)
	}
}
