package websocket

import (
	"encoding/json"
	"time"

	"notewire/internal/domain"
)

type MessageType string

const (
	TypeChange MessageType = "change"
	TypePing   MessageType = "ping"
	TypePong   MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func NewChangeMessage(change *domain.ChangeEvent) (*Message, error) {
	payload, err := json.Marshal(change)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      TypeChange,
		Timestamp: time.Now(),
		Payload:   payload,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
