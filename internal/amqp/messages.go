package amqp

import (
	"encoding/json"
	"time"

	"paylog/internal/core"
)

// EventMessage is the wire form of a change event on the fanout exchange.
type EventMessage struct {
	Type      string    `json:"type"`
	MemberID  int64     `json:"memberId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEventMessage wraps e for publishing.
func NewEventMessage(e core.ChangeEvent) *EventMessage {
	return &EventMessage{
		Type:      e.Type,
		MemberID:  e.MemberID,
		Timestamp: time.Now(),
	}
}

// Event returns the change event carried by the message.
func (m *EventMessage) Event() core.ChangeEvent {
	return core.ChangeEvent{Type: m.Type, MemberID: m.MemberID}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message body.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
