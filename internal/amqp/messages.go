package amqp

import (
	"encoding/json"
	"time"
)

// NotificationMessage carries one user-facing notification across the broker.
type NotificationMessage struct {
	User      string    `json:"user"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNotificationMessage stamps a notification with the current time.
func NewNotificationMessage(user, kind, message string) *NotificationMessage {
	return &NotificationMessage{
		User:      user,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON decodes a message published by PublishNotification.
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
