package domain

import (
	"context"
	"time"
)

// MessageBroker defines the interface for message broker operations
type MessageBroker interface {
	// Publish sends a message to a specific topic/channel with a routing key
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens for messages on a specific topic/channel and routing key
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan Message, error)

	// Close closes the message broker connection
	Close() error
}

// Message represents a message received from the broker
type Message struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

// EventsTopic carries conversation events for push transports. All events
// share one routing key; consumers filter by session.
const (
	EventsTopic      = "concierge.events"
	EventsRoutingKey = "chat"
)

type EventType string

const (
	EventProfileSaved       EventType = "profile.saved"
	EventReservationCreated EventType = "reservation.created"
	EventSessionExpired     EventType = "session.expired"
)

// Event is published after a tool succeeded or a session was torn down.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	UserID    int64          `json:"user_id"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
