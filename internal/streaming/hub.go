package streaming

import (
	"context"
	"time"
)

// Event is a real-time event emitted during session execution.
type Event struct {
	SessionID string    `json:"session_id"`
	StepID    string    `json:"step_id,omitempty"`
	Kind      string    `json:"kind"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Filter specifies which events a subscriber wants to receive.
type Filter struct {
	SessionID string   `json:"session_id,omitempty"`
	Kinds     []string `json:"kinds,omitempty"`
}

// Hub provides pub/sub for real-time session events. The core does not
// assume any particular transport behind a subscriber.
type Hub interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, filter Filter) (<-chan Event, func(), error)
}
