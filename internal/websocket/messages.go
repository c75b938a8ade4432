package websocket

import (
	"time"

	"github.com/goccy/go-json"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeSyncStarted   MessageType = "sync.started"
	TypeSyncCompleted MessageType = "sync.completed"
	TypeSyncFailed    MessageType = "sync.failed"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncStartedPayload is the payload for sync.started events.
type SyncStartedPayload struct {
	SyncLogID string `json:"sync_log_id"`
}

// SyncCompletedPayload is the payload for sync.completed and sync.failed events.
type SyncCompletedPayload struct {
	SyncLogID           string `json:"sync_log_id,omitempty"`
	Status              string `json:"status"`
	AppointmentsFound   int    `json:"appointments_found"`
	AppointmentsCreated int    `json:"appointments_created"`
	AppointmentsUpdated int    `json:"appointments_updated"`
	AppointmentsFailed  int    `json:"appointments_failed"`
	DurationMS          int64  `json:"duration_ms"`
	Error               string `json:"error,omitempty"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
