package websocket

import (
	"github.com/dog-boarding/backend/internal/syncjob"
)

// EventBroadcaster turns sync lifecycle notifications into WebSocket events.
// It satisfies syncjob.Events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// SyncStarted sends a sync.started event.
func (b *EventBroadcaster) SyncStarted(logID string) {
	b.broadcast(NewMessage(TypeSyncStarted, SyncStartedPayload{SyncLogID: logID}))
}

// SyncFinished sends sync.completed, or sync.failed when the run did not
// succeed.
func (b *EventBroadcaster) SyncFinished(res *syncjob.Result) {
	payload := SyncCompletedPayload{
		SyncLogID:           res.SyncLogID,
		Status:              res.Status,
		AppointmentsFound:   res.AppointmentsFound,
		AppointmentsCreated: res.AppointmentsCreated,
		AppointmentsUpdated: res.AppointmentsUpdated,
		AppointmentsFailed:  res.AppointmentsFailed,
		DurationMS:          res.DurationMS,
		Error:               res.Error,
	}

	msgType := TypeSyncCompleted
	if !res.Success {
		msgType = TypeSyncFailed
	}
	b.broadcast(NewMessage(msgType, payload))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		b.hub.log.Error().Err(err).Msg("Error encoding WebSocket message")
		return
	}

	b.hub.Broadcast(data)
}
