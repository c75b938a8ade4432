package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dog-boarding/backend/internal/api/middleware"
	"github.com/dog-boarding/backend/internal/storage/models"
)

// SettingsReader reads the last-sync summary.
type SettingsReader interface {
	Get(ctx context.Context) (*models.SyncSettings, error)
}

// NextRunner reports when the scheduled sync runs next.
type NextRunner interface {
	GetNextRun() *time.Time
}

// SyncSettingsResponse is the sync summary shown on the dashboard. The
// cached site session is never exposed.
type SyncSettingsResponse struct {
	LastSyncAt      *time.Time `json:"last_sync_at"`
	LastSyncStatus  *string    `json:"last_sync_status"`
	LastSyncMessage *string    `json:"last_sync_message"`
	Schedule        string     `json:"schedule,omitempty"`
	NextSyncAt      *time.Time `json:"next_sync_at,omitempty"`
	Running         bool       `json:"running"`
}

// GetSyncSettings returns the last-sync summary and schedule. scheduler
// and running may be nil.
func GetSyncSettings(settings SettingsReader, scheduler NextRunner, schedule string, running func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := settings.Get(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync settings")
			return
		}

		resp := SyncSettingsResponse{Schedule: schedule}
		if s != nil {
			resp.LastSyncAt = s.LastSyncAt
			resp.LastSyncStatus = s.LastSyncStatus
			resp.LastSyncMessage = s.LastSyncMessage
		}
		if scheduler != nil {
			resp.NextSyncAt = scheduler.GetNextRun()
		}
		if running != nil {
			resp.Running = running()
		}

		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}
