package models

import (
	"time"
)

// Sync run statuses. A run starts as running and ends in exactly one of the
// other three.
const (
	SyncStatusRunning = "running"
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusFailed  = "failed"
)

// SyncError is one sanitized failure recorded against a run.
type SyncError struct {
	ExternalID string `json:"externalId,omitempty"`
	Error      string `json:"error"`
}

// SyncLog is the audit record of one sync run.
type SyncLog struct {
	ID                  string      `json:"id,omitempty"`
	Status              string      `json:"status"`
	StartedAt           time.Time   `json:"started_at"`
	CompletedAt         *time.Time  `json:"completed_at"`
	AppointmentsFound   int         `json:"appointments_found"`
	AppointmentsCreated int         `json:"appointments_created"`
	AppointmentsUpdated int         `json:"appointments_updated"`
	AppointmentsFailed  int         `json:"appointments_failed"`
	Errors              []SyncError `json:"errors"`
	DurationMS          int64       `json:"duration_ms"`
}

// SyncSettingsID is the primary key of the singleton settings row.
const SyncSettingsID = 1

// SyncSettings is the last-sync summary shown to staff.
type SyncSettings struct {
	ID              int        `json:"id"`
	LastSyncAt      *time.Time `json:"last_sync_at"`
	LastSyncStatus  *string    `json:"last_sync_status"`
	LastSyncMessage *string    `json:"last_sync_message"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SessionCache is a stored authenticated cookie header for the external site.
type SessionCache struct {
	Cookies   string    `json:"session_cookies"`
	ExpiresAt time.Time `json:"session_expires_at"`
}

// Valid reports whether the session can still be used at now.
func (s *SessionCache) Valid(now time.Time) bool {
	return s != nil && s.Cookies != "" && now.Before(s.ExpiresAt)
}

// Cron health statuses.
const (
	CronStatusSuccess = "success"
	CronStatusFailure = "failure"
)

// CronHealth records the outcome of the most recent run of a scheduled job.
type CronHealth struct {
	CronName  string    `json:"cron_name"`
	LastRanAt time.Time `json:"last_ran_at"`
	Status    string    `json:"status"`
	Result    *string   `json:"result"`
	ErrorMsg  *string   `json:"error_msg"`
	UpdatedAt time.Time `json:"updated_at"`
}
