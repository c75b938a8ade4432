package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dog-boarding/backend/internal/storage/models"
)

const (
	syncLogsTable   = "sync_logs"
	settingsTable   = "sync_settings"
	cronHealthTable = "cron_health"
)

var settingsFilter = url.Values{"id": {eq(strconv.Itoa(models.SyncSettingsID))}}

// SyncLogTable stores the audit trail of sync runs.
type SyncLogTable struct {
	c *Client
}

// Create inserts a new log in the running state.
func (t *SyncLogTable) Create(ctx context.Context, l *models.SyncLog) error {
	if l.ID == "" {
		l.ID = newID()
	}
	if l.StartedAt.IsZero() {
		l.StartedAt = t.c.now()
	}
	l.Status = models.SyncStatusRunning
	if l.Errors == nil {
		l.Errors = []models.SyncError{}
	}

	err := t.c.do(ctx, request{
		method: http.MethodPost,
		table:  syncLogsTable,
		body:   l,
		prefer: "return=minimal",
	}, nil)
	if err != nil {
		return fmt.Errorf("inserting sync log: %w", err)
	}
	return nil
}

// Complete writes the terminal state of a run.
func (t *SyncLogTable) Complete(ctx context.Context, l *models.SyncLog) error {
	errs := l.Errors
	if errs == nil {
		errs = []models.SyncError{}
	}

	var rows []struct {
		ID string `json:"id"`
	}
	err := t.c.do(ctx, request{
		method: http.MethodPatch,
		table:  syncLogsTable,
		query:  url.Values{"id": {eq(l.ID)}, "select": {"id"}},
		body: map[string]any{
			"status":               l.Status,
			"completed_at":         l.CompletedAt,
			"appointments_found":   l.AppointmentsFound,
			"appointments_created": l.AppointmentsCreated,
			"appointments_updated": l.AppointmentsUpdated,
			"appointments_failed":  l.AppointmentsFailed,
			"errors":               errs,
			"duration_ms":          l.DurationMS,
		},
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return fmt.Errorf("completing sync log: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("completing sync log %s: %w", l.ID, ErrNotFound)
	}
	return nil
}

// GetByID retrieves a log by its ID, or nil if none exists.
func (t *SyncLogTable) GetByID(ctx context.Context, id string) (*models.SyncLog, error) {
	var rows []models.SyncLog
	err := t.c.do(ctx, request{
		method: http.MethodGet,
		table:  syncLogsTable,
		query:  selectAll("id", eq(id)),
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying sync log: %w", err)
	}
	return first(rows), nil
}

// List retrieves the most recent logs, newest first.
func (t *SyncLogTable) List(ctx context.Context, limit int) ([]models.SyncLog, error) {
	logs := []models.SyncLog{}
	err := t.c.do(ctx, request{
		method: http.MethodGet,
		table:  syncLogsTable,
		query:  selectAll("order", "started_at.desc", "limit", strconv.Itoa(limit)),
	}, &logs)
	if err != nil {
		return nil, fmt.Errorf("querying sync logs: %w", err)
	}
	return logs, nil
}

// SettingsTable stores the singleton sync_settings row.
type SettingsTable struct {
	c *Client
}

// Get returns the summary, or nil before the first run.
func (t *SettingsTable) Get(ctx context.Context) (*models.SyncSettings, error) {
	q := url.Values{"select": {"id,last_sync_at,last_sync_status,last_sync_message,updated_at"}}
	for k, v := range settingsFilter {
		q[k] = v
	}

	var rows []models.SyncSettings
	if err := t.c.do(ctx, request{method: http.MethodGet, table: settingsTable, query: q}, &rows); err != nil {
		return nil, fmt.Errorf("querying sync settings: %w", err)
	}
	return first(rows), nil
}

// upsert merges body into the settings row, creating it if needed.
func (t *SettingsTable) upsert(ctx context.Context, body map[string]any) error {
	body["id"] = models.SyncSettingsID
	return t.c.do(ctx, request{
		method: http.MethodPost,
		table:  settingsTable,
		query:  url.Values{"on_conflict": {"id"}},
		body:   body,
		prefer: preferMergeUpsert,
	}, nil)
}

// UpsertSummary overwrites the last-sync columns, leaving the session alone.
func (t *SettingsTable) UpsertSummary(ctx context.Context, s *models.SyncSettings) error {
	s.ID = models.SyncSettingsID
	s.UpdatedAt = t.c.now()

	err := t.upsert(ctx, map[string]any{
		"last_sync_at":      s.LastSyncAt,
		"last_sync_status":  s.LastSyncStatus,
		"last_sync_message": s.LastSyncMessage,
		"updated_at":        s.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("upserting sync settings: %w", err)
	}
	return nil
}

// GetSession returns the cached session, or nil when none is stored.
// Expiry is left to the caller.
func (t *SettingsTable) GetSession(ctx context.Context) (*models.SessionCache, error) {
	q := url.Values{"select": {"session_cookies,session_expires_at"}}
	for k, v := range settingsFilter {
		q[k] = v
	}

	var rows []struct {
		Cookies   *string    `json:"session_cookies"`
		ExpiresAt *time.Time `json:"session_expires_at"`
	}
	if err := t.c.do(ctx, request{method: http.MethodGet, table: settingsTable, query: q}, &rows); err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	row := first(rows)
	if row == nil || models.Deref(row.Cookies) == "" || row.ExpiresAt == nil {
		return nil, nil
	}
	return &models.SessionCache{Cookies: *row.Cookies, ExpiresAt: row.ExpiresAt.UTC()}, nil
}

// StoreSession saves an authenticated cookie header until expiresAt.
func (t *SettingsTable) StoreSession(ctx context.Context, cookies string, expiresAt time.Time) error {
	err := t.upsert(ctx, map[string]any{
		"session_cookies":    cookies,
		"session_expires_at": expiresAt.UTC(),
		"updated_at":         t.c.now(),
	})
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// ClearSession forgets the cached session.
func (t *SettingsTable) ClearSession(ctx context.Context) error {
	err := t.c.do(ctx, request{
		method: http.MethodPatch,
		table:  settingsTable,
		query:  settingsFilter,
		body: map[string]any{
			"session_cookies":    nil,
			"session_expires_at": nil,
			"updated_at":         t.c.now(),
		},
		prefer: "return=minimal",
	}, nil)
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// CronHealthTable records the last outcome of each scheduled job.
type CronHealthTable struct {
	c *Client
}

// Upsert replaces the health row for h.CronName.
func (t *CronHealthTable) Upsert(ctx context.Context, h *models.CronHealth) error {
	h.UpdatedAt = t.c.now()
	h.LastRanAt = h.LastRanAt.UTC()

	err := t.c.do(ctx, request{
		method: http.MethodPost,
		table:  cronHealthTable,
		query:  url.Values{"on_conflict": {"cron_name"}},
		body:   h,
		prefer: preferMergeUpsert,
	}, nil)
	if err != nil {
		return fmt.Errorf("upserting cron health: %w", err)
	}
	return nil
}

// Get returns the health row for name, or nil if the job never ran.
func (t *CronHealthTable) Get(ctx context.Context, name string) (*models.CronHealth, error) {
	var rows []models.CronHealth
	err := t.c.do(ctx, request{
		method: http.MethodGet,
		table:  cronHealthTable,
		query:  selectAll("cron_name", eq(name)),
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying cron health: %w", err)
	}
	return first(rows), nil
}
