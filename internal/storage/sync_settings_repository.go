package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dog-boarding/backend/internal/storage/models"
)

// SyncSettingsRepository provides access to the singleton sync_settings row,
// which holds the last-sync summary and the cached site session.
type SyncSettingsRepository struct {
	BaseRepository
}

// NewSyncSettingsRepository creates a new sync settings repository.
func NewSyncSettingsRepository(db *DB) *SyncSettingsRepository {
	return &SyncSettingsRepository{BaseRepository: NewBaseRepository(db)}
}

// Get returns the summary, or nil before the first run.
func (r *SyncSettingsRepository) Get(ctx context.Context) (*models.SyncSettings, error) {
	s := &models.SyncSettings{}
	err := r.DB().QueryRowContext(ctx, `
		SELECT id, last_sync_at, last_sync_status, last_sync_message, updated_at
		FROM sync_settings WHERE id = ?
	`, models.SyncSettingsID).Scan(
		&s.ID, &s.LastSyncAt, &s.LastSyncStatus, &s.LastSyncMessage, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync settings: %w", err)
	}
	return s, nil
}

// UpsertSummary overwrites the last-sync columns, leaving the session alone.
func (r *SyncSettingsRepository) UpsertSummary(ctx context.Context, s *models.SyncSettings) error {
	s.ID = models.SyncSettingsID
	s.UpdatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO sync_settings (id, last_sync_at, last_sync_status, last_sync_message, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			last_sync_status = excluded.last_sync_status,
			last_sync_message = excluded.last_sync_message,
			updated_at = excluded.updated_at
	`, s.ID, s.LastSyncAt, s.LastSyncStatus, s.LastSyncMessage, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting sync settings: %w", err)
	}
	return nil
}

// GetSession returns the cached session, or nil when none is stored.
// Expiry is left to the caller.
func (r *SyncSettingsRepository) GetSession(ctx context.Context) (*models.SessionCache, error) {
	var cookies sql.NullString
	var expires sql.NullTime
	err := r.DB().QueryRowContext(ctx, `
		SELECT session_cookies, session_expires_at FROM sync_settings WHERE id = ?
	`, models.SyncSettingsID).Scan(&cookies, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	if !cookies.Valid || cookies.String == "" || !expires.Valid {
		return nil, nil
	}
	return &models.SessionCache{Cookies: cookies.String, ExpiresAt: expires.Time.UTC()}, nil
}

// StoreSession saves an authenticated cookie header until expiresAt.
func (r *SyncSettingsRepository) StoreSession(ctx context.Context, cookies string, expiresAt time.Time) error {
	now := r.Now()
	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO sync_settings (id, session_cookies, session_expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_cookies = excluded.session_cookies,
			session_expires_at = excluded.session_expires_at,
			updated_at = excluded.updated_at
	`, models.SyncSettingsID, cookies, expiresAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// ClearSession forgets the cached session.
func (r *SyncSettingsRepository) ClearSession(ctx context.Context) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE sync_settings SET session_cookies = NULL, session_expires_at = NULL, updated_at = ?
		WHERE id = ?
	`, r.Now(), models.SyncSettingsID)
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
