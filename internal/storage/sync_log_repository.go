package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/dog-boarding/backend/internal/storage/models"
)

const syncLogColumns = `id, status, started_at, completed_at, appointments_found,
	appointments_created, appointments_updated, appointments_failed, errors, duration_ms`

// SyncLogRepository provides data access for sync run audit records.
type SyncLogRepository struct {
	BaseRepository
}

// NewSyncLogRepository creates a new sync log repository.
func NewSyncLogRepository(db *DB) *SyncLogRepository {
	return &SyncLogRepository{BaseRepository: NewBaseRepository(db)}
}

func scanSyncLog(s rowScanner) (*models.SyncLog, error) {
	l := &models.SyncLog{}
	var errs string
	err := s.Scan(
		&l.ID, &l.Status, &l.StartedAt, &l.CompletedAt, &l.AppointmentsFound,
		&l.AppointmentsCreated, &l.AppointmentsUpdated, &l.AppointmentsFailed,
		&errs, &l.DurationMS,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(errs), &l.Errors); err != nil {
		return nil, fmt.Errorf("decoding errors of sync log %s: %w", l.ID, err)
	}
	if l.Errors == nil {
		l.Errors = []models.SyncError{}
	}
	return l, nil
}

func encodeSyncErrors(errs []models.SyncError) (string, error) {
	if errs == nil {
		errs = []models.SyncError{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("encoding sync errors: %w", err)
	}
	return string(b), nil
}

// Create inserts a new log in the running state.
func (r *SyncLogRepository) Create(ctx context.Context, l *models.SyncLog) error {
	if l.ID == "" {
		l.ID = GenerateID()
	}
	if l.StartedAt.IsZero() {
		l.StartedAt = r.Now()
	}
	l.Status = models.SyncStatusRunning

	errs, err := encodeSyncErrors(l.Errors)
	if err != nil {
		return err
	}

	_, err = r.DB().ExecContext(ctx, `
		INSERT INTO sync_logs (`+syncLogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID, l.Status, l.StartedAt, l.CompletedAt, l.AppointmentsFound,
		l.AppointmentsCreated, l.AppointmentsUpdated, l.AppointmentsFailed,
		errs, l.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting sync log: %w", err)
	}
	return nil
}

// Complete writes the terminal state of a run.
func (r *SyncLogRepository) Complete(ctx context.Context, l *models.SyncLog) error {
	errs, err := encodeSyncErrors(l.Errors)
	if err != nil {
		return err
	}

	res, err := r.DB().ExecContext(ctx, `
		UPDATE sync_logs SET
			status = ?, completed_at = ?, appointments_found = ?, appointments_created = ?,
			appointments_updated = ?, appointments_failed = ?, errors = ?, duration_ms = ?
		WHERE id = ?
	`,
		l.Status, l.CompletedAt, l.AppointmentsFound, l.AppointmentsCreated,
		l.AppointmentsUpdated, l.AppointmentsFailed, errs, l.DurationMS, l.ID,
	)
	if err != nil {
		return fmt.Errorf("completing sync log: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return fmt.Errorf("completing sync log %s: %w", l.ID, err)
	}
	return nil
}

// GetByID retrieves a log by its ID, or nil if none exists.
func (r *SyncLogRepository) GetByID(ctx context.Context, id string) (*models.SyncLog, error) {
	l, err := scanSyncLog(r.DB().QueryRowContext(ctx,
		`SELECT `+syncLogColumns+` FROM sync_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync log: %w", err)
	}
	return l, nil
}

// List retrieves the most recent logs, newest first.
func (r *SyncLogRepository) List(ctx context.Context, limit int) ([]models.SyncLog, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+syncLogColumns+` FROM sync_logs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync logs: %w", err)
	}
	defer rows.Close()

	var logs []models.SyncLog
	for rows.Next() {
		l, err := scanSyncLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}
