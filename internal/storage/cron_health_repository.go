package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dog-boarding/backend/internal/storage/models"
)

// CronHealthRepository records the last outcome of each scheduled job.
type CronHealthRepository struct {
	BaseRepository
}

// NewCronHealthRepository creates a new cron health repository.
func NewCronHealthRepository(db *DB) *CronHealthRepository {
	return &CronHealthRepository{BaseRepository: NewBaseRepository(db)}
}

// Upsert replaces the health row for h.CronName.
func (r *CronHealthRepository) Upsert(ctx context.Context, h *models.CronHealth) error {
	h.UpdatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO cron_health (cron_name, last_ran_at, status, result, error_msg, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cron_name) DO UPDATE SET
			last_ran_at = excluded.last_ran_at,
			status = excluded.status,
			result = excluded.result,
			error_msg = excluded.error_msg,
			updated_at = excluded.updated_at
	`, h.CronName, h.LastRanAt.UTC(), h.Status, h.Result, h.ErrorMsg, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting cron health: %w", err)
	}
	return nil
}

// Get returns the health row for name, or nil if the job never ran.
func (r *CronHealthRepository) Get(ctx context.Context, name string) (*models.CronHealth, error) {
	h := &models.CronHealth{}
	err := r.DB().QueryRowContext(ctx, `
		SELECT cron_name, last_ran_at, status, result, error_msg, updated_at
		FROM cron_health WHERE cron_name = ?
	`, name).Scan(&h.CronName, &h.LastRanAt, &h.Status, &h.Result, &h.ErrorMsg, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying cron health: %w", err)
	}
	return h, nil
}
