package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dog-boarding/backend/internal/storage/models"
)

const boardingColumns = `id, dog_id, arrival_datetime, departure_datetime, source,
	external_id, status, created_at, updated_at`

// BoardingRepository provides data access for boardings.
type BoardingRepository struct {
	BaseRepository
}

// NewBoardingRepository creates a new boarding repository.
func NewBoardingRepository(db *DB) *BoardingRepository {
	return &BoardingRepository{BaseRepository: NewBaseRepository(db)}
}

func scanBoarding(s rowScanner) (*models.Boarding, error) {
	b := &models.Boarding{}
	err := s.Scan(
		&b.ID, &b.DogID, &b.ArrivalDateTime, &b.DepartureDateTime, &b.Source,
		&b.ExternalID, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetByExternalID retrieves the boarding imported under externalID, or nil.
func (r *BoardingRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Boarding, error) {
	b, err := scanBoarding(r.DB().QueryRowContext(ctx,
		`SELECT `+boardingColumns+` FROM boardings WHERE external_id = ?`, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying boarding: %w", err)
	}
	return b, nil
}

// ListByDog retrieves a dog's boardings, earliest arrival first.
func (r *BoardingRepository) ListByDog(ctx context.Context, dogID string) ([]models.Boarding, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+boardingColumns+` FROM boardings
		WHERE dog_id = ?
		ORDER BY arrival_datetime
	`, dogID)
	if err != nil {
		return nil, fmt.Errorf("querying boardings: %w", err)
	}
	defer rows.Close()

	var boardings []models.Boarding
	for rows.Next() {
		b, err := scanBoarding(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning boarding: %w", err)
		}
		boardings = append(boardings, *b)
	}
	return boardings, rows.Err()
}

// Create inserts a new boarding, assigning its ID and timestamps.
func (r *BoardingRepository) Create(ctx context.Context, b *models.Boarding) error {
	if b.ID == "" {
		b.ID = GenerateID()
	}
	b.CreatedAt = r.Now()
	b.UpdatedAt = b.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO boardings (`+boardingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.DogID, b.ArrivalDateTime.UTC(), b.DepartureDateTime.UTC(), b.Source,
		b.ExternalID, b.Status, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting boarding: %w", err)
	}
	return nil
}

// Update writes every mutable column of b and touches updated_at.
func (r *BoardingRepository) Update(ctx context.Context, b *models.Boarding) error {
	b.UpdatedAt = r.Now()

	res, err := r.DB().ExecContext(ctx, `
		UPDATE boardings SET
			dog_id = ?, arrival_datetime = ?, departure_datetime = ?, source = ?,
			external_id = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		b.DogID, b.ArrivalDateTime.UTC(), b.DepartureDateTime.UTC(), b.Source,
		b.ExternalID, b.Status, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("updating boarding: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return fmt.Errorf("updating boarding %s: %w", b.ID, err)
	}
	return nil
}
