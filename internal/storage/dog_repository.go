package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dog-boarding/backend/internal/storage/models"
)

const dogColumns = `id, name, breed, source, external_id, active, day_rate, night_rate,
	owner_name, owner_email, owner_phone, created_at, updated_at`

// DogRepository provides data access for dogs.
type DogRepository struct {
	BaseRepository
}

// NewDogRepository creates a new dog repository.
func NewDogRepository(db *DB) *DogRepository {
	return &DogRepository{BaseRepository: NewBaseRepository(db)}
}

func scanDog(s rowScanner) (*models.Dog, error) {
	d := &models.Dog{}
	err := s.Scan(
		&d.ID, &d.Name, &d.Breed, &d.Source, &d.ExternalID, &d.Active,
		&d.DayRate, &d.NightRate, &d.OwnerName, &d.OwnerEmail, &d.OwnerPhone,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DogRepository) getOne(ctx context.Context, query string, args ...any) (*models.Dog, error) {
	d, err := scanDog(r.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying dog: %w", err)
	}
	return d, nil
}

// GetByID retrieves a dog by its ID, or nil if none exists.
func (r *DogRepository) GetByID(ctx context.Context, id string) (*models.Dog, error) {
	return r.getOne(ctx, `SELECT `+dogColumns+` FROM dogs WHERE id = ?`, id)
}

// GetByExternalID retrieves the dog imported under externalID, or nil.
func (r *DogRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Dog, error) {
	return r.getOne(ctx, `SELECT `+dogColumns+` FROM dogs WHERE external_id = ?`, externalID)
}

// FindByName returns the dog whose name equals name ignoring case, or nil.
// Manual dogs win over imported ones, then the oldest wins.
func (r *DogRepository) FindByName(ctx context.Context, name string) (*models.Dog, error) {
	return r.getOne(ctx, `
		SELECT `+dogColumns+` FROM dogs
		WHERE LOWER(name) = LOWER(?)
		ORDER BY (source = 'manual') DESC, created_at
		LIMIT 1
	`, name)
}

// List retrieves all dogs ordered by name.
func (r *DogRepository) List(ctx context.Context) ([]models.Dog, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+dogColumns+` FROM dogs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying dogs: %w", err)
	}
	defer rows.Close()

	var dogs []models.Dog
	for rows.Next() {
		d, err := scanDog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dog: %w", err)
		}
		dogs = append(dogs, *d)
	}
	return dogs, rows.Err()
}

// Create inserts a new dog, assigning its ID and timestamps.
func (r *DogRepository) Create(ctx context.Context, d *models.Dog) error {
	if d.ID == "" {
		d.ID = GenerateID()
	}
	d.CreatedAt = r.Now()
	d.UpdatedAt = d.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO dogs (`+dogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, d.Name, d.Breed, d.Source, d.ExternalID, d.Active, d.DayRate, d.NightRate,
		d.OwnerName, d.OwnerEmail, d.OwnerPhone, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting dog: %w", err)
	}
	return nil
}

// Update writes every mutable column of d and touches updated_at.
func (r *DogRepository) Update(ctx context.Context, d *models.Dog) error {
	d.UpdatedAt = r.Now()

	res, err := r.DB().ExecContext(ctx, `
		UPDATE dogs SET
			name = ?, breed = ?, source = ?, external_id = ?, active = ?,
			day_rate = ?, night_rate = ?, owner_name = ?, owner_email = ?,
			owner_phone = ?, updated_at = ?
		WHERE id = ?
	`,
		d.Name, d.Breed, d.Source, d.ExternalID, d.Active, d.DayRate, d.NightRate,
		d.OwnerName, d.OwnerEmail, d.OwnerPhone, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating dog: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return fmt.Errorf("updating dog %s: %w", d.ID, err)
	}
	return nil
}
