package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dog-boarding/backend/internal/storage/models"
)

const (
	dogsTable      = "dogs"
	boardingsTable = "boardings"
)

// DogTable stores dogs.
type DogTable struct {
	c *Client
}

func (t *DogTable) one(ctx context.Context, q map[string]string) (*models.Dog, error) {
	query := selectAll()
	for k, v := range q {
		query.Set(k, v)
	}
	var rows []models.Dog
	if err := t.c.do(ctx, request{method: http.MethodGet, table: dogsTable, query: query}, &rows); err != nil {
		return nil, fmt.Errorf("querying dog: %w", err)
	}
	return first(rows), nil
}

// GetByID retrieves a dog by its ID, or nil.
func (t *DogTable) GetByID(ctx context.Context, id string) (*models.Dog, error) {
	return t.one(ctx, map[string]string{"id": eq(id)})
}

// GetByExternalID retrieves the dog imported under externalID, or nil.
func (t *DogTable) GetByExternalID(ctx context.Context, externalID string) (*models.Dog, error) {
	return t.one(ctx, map[string]string{"external_id": eq(externalID)})
}

// FindByName returns the dog whose name equals name ignoring case, or nil.
// "manual" sorts after "external", so source.desc puts manual dogs first.
func (t *DogTable) FindByName(ctx context.Context, name string) (*models.Dog, error) {
	return t.one(ctx, map[string]string{
		"name":  ilikeExact(name),
		"order": "source.desc,created_at.asc",
		"limit": "1",
	})
}

// List retrieves all dogs ordered by name.
func (t *DogTable) List(ctx context.Context) ([]models.Dog, error) {
	dogs := []models.Dog{}
	err := t.c.do(ctx, request{
		method: http.MethodGet,
		table:  dogsTable,
		query:  selectAll("order", "name.asc"),
	}, &dogs)
	if err != nil {
		return nil, fmt.Errorf("querying dogs: %w", err)
	}
	return dogs, nil
}

// Create inserts a new dog, assigning its ID and timestamps.
func (t *DogTable) Create(ctx context.Context, d *models.Dog) error {
	if d.ID == "" {
		d.ID = newID()
	}
	d.CreatedAt = t.c.now()
	d.UpdatedAt = d.CreatedAt

	var rows []models.Dog
	err := t.c.do(ctx, request{
		method: http.MethodPost,
		table:  dogsTable,
		body:   d,
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return fmt.Errorf("inserting dog: %w", err)
	}
	if row := first(rows); row != nil {
		*d = *row
	}
	return nil
}

// Update writes every mutable column of d and touches updated_at.
func (t *DogTable) Update(ctx context.Context, d *models.Dog) error {
	d.UpdatedAt = t.c.now()

	var rows []models.Dog
	err := t.c.do(ctx, request{
		method: http.MethodPatch,
		table:  dogsTable,
		query:  url.Values{"id": {eq(d.ID)}},
		body:   d,
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return fmt.Errorf("updating dog: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("updating dog %s: %w", d.ID, ErrNotFound)
	}
	return nil
}

// BoardingTable stores boardings.
type BoardingTable struct {
	c *Client
}

// GetByExternalID retrieves the boarding imported under externalID, or nil.
func (t *BoardingTable) GetByExternalID(ctx context.Context, externalID string) (*models.Boarding, error) {
	var rows []models.Boarding
	err := t.c.do(ctx, request{
		method: http.MethodGet,
		table:  boardingsTable,
		query:  selectAll("external_id", eq(externalID)),
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying boarding: %w", err)
	}
	return first(rows), nil
}

// ListByDog retrieves a dog's boardings, earliest arrival first.
func (t *BoardingTable) ListByDog(ctx context.Context, dogID string) ([]models.Boarding, error) {
	rows := []models.Boarding{}
	err := t.c.do(ctx, request{
		method: http.MethodGet,
		table:  boardingsTable,
		query:  selectAll("dog_id", eq(dogID), "order", "arrival_datetime.asc"),
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying boardings: %w", err)
	}
	return rows, nil
}

// Create inserts a new boarding, assigning its ID and timestamps.
func (t *BoardingTable) Create(ctx context.Context, b *models.Boarding) error {
	if b.ID == "" {
		b.ID = newID()
	}
	b.CreatedAt = t.c.now()
	b.UpdatedAt = b.CreatedAt

	err := t.c.do(ctx, request{
		method: http.MethodPost,
		table:  boardingsTable,
		body:   b,
		prefer: "return=minimal",
	}, nil)
	if err != nil {
		return fmt.Errorf("inserting boarding: %w", err)
	}
	return nil
}

// Update writes every mutable column of b and touches updated_at.
func (t *BoardingTable) Update(ctx context.Context, b *models.Boarding) error {
	b.UpdatedAt = t.c.now()

	var rows []models.Boarding
	err := t.c.do(ctx, request{
		method: http.MethodPatch,
		table:  boardingsTable,
		query:  url.Values{"id": {eq(b.ID)}},
		body:   b,
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return fmt.Errorf("updating boarding: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("updating boarding %s: %w", b.ID, ErrNotFound)
	}
	return nil
}
