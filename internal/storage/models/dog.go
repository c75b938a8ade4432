// Package models contains the domain models for the application.
package models

import (
	"time"
)

// Record sources.
const (
	SourceManual   = "manual"
	SourceExternal = "external"
)

// Dog is a boarded animal, either entered by staff or imported from the
// external booking site.
type Dog struct {
	ID         string    `json:"id,omitempty"`
	Name       string    `json:"name"`
	Breed      *string   `json:"breed"`
	Source     string    `json:"source"`
	ExternalID *string   `json:"external_id"`
	Active     bool      `json:"active"`
	DayRate    float64   `json:"day_rate"`
	NightRate  float64   `json:"night_rate"`
	OwnerName  *string   `json:"owner_name"`
	OwnerEmail *string   `json:"owner_email"`
	OwnerPhone *string   `json:"owner_phone"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsManual reports whether staff entered the dog by hand.
func (d *Dog) IsManual() bool {
	return d.Source == SourceManual
}

// Boarding is one stay of a dog at the kennel.
type Boarding struct {
	ID                string    `json:"id,omitempty"`
	DogID             string    `json:"dog_id"`
	ArrivalDateTime   time.Time `json:"arrival_datetime"`
	DepartureDateTime time.Time `json:"departure_datetime"`
	Source            string    `json:"source"`
	ExternalID        *string   `json:"external_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BoardingStatusScheduled is the only status the sync writes.
const BoardingStatusScheduled = "scheduled"

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
