package syncjob

import (
	"context"
	"time"

	"github.com/dog-boarding/backend/internal/storage"
	"github.com/dog-boarding/backend/internal/storage/models"
)

// DogStore is the subset of dog persistence the reconciler needs. Lookups
// return nil, nil when nothing matches.
type DogStore interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.Dog, error)
	FindByName(ctx context.Context, name string) (*models.Dog, error)
	Create(ctx context.Context, d *models.Dog) error
	Update(ctx context.Context, d *models.Dog) error
}

// BoardingStore persists boardings keyed by external id.
type BoardingStore interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.Boarding, error)
	Create(ctx context.Context, b *models.Boarding) error
	Update(ctx context.Context, b *models.Boarding) error
}

// SyncLogStore records the audit trail of each run.
type SyncLogStore interface {
	Create(ctx context.Context, l *models.SyncLog) error
	Complete(ctx context.Context, l *models.SyncLog) error
}

// SettingsStore holds the last-sync summary and the cached site session.
type SettingsStore interface {
	UpsertSummary(ctx context.Context, s *models.SyncSettings) error
	GetSession(ctx context.Context) (*models.SessionCache, error)
	StoreSession(ctx context.Context, cookies string, expiresAt time.Time) error
	ClearSession(ctx context.Context) error
}

// Stores groups the persistence gateways used by a sync run.
type Stores struct {
	Dogs      DogStore
	Boardings BoardingStore
	SyncLogs  SyncLogStore
	Settings  SettingsStore
}

// Configured reports whether every gateway is present.
func (s Stores) Configured() bool {
	return s.Dogs != nil && s.Boardings != nil && s.SyncLogs != nil && s.Settings != nil
}

// StoresFromRepositories adapts the SQLite repositories.
func StoresFromRepositories(repos *storage.Repositories) Stores {
	if repos == nil {
		return Stores{}
	}
	return Stores{
		Dogs:      repos.Dogs,
		Boardings: repos.Boardings,
		SyncLogs:  repos.SyncLogs,
		Settings:  repos.Settings,
	}
}
