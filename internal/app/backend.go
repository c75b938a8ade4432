// Package app assembles the storage gateway, scraper client and sync service
// from configuration. It is shared by the server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dog-boarding/backend/internal/config"
	"github.com/dog-boarding/backend/internal/scraper"
	"github.com/dog-boarding/backend/internal/storage"
	"github.com/dog-boarding/backend/internal/storage/models"
	"github.com/dog-boarding/backend/internal/storage/postgrest"
	"github.com/dog-boarding/backend/internal/syncjob"
)

// SyncLogStore writes and reads the sync audit trail.
type SyncLogStore interface {
	syncjob.SyncLogStore
	List(ctx context.Context, limit int) ([]models.SyncLog, error)
	GetByID(ctx context.Context, id string) (*models.SyncLog, error)
}

// SettingsStore holds the sync summary and cached session.
type SettingsStore interface {
	syncjob.SettingsStore
	Get(ctx context.Context) (*models.SyncSettings, error)
}

// CronHealthStore records and reads scheduled run outcomes.
type CronHealthStore interface {
	syncjob.CronHealthStore
	Get(ctx context.Context, name string) (*models.CronHealth, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Healthy(ctx context.Context) bool
}

// Backend is the configured persistence gateway. Every field is nil when
// the selected driver is not configured.
type Backend struct {
	Driver     string
	Stores     syncjob.Stores
	SyncLogs   SyncLogStore
	Settings   SettingsStore
	CronHealth CronHealthStore
	DB         Pinger

	closeFn func() error
}

// Close releases the underlying connection, if any.
func (b *Backend) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// Configured reports whether sync runs can persist their results.
func (b *Backend) Configured() bool {
	return b.Stores.Configured()
}

// OpenBackend opens the storage driver selected by cfg. A postgrest driver
// without Supabase credentials yields an unconfigured Backend rather than an
// error, so the server still starts and reports the problem per request.
func OpenBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgREST:
		if !cfg.HasSupabase() {
			log.Warn().Msg("Supabase configuration missing; sync runs will be rejected")
			return &Backend{Driver: cfg.Storage.Driver}, nil
		}
		repos := postgrest.NewRepositories(postgrest.NewClient(postgrest.Options{
			URL:     cfg.Storage.SupabaseURL,
			Key:     cfg.Storage.SupabaseKey,
			Timeout: cfg.Site.PageTimeout,
			Logger:  log,
		}))
		return &Backend{
			Driver: cfg.Storage.Driver,
			Stores: syncjob.Stores{
				Dogs:      repos.Dogs,
				Boardings: repos.Boardings,
				SyncLogs:  repos.SyncLogs,
				Settings:  repos.Settings,
			},
			SyncLogs:   repos.SyncLogs,
			Settings:   repos.Settings,
			CronHealth: repos.CronHealth,
			DB:         repos.Client(),
		}, nil

	case config.DriverSQLite:
		db, err := storage.Open(ctx, cfg.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		log.Info().Str("path", db.Path()).Msg("Database ready")

		repos := storage.NewRepositories(db)
		return &Backend{
			Driver:     cfg.Storage.Driver,
			Stores:     syncjob.StoresFromRepositories(repos),
			SyncLogs:   repos.SyncLogs,
			Settings:   repos.Settings,
			CronHealth: repos.CronHealth,
			DB:         db,
			closeFn:    db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewSyncService builds the scraper client and sync service. events may be nil.
func NewSyncService(cfg *config.Config, backend *Backend, events syncjob.Events, log zerolog.Logger) *syncjob.Service {
	site := scraper.NewClient(scraper.Options{
		BaseURL:          cfg.Site.BaseURL,
		UserAgent:        cfg.Site.UserAgent,
		Timeout:          cfg.Site.PageTimeout,
		PageDelay:        cfg.Sync.RequestDelay,
		MaxSchedulePages: cfg.Sync.MaxSchedulePages,
		Logger:           log,
	})

	return syncjob.NewService(site, backend.Stores, syncjob.Options{
		Username:     cfg.Site.Username,
		Password:     cfg.Site.Password,
		RequestDelay: cfg.Sync.RequestDelay,
		SessionTTL:   cfg.Sync.SessionTTL,
		RetryDelays:  cfg.Sync.RetryDelays,
		Logger:       log,
		Events:       events,
	})
}
