package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dog-boarding/backend/internal/api/middleware"
	"github.com/dog-boarding/backend/internal/config"
	"github.com/dog-boarding/backend/internal/storage/models"
	"github.com/dog-boarding/backend/internal/syncjob"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Healthy(ctx context.Context) bool
}

// CronHealthReader reads the last recorded scheduled run.
type CronHealthReader interface {
	Get(ctx context.Context, name string) (*models.CronHealth, error)
}

// EnvPresence tells operators which secrets are configured without
// revealing them.
type EnvPresence struct {
	HasSupabaseURL      bool `json:"hasSupabaseUrl"`
	HasSupabaseKey      bool `json:"hasSupabaseKey"`
	HasExternalUsername bool `json:"hasExternalUsername"`
	HasExternalPassword bool `json:"hasExternalPassword"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string             `json:"status"`
	Timestamp   time.Time          `json:"timestamp"`
	Storage     string             `json:"storage"`
	DBConnected bool               `json:"db_connected"`
	Env         EnvPresence        `json:"env"`
	Cron        *models.CronHealth `json:"cron,omitempty"`
}

// HealthCheck returns a handler that performs a health check. db and cron
// may be nil.
func HealthCheck(cfg *config.Config, db Pinger, cron CronHealthReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		dbConnected := db != nil && db.Healthy(ctx)

		status := "ok"
		if !dbConnected {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			Timestamp:   time.Now().UTC(),
			Storage:     cfg.Storage.Driver,
			DBConnected: dbConnected,
			Env: EnvPresence{
				HasSupabaseURL:      cfg.Storage.SupabaseURL != "",
				HasSupabaseKey:      cfg.Storage.SupabaseKey != "",
				HasExternalUsername: cfg.Site.Username != "",
				HasExternalPassword: cfg.Site.Password != "",
			},
		}
		if cron != nil {
			if h, err := cron.Get(ctx, syncjob.CronName); err == nil {
				response.Cron = h
			}
		}

		code := http.StatusOK
		if !dbConnected {
			code = http.StatusServiceUnavailable
		}
		middleware.WriteJSON(w, code, response)
	}
}
