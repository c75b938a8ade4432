// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dog-boarding/backend/internal/api/handlers"
	"github.com/dog-boarding/backend/internal/api/middleware"
	"github.com/dog-boarding/backend/internal/config"
	"github.com/dog-boarding/backend/internal/syncjob"
	"github.com/dog-boarding/backend/internal/websocket"
)

// Services are the dependencies the routes are built from. Optional
// readers may be nil; their routes are then omitted.
type Services struct {
	Config     *config.Config
	Sync       handlers.SyncRunner
	Running    func() bool
	Scheduler  *syncjob.Scheduler
	SyncLogs   handlers.SyncLogReader
	Settings   handlers.SettingsReader
	CronHealth handlers.CronHealthReader
	DB         handlers.Pinger
	Hub        *websocket.Hub
	Logger     zerolog.Logger
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging(s.Logger))
	r.Use(middleware.ErrorRecovery)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", handlers.HealthCheck(s.Config, s.DB, s.CronHealth)).Methods(http.MethodGet)

	if s.Hub != nil {
		api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub, s.Logger)).Methods(http.MethodGet)
	}

	// Any method reaches the sync handler, which answers non-POST with 405.
	limit := middleware.RateLimit(s.Config.Server.RateLimit, s.Config.Server.RateWindow)
	api.Handle("/sync", limit(handlers.TriggerSync(s.Sync, s.Logger)))

	if s.SyncLogs != nil {
		api.HandleFunc("/sync/logs", handlers.ListSyncLogs(s.SyncLogs)).Methods(http.MethodGet)
		api.HandleFunc("/sync/logs/{id}", handlers.GetSyncLog(s.SyncLogs)).Methods(http.MethodGet)
	}

	if s.Settings != nil {
		var next handlers.NextRunner
		if s.Scheduler != nil {
			next = s.Scheduler
		}
		api.HandleFunc("/sync/settings", handlers.GetSyncSettings(
			s.Settings, next, s.Config.Sync.Schedule, s.Running,
		)).Methods(http.MethodGet)
	}

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Route not found")
	})

	return r
}
