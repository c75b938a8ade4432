package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dog-boarding/backend/internal/api/middleware"
	"github.com/dog-boarding/backend/internal/storage/models"
	"github.com/dog-boarding/backend/internal/syncjob"
)

// Sync history paging.
const (
	DefaultSyncLogLimit = 20
	MaxSyncLogLimit     = 100
)

// SyncLogReader reads the sync audit trail.
type SyncLogReader interface {
	List(ctx context.Context, limit int) ([]models.SyncLog, error)
	GetByID(ctx context.Context, id string) (*models.SyncLog, error)
}

// SyncLogDetail is a sync log with its error analysis.
type SyncLogDetail struct {
	models.SyncLog
	Analysis *syncjob.Analysis `json:"analysis,omitempty"`
}

// ListSyncLogs returns the most recent sync logs, newest first.
func ListSyncLogs(logs SyncLogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := DefaultSyncLogLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "limit must be a positive integer")
				return
			}
			limit = min(n, MaxSyncLogLimit)
		}

		list, err := logs.List(r.Context(), limit)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync logs")
			return
		}
		if list == nil {
			list = []models.SyncLog{}
		}

		middleware.WriteJSON(w, http.StatusOK, list)
	}
}

// GetSyncLog returns one sync log and, when it recorded errors, their analysis.
func GetSyncLog(logs SyncLogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		l, err := logs.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync log")
			return
		}
		if l == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Sync log not found")
			return
		}

		detail := SyncLogDetail{SyncLog: *l}
		if len(l.Errors) > 0 {
			a := syncjob.AnalyzeErrors(l.Errors)
			detail.Analysis = &a
		}

		middleware.WriteJSON(w, http.StatusOK, detail)
	}
}
