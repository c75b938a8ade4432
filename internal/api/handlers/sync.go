// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dog-boarding/backend/internal/api/middleware"
	"github.com/dog-boarding/backend/internal/logging"
	"github.com/dog-boarding/backend/internal/syncjob"
)

// SyncRunner performs one sync run.
type SyncRunner interface {
	Run(ctx context.Context) (*syncjob.Result, error)
}

// syncErrorResponse is the body of /api/sync when no run result exists.
type syncErrorResponse struct {
	Error string `json:"error"`
}

// TriggerSync runs a sync and responds with its result. Only POST is
// accepted. The run is detached from the request so a client disconnect
// does not abort it.
func TriggerSync(runner SyncRunner, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			middleware.WriteJSON(w, http.StatusMethodNotAllowed, syncErrorResponse{Error: "Method not allowed"})
			return
		}

		res, err := runner.Run(context.WithoutCancel(r.Context()))
		switch {
		case errors.Is(err, syncjob.ErrCredentialsMissing):
			middleware.WriteJSON(w, http.StatusBadRequest, syncErrorResponse{Error: err.Error()})
		case errors.Is(err, syncjob.ErrStoreNotConfigured):
			middleware.WriteJSON(w, http.StatusInternalServerError, syncErrorResponse{Error: err.Error()})
		case errors.Is(err, syncjob.ErrSyncInProgress):
			middleware.WriteJSON(w, http.StatusConflict, syncErrorResponse{Error: "Sync already in progress"})
		case err != nil:
			log.Error().Err(err).Msg("Sync could not start")
			middleware.WriteJSON(w, http.StatusInternalServerError, syncErrorResponse{Error: logging.SanitizeError(err)})
		case res.Error != "":
			middleware.WriteJSON(w, http.StatusInternalServerError, res)
		default:
			middleware.WriteJSON(w, http.StatusOK, res)
		}
	}
}
