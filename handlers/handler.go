package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"blogposts/export"
	"blogposts/service"
	"blogposts/storage"
)

const INTERNAL_ERROR_MESSAGE = "Internal server error."

// Exporter queues an export in the background and returns the task id.
type Exporter interface {
	SendExport(ctx context.Context) (string, error)
}

type HTTPHandler struct {
	Service *service.PostService
	Sink    export.Sink
	// Broker is optional; without it exports run inside the request.
	Broker  Exporter
	Timeout time.Duration
}

// storeContext bounds a store call by the request context and the handler timeout.
func (h *HTTPHandler) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.Timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.Timeout)
}

// authorized reports whether a write request carries a token. Token contents are
// not checked here.
func authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") == "" {
		http.Error(w, "Invalid user token", http.StatusUnauthorized)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	rawResponse, err := json.Marshal(v)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to dump response to json")
		http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(rawResponse); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to write response")
	}
}

func handleError(w http.ResponseWriter, r *http.Request, err error, action string) {
	if errors.Is(err, storage.ClientError) {
		hlog.FromRequest(r).Info().Err(err).Msgf("Client error while %s", action)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hlog.FromRequest(r).Error().Err(err).Msgf("Failed %s", action)
	http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
}
