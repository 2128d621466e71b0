package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"blogposts/storage/models"
)

func (h *HTTPHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	var data models.PostDraft
	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		hlog.FromRequest(r).Info().Err(err).Msg("Failed to decode post data while creating post")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := h.storeContext(r)
	defer cancel()
	post, err := h.Service.CreatePost(ctx, data)
	if err != nil {
		handleError(w, r, err, "creating post")
		return
	}
	writeJSON(w, r, http.StatusCreated, post)
}
