package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"

	"blogposts/storage/models"
)

func (h *HTTPHandler) HandlePatchPost(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	postId := mux.Vars(r)["postId"]
	var data models.PostPatch
	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		hlog.FromRequest(r).Info().Err(err).Msg("Failed to decode post data while updating post")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := h.storeContext(r)
	defer cancel()
	post, err := h.Service.UpdatePost(ctx, postId, data)
	if err != nil {
		handleError(w, r, err, "updating post")
		return
	}
	if post == nil {
		http.Error(w, "Post not found.", http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, post)
}
