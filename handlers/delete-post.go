package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// HandleDeletePost answers 200 with the deleted count even when nothing matched.
func (h *HTTPHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	postId := mux.Vars(r)["postId"]

	ctx, cancel := h.storeContext(r)
	defer cancel()
	res, err := h.Service.DeletePost(ctx, postId)
	if err != nil {
		handleError(w, r, err, "deleting post")
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
