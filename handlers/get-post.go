package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (h *HTTPHandler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	postId := mux.Vars(r)["postId"]

	ctx, cancel := h.storeContext(r)
	defer cancel()
	maybePost, err := h.Service.GetPostById(ctx, postId)
	if err != nil {
		handleError(w, r, err, "getting post")
		return
	}
	if maybePost == nil {
		http.Error(w, "Post not found.", http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, maybePost)
}
