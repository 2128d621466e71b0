package handlers

import (
	"net/http"

	"blogposts/service"
	"blogposts/storage/models"
)

// HandleGetPosts lists posts. When both author and tag are given only the author
// filter applies.
func (h *HTTPHandler) HandleGetPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := service.ListOptions{
		SortBy:    query.Get("sortBy"),
		SortOrder: query.Get("sortOrder"),
	}

	ctx, cancel := h.storeContext(r)
	defer cancel()

	var posts []*models.Post
	var err error
	if author, found := query["author"]; found {
		posts, err = h.Service.ListPostsByAuthor(ctx, author[0], opts)
	} else if tag, found := query["tag"]; found {
		posts, err = h.Service.ListPostsByTag(ctx, tag[0], opts)
	} else {
		posts, err = h.Service.ListAllPosts(ctx, opts)
	}
	if err != nil {
		handleError(w, r, err, "listing posts")
		return
	}
	writeJSON(w, r, http.StatusOK, posts)
}
