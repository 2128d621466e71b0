package handlers

import (
	"github.com/gorilla/mux"
)

func (h *HTTPHandler) Register(r *mux.Router) {
	r.HandleFunc("/maintenance/ping", h.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/posts", h.HandleCreatePost).Methods("POST")
	api.HandleFunc("/posts", h.HandleGetPosts).Methods("GET")
	api.HandleFunc("/posts/{postId}", h.HandleGetPost).Methods("GET")
	api.HandleFunc("/posts/{postId}", h.HandlePatchPost).Methods("PATCH")
	api.HandleFunc("/posts/{postId}", h.HandleDeletePost).Methods("DELETE")
	api.HandleFunc("/exports", h.HandleExport).Methods("POST")
	api.HandleFunc("/exports/latest", h.HandleGetLatestExport).Methods("GET")
}
