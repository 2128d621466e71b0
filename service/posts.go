// Package service translates post operations into queries and mutations on a
// storage.Storage. It keeps no state besides the store reference, so one
// PostService can serve any number of concurrent callers.
package service

import (
	"context"
	"fmt"

	"blogposts/storage"
	"blogposts/storage/models"
)

// ListOptions are the client sort options. Zero values mean createdAt, descending.
type ListOptions struct {
	SortBy    string `json:"sortBy,omitempty"`
	SortOrder string `json:"sortOrder,omitempty"`
}

type PostService struct {
	storage storage.Storage
}

func NewPostService(s storage.Storage) *PostService {
	if s == nil {
		panic("post service requires a storage")
	}
	return &PostService{storage: s}
}

func (s *PostService) CreatePost(ctx context.Context, draft models.PostDraft) (*models.Post, error) {
	return s.storage.Insert(ctx, &draft)
}

// listPosts is shared by every listing variant. sortBy is passed through to the
// store unchecked; the store decides how to order by a field it does not know.
func (s *PostService) listPosts(ctx context.Context, filter models.Filter, opts ListOptions) ([]*models.Post, error) {
	order, err := models.ParseSortOrder(opts.SortOrder)
	if err != nil {
		return nil, fmt.Errorf("%q: %s %w", opts.SortOrder, err.Error(), storage.ValidationError)
	}
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = models.DefaultSortBy
	}
	return s.storage.Find(ctx, filter, models.SortOptions{SortBy: sortBy, SortOrder: order})
}

func (s *PostService) ListAllPosts(ctx context.Context, opts ListOptions) ([]*models.Post, error) {
	return s.listPosts(ctx, models.Filter{}, opts)
}

func (s *PostService) ListPostsByAuthor(ctx context.Context, author string, opts ListOptions) ([]*models.Post, error) {
	return s.listPosts(ctx, models.Filter{Author: &author}, opts)
}

func (s *PostService) ListPostsByTag(ctx context.Context, tag string, opts ListOptions) ([]*models.Post, error) {
	return s.listPosts(ctx, models.Filter{Tag: &tag}, opts)
}

// GetPostById returns nil without an error when the post does not exist.
func (s *PostService) GetPostById(ctx context.Context, id string) (*models.Post, error) {
	return s.storage.FindById(ctx, id)
}

// UpdatePost returns the post as it is after the update, or nil if it does not exist.
func (s *PostService) UpdatePost(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	return s.storage.UpdateById(ctx, id, &patch)
}

func (s *PostService) DeletePost(ctx context.Context, id string) (models.DeleteResult, error) {
	return s.storage.DeleteById(ctx, id)
}
