package in_memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"blogposts/storage"
	"blogposts/storage/models"
)

var _ storage.Storage = (*InMemoryStorage)(nil)

type InMemoryStorage struct {
	mut   sync.RWMutex
	posts map[string]*models.Post
	order []string
}

func (s *InMemoryStorage) Insert(ctx context.Context, draft *models.PostDraft) (*models.Post, error) {
	if err := storage.ValidateDraft(draft); err != nil {
		return nil, err
	}
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	p := draft.NewPost(uuid.New().String(), storage.Timestamp())

	s.mut.Lock()
	defer s.mut.Unlock()
	s.posts[p.Id] = p
	s.order = append(s.order, p.Id)
	return clonePost(p), nil
}

func (s *InMemoryStorage) Find(ctx context.Context, filter models.Filter, sort models.SortOptions) ([]*models.Post, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	s.mut.RLock()
	posts := make([]*models.Post, 0, len(s.order))
	for _, id := range s.order {
		if p := s.posts[id]; filter.Matches(p) {
			posts = append(posts, clonePost(p))
		}
	}
	s.mut.RUnlock()

	storage.SortPosts(posts, sort)
	return posts, nil
}

func (s *InMemoryStorage) FindById(ctx context.Context, id string) (*models.Post, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	s.mut.RLock()
	defer s.mut.RUnlock()
	post, found := s.posts[id]
	if !found {
		return nil, nil
	}
	return clonePost(post), nil
}

func (s *InMemoryStorage) UpdateById(ctx context.Context, id string, patch *models.PostPatch) (*models.Post, error) {
	if err := storage.ValidatePatch(patch); err != nil {
		return nil, err
	}
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}

	s.mut.Lock()
	defer s.mut.Unlock()
	post, found := s.posts[id]
	if !found {
		return nil, nil
	}
	if patch != nil {
		patch.Apply(post)
	}
	post.UpdatedAt = storage.NextUpdatedAt(storage.Timestamp(), post.UpdatedAt)
	return clonePost(post), nil
}

func (s *InMemoryStorage) DeleteById(ctx context.Context, id string) (models.DeleteResult, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return models.DeleteResult{}, err
	}

	s.mut.Lock()
	defer s.mut.Unlock()
	if _, found := s.posts[id]; !found {
		return models.DeleteResult{DeletedCount: 0}, nil
	}
	delete(s.posts, id)
	for i, postId := range s.order {
		if postId == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return models.DeleteResult{DeletedCount: 1}, nil
}

func (s *InMemoryStorage) Close(ctx context.Context) error {
	return nil
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Tags = make([]string, len(p.Tags))
	copy(c.Tags, p.Tags)
	return &c
}

func CreateInMemoryStorage() storage.Storage {
	return &InMemoryStorage{
		posts: make(map[string]*models.Post),
	}
}
