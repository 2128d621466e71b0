// Package storagetest holds the behaviour every storage.Storage backend must share.
// Backend packages embed StorageSuite and run it against their own engine.
package storagetest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"blogposts/storage"
	"blogposts/storage/models"
)

var samplePosts = []models.PostDraft{
	{Title: "My first post", Author: "Joshua Leyva", Tags: []string{"first", "post"}},
	{Title: "My second post", Author: "Joshua Leyva", Tags: []string{"second", "post"}},
	{Title: "My third post", Author: "Joshua Leyva", Tags: []string{"third", "post", "mongoose"}},
	{Title: "My forth post"},
}

type StorageSuite struct {
	suite.Suite

	// NewStorage returns an empty store. It is called before every test.
	NewStorage func(t *testing.T) storage.Storage

	Storage storage.Storage
	Created []*models.Post
	ctx     context.Context
}

func (s *StorageSuite) SetupTest() {
	s.ctx = context.Background()
	s.Storage = s.NewStorage(s.T())
	s.Created = nil
	for i := range samplePosts {
		s.Created = append(s.Created, s.insert(&samplePosts[i]))
	}
}

func (s *StorageSuite) TearDownTest() {
	if s.Storage != nil {
		s.Require().NoError(s.Storage.Close(s.ctx))
	}
}

// insert spaces posts out so creation times are distinct at millisecond precision.
func (s *StorageSuite) insert(draft *models.PostDraft) *models.Post {
	time.Sleep(2 * time.Millisecond)
	post, err := s.Storage.Insert(s.ctx, draft)
	s.Require().NoError(err)
	s.Require().NotNil(post)
	return post
}

func (s *StorageSuite) all() []*models.Post {
	posts, err := s.Storage.Find(s.ctx, models.Filter{}, models.SortOptions{
		SortBy: models.FieldCreatedAt, SortOrder: models.Descending,
	})
	s.Require().NoError(err)
	return posts
}

func ids(posts []*models.Post) []string {
	res := make([]string, 0, len(posts))
	for _, p := range posts {
		res = append(res, p.Id)
	}
	return res
}

func (s *StorageSuite) TestInsertAssignsIdAndTimestamps() {
	draft := &models.PostDraft{
		Title:   "My first post",
		Content: "Hello, world!",
		Author:  "Joshua Leyva",
		Tags:    []string{"mongodb", "mongoose"},
	}
	created := s.insert(draft)

	s.NotEmpty(created.Id)
	s.False(created.CreatedAt.IsZero())
	s.True(created.CreatedAt.Equal(created.UpdatedAt))
	for _, other := range s.Created {
		s.NotEqual(other.Id, created.Id)
	}

	found, err := s.Storage.FindById(s.ctx, created.Id)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(draft.Title, found.Title)
	s.Equal(draft.Content, found.Content)
	s.Equal(draft.Author, found.Author)
	s.Equal(draft.Tags, found.Tags)
	s.True(created.CreatedAt.Equal(found.CreatedAt))
	s.True(created.UpdatedAt.Equal(found.UpdatedAt))
}

func (s *StorageSuite) TestInsertRequiresTitle() {
	post, err := s.Storage.Insert(s.ctx, &models.PostDraft{
		Author:  "Joshua Leyva",
		Content: "Hello, world!",
		Tags:    []string{"empty"},
	})
	s.Nil(post)
	s.ErrorIs(err, storage.ValidationError)
	s.Contains(err.Error(), "`title` is required")
	s.Len(s.all(), len(samplePosts))
}

func (s *StorageSuite) TestInsertMinimal() {
	created := s.insert(&models.PostDraft{Title: "My first post"})
	s.NotEmpty(created.Id)

	found, err := s.Storage.FindById(s.ctx, created.Id)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.NotNil(found.Tags)
	s.Empty(found.Tags)
	s.Empty(found.Author)
}

func (s *StorageSuite) TestFindCreatedAtDescending() {
	expected := make([]*models.Post, len(s.Created))
	copy(expected, s.Created)
	sort.Slice(expected, func(i, j int) bool {
		return expected[i].CreatedAt.After(expected[j].CreatedAt)
	})
	s.Equal(ids(expected), ids(s.all()))
}

func (s *StorageSuite) TestFindUpdatedAtAscending() {
	time.Sleep(2 * time.Millisecond)
	_, err := s.Storage.UpdateById(s.ctx, s.Created[0].Id, &models.PostPatch{Author: ptr("Test Author")})
	s.Require().NoError(err)

	posts, err := s.Storage.Find(s.ctx, models.Filter{}, models.SortOptions{
		SortBy: models.FieldUpdatedAt, SortOrder: models.Ascending,
	})
	s.Require().NoError(err)
	s.Require().Len(posts, len(samplePosts))
	for i := 1; i < len(posts); i++ {
		s.False(posts[i].UpdatedAt.Before(posts[i-1].UpdatedAt))
	}
	s.Equal(s.Created[0].Id, posts[len(posts)-1].Id)
}

func (s *StorageSuite) TestFindSortByTitle() {
	posts, err := s.Storage.Find(s.ctx, models.Filter{}, models.SortOptions{
		SortBy: models.FieldTitle, SortOrder: models.Ascending,
	})
	s.Require().NoError(err)
	titles := make([]string, 0, len(posts))
	for _, p := range posts {
		titles = append(titles, p.Title)
	}
	s.Equal([]string{"My first post", "My forth post", "My second post", "My third post"}, titles)
}

// An unknown field compares equal everywhere, leaving insertion order.
func (s *StorageSuite) TestFindUnknownSortField() {
	posts, err := s.Storage.Find(s.ctx, models.Filter{}, models.SortOptions{
		SortBy: "popularity", SortOrder: models.Ascending,
	})
	s.Require().NoError(err)
	s.Equal(ids(s.Created), ids(posts))

	posts, err = s.Storage.Find(s.ctx, models.Filter{}, models.SortOptions{
		SortBy: "popularity", SortOrder: models.Descending,
	})
	s.Require().NoError(err)
	reversed := ids(s.Created)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	s.Equal(reversed, ids(posts))
}

func (s *StorageSuite) TestFindByEmptyAuthor() {
	cleared := ""
	updated, err := s.Storage.UpdateById(s.ctx, s.Created[0].Id, &models.PostPatch{Author: &cleared})
	s.Require().NoError(err)
	s.Require().NotNil(updated)

	posts, err := s.Storage.Find(s.ctx, models.Filter{Author: ptr("")}, models.SortOptions{
		SortBy: models.FieldCreatedAt, SortOrder: models.Descending,
	})
	s.Require().NoError(err)
	s.Empty(posts)
}

func (s *StorageSuite) TestFindByAuthor() {
	posts, err := s.Storage.Find(s.ctx, models.Filter{Author: ptr("Joshua Leyva")}, models.SortOptions{
		SortBy: models.FieldCreatedAt, SortOrder: models.Descending,
	})
	s.Require().NoError(err)
	s.ElementsMatch(ids(s.Created[:3]), ids(posts))

	posts, err = s.Storage.Find(s.ctx, models.Filter{Author: ptr("Nobody")}, models.SortOptions{
		SortBy: models.FieldCreatedAt, SortOrder: models.Descending,
	})
	s.Require().NoError(err)
	s.Empty(posts)
}

func (s *StorageSuite) TestFindByTag() {
	posts, err := s.Storage.Find(s.ctx, models.Filter{Tag: ptr("post")}, models.SortOptions{
		SortBy: models.FieldCreatedAt, SortOrder: models.Descending,
	})
	s.Require().NoError(err)
	s.ElementsMatch(ids(s.Created[:3]), ids(posts))

	posts, err = s.Storage.Find(s.ctx, models.Filter{Tag: ptr("mongoose")}, models.SortOptions{
		SortBy: models.FieldCreatedAt, SortOrder: models.Descending,
	})
	s.Require().NoError(err)
	s.Equal([]string{s.Created[2].Id}, ids(posts))
}

func (s *StorageSuite) TestAuthorAndTagScenario() {
	s.Storage = s.resetStorage()
	a := s.insert(&models.PostDraft{Title: "A", Author: "X", Tags: []string{"p"}})
	b := s.insert(&models.PostDraft{Title: "B", Author: "X", Tags: []string{"p"}})
	c := s.insert(&models.PostDraft{Title: "C", Author: "Y", Tags: []string{"p", "q"}})
	asc := models.SortOptions{SortBy: models.FieldCreatedAt, SortOrder: models.Ascending}

	posts, err := s.Storage.Find(s.ctx, models.Filter{Author: ptr("X")}, asc)
	s.Require().NoError(err)
	s.Equal([]string{a.Id, b.Id}, ids(posts))

	posts, err = s.Storage.Find(s.ctx, models.Filter{Tag: ptr("q")}, asc)
	s.Require().NoError(err)
	s.Equal([]string{c.Id}, ids(posts))

	posts, err = s.Storage.Find(s.ctx, models.Filter{Tag: ptr("p")}, asc)
	s.Require().NoError(err)
	s.Equal([]string{a.Id, b.Id, c.Id}, ids(posts))
}

func (s *StorageSuite) TestFindByIdReturnsFullPost() {
	post, err := s.Storage.FindById(s.ctx, s.Created[0].Id)
	s.Require().NoError(err)
	s.Require().NotNil(post)
	s.Equal(s.Created[0].Id, post.Id)
	s.Equal(s.Created[0].Title, post.Title)
	s.Equal(s.Created[0].Tags, post.Tags)
	s.True(s.Created[0].CreatedAt.Equal(post.CreatedAt))
}

func (s *StorageSuite) TestFindByIdUnknown() {
	for _, id := range []string{"000000000000000000000000", "not-an-id", ""} {
		post, err := s.Storage.FindById(s.ctx, id)
		s.NoError(err, id)
		s.Nil(post, id)
	}
}

func (s *StorageSuite) TestUpdateOnlySuppliedField() {
	original := s.Created[0]
	time.Sleep(2 * time.Millisecond)
	updated, err := s.Storage.UpdateById(s.ctx, original.Id, &models.PostPatch{Author: ptr("Test Author")})
	s.Require().NoError(err)
	s.Require().NotNil(updated)
	s.Equal("Test Author", updated.Author)

	found, err := s.Storage.FindById(s.ctx, original.Id)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal("Test Author", found.Author)
	s.Equal(original.Title, found.Title)
	s.Equal(original.Content, found.Content)
	s.Equal(original.Tags, found.Tags)
	s.True(original.CreatedAt.Equal(found.CreatedAt))
	s.True(found.UpdatedAt.After(original.UpdatedAt))
}

func (s *StorageSuite) TestUpdateBumpsUpdatedAtImmediately() {
	original := s.Created[1]
	first, err := s.Storage.UpdateById(s.ctx, original.Id, &models.PostPatch{Title: ptr("again")})
	s.Require().NoError(err)
	second, err := s.Storage.UpdateById(s.ctx, original.Id, &models.PostPatch{Title: ptr("and again")})
	s.Require().NoError(err)

	s.True(first.UpdatedAt.After(original.UpdatedAt))
	s.True(second.UpdatedAt.After(first.UpdatedAt))
	s.Equal("and again", second.Title)
}

func (s *StorageSuite) TestUpdateReplacesTags() {
	tags := []string{"edited"}
	updated, err := s.Storage.UpdateById(s.ctx, s.Created[2].Id, &models.PostPatch{Tags: &tags})
	s.Require().NoError(err)
	s.Require().NotNil(updated)
	s.Equal(tags, updated.Tags)
	s.Equal(s.Created[2].Author, updated.Author)
}

func (s *StorageSuite) TestUpdateUnknownId() {
	post, err := s.Storage.UpdateById(s.ctx, "000000000000000000000000", &models.PostPatch{Author: ptr("Test Author")})
	s.NoError(err)
	s.Nil(post)

	posts, err := s.Storage.Find(s.ctx, models.Filter{Author: ptr("Test Author")}, models.SortOptions{
		SortBy: models.FieldCreatedAt, SortOrder: models.Descending,
	})
	s.Require().NoError(err)
	s.Empty(posts)
}

func (s *StorageSuite) TestUpdateRejectsEmptyTitle() {
	post, err := s.Storage.UpdateById(s.ctx, s.Created[0].Id, &models.PostPatch{Title: ptr("")})
	s.Nil(post)
	s.ErrorIs(err, storage.ValidationError)

	found, err := s.Storage.FindById(s.ctx, s.Created[0].Id)
	s.Require().NoError(err)
	s.Equal(s.Created[0].Title, found.Title)
	s.True(s.Created[0].UpdatedAt.Equal(found.UpdatedAt))
}

func (s *StorageSuite) TestDelete() {
	res, err := s.Storage.DeleteById(s.ctx, s.Created[0].Id)
	s.Require().NoError(err)
	s.Equal(int64(1), res.DeletedCount)

	post, err := s.Storage.FindById(s.ctx, s.Created[0].Id)
	s.NoError(err)
	s.Nil(post)
	s.Len(s.all(), len(samplePosts)-1)
}

func (s *StorageSuite) TestDeleteUnknownId() {
	res, err := s.Storage.DeleteById(s.ctx, "000000000000000000000000")
	s.Require().NoError(err)
	s.Equal(int64(0), res.DeletedCount)
	s.Len(s.all(), len(samplePosts))
}

func (s *StorageSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	post, err := s.Storage.Insert(ctx, &models.PostDraft{Title: "never stored"})
	s.Nil(post)
	s.ErrorIs(err, storage.UnavailableError)

	_, err = s.Storage.UpdateById(ctx, s.Created[0].Id, &models.PostPatch{Title: ptr("never stored")})
	s.ErrorIs(err, storage.UnavailableError)

	_, err = s.Storage.DeleteById(ctx, s.Created[0].Id)
	s.ErrorIs(err, storage.UnavailableError)

	_, err = s.Storage.Find(ctx, models.Filter{}, models.SortOptions{})
	s.ErrorIs(err, storage.UnavailableError)

	posts := s.all()
	s.Len(posts, len(samplePosts))
	for _, p := range posts {
		s.NotEqual("never stored", p.Title)
	}
}

func (s *StorageSuite) resetStorage() storage.Storage {
	s.Require().NoError(s.Storage.Close(s.ctx))
	return s.NewStorage(s.T())
}

func ptr(v string) *string {
	return &v
}
