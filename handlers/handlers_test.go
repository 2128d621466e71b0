package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/suite"

	"blogposts/export"
	"blogposts/service"
	"blogposts/storage"
	"blogposts/storage/in_memory"
	"blogposts/storage/models"
)

type fakeBroker struct {
	err   error
	calls int
}

func (b *fakeBroker) SendExport(ctx context.Context) (string, error) {
	b.calls++
	return "task_1", b.err
}

type HandlersSuite struct {
	suite.Suite

	handler *HTTPHandler
	router  *mux.Router
}

func TestHandlers(t *testing.T) {
	suite.Run(t, &HandlersSuite{})
}

func (s *HandlersSuite) SetupTest() {
	s.handler = &HTTPHandler{
		Service: service.NewPostService(in_memory.CreateInMemoryStorage()),
		Sink:    export.NewFileSink(s.T().TempDir()),
		Timeout: time.Second,
	}
	s.router = mux.NewRouter()
	s.handler.Register(s.router)
}

func (s *HandlersSuite) do(method, url, body string, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		req.Header.Set("Authorization", "Bearer token")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlersSuite) create(body string) models.Post {
	rec := s.do("POST", "/api/v1/posts", body, true)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var p models.Post
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func (s *HandlersSuite) list(url string) []models.Post {
	rec := s.do("GET", url, "", false)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var posts []models.Post
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &posts))
	return posts
}

func (s *HandlersSuite) TestPing() {
	rec := s.do("GET", "/maintenance/ping", "", false)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("pong", rec.Body.String())
}

func (s *HandlersSuite) TestCreateAndGet() {
	p := s.create(`{"title": "hello", "tags": ["go"]}`)
	s.NotEmpty(p.Id)
	s.Equal([]string{"go"}, p.Tags)

	rec := s.do("GET", "/api/v1/posts/"+p.Id, "", false)
	s.Require().Equal(http.StatusOK, rec.Code)
	var got models.Post
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal(p.Id, got.Id)
	s.Equal("hello", got.Title)
}

func (s *HandlersSuite) TestCreateRequiresToken() {
	rec := s.do("POST", "/api/v1/posts", `{"title": "hello"}`, false)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Empty(s.list("/api/v1/posts"))
}

func (s *HandlersSuite) TestCreateValidation() {
	rec := s.do("POST", "/api/v1/posts", `{"content": "no title"}`, true)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/v1/posts", `{"title": `, true)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Empty(s.list("/api/v1/posts"))
}

func (s *HandlersSuite) TestGetUnknown() {
	rec := s.do("GET", "/api/v1/posts/unknown", "", false)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlersSuite) TestListFilters() {
	a := s.create(`{"title": "A", "author": "X", "tags": ["p"]}`)
	b := s.create(`{"title": "B", "author": "X", "tags": ["p"]}`)
	c := s.create(`{"title": "C", "author": "Y", "tags": ["p", "q"]}`)

	ids := func(posts []models.Post) []string {
		res := make([]string, 0, len(posts))
		for _, p := range posts {
			res = append(res, p.Id)
		}
		return res
	}
	s.ElementsMatch([]string{a.Id, b.Id}, ids(s.list("/api/v1/posts?author=X")))
	s.Equal([]string{c.Id}, ids(s.list("/api/v1/posts?tag=q")))
	s.Len(s.list("/api/v1/posts?tag=p"), 3)
	s.Empty(s.list("/api/v1/posts?author=Z"))
	// author takes precedence over tag
	s.Equal([]string{c.Id}, ids(s.list("/api/v1/posts?author=Y&tag=nothing")))
	s.Equal([]string{a.Id, b.Id, c.Id}, ids(s.list("/api/v1/posts?sortBy=title&sortOrder=asc")))
}

func (s *HandlersSuite) TestListInvalidSortOrder() {
	rec := s.do("GET", "/api/v1/posts?sortOrder=sideways", "", false)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersSuite) TestPatch() {
	p := s.create(`{"title": "old", "content": "body"}`)

	rec := s.do("PATCH", "/api/v1/posts/"+p.Id, `{"title": "new"}`, true)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Post
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &updated))
	s.Equal("new", updated.Title)
	s.Equal("body", updated.Content)
	s.True(updated.UpdatedAt.After(p.UpdatedAt))

	rec = s.do("PATCH", "/api/v1/posts/"+p.Id, `{"title": ""}`, true)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do("PATCH", "/api/v1/posts/unknown", `{"title": "x"}`, true)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do("PATCH", "/api/v1/posts/"+p.Id, `{"title": "x"}`, false)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlersSuite) TestDelete() {
	p := s.create(`{"title": "bye"}`)

	rec := s.do("DELETE", "/api/v1/posts/"+p.Id, "", true)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"deletedCount": 1}`, rec.Body.String())

	rec = s.do("DELETE", "/api/v1/posts/"+p.Id, "", true)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"deletedCount": 0}`, rec.Body.String())

	rec = s.do("GET", "/api/v1/posts/"+p.Id, "", false)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlersSuite) TestExportInline() {
	rec := s.do("GET", "/api/v1/exports/latest", "", false)
	s.Equal(http.StatusNotFound, rec.Code)

	s.create(`{"title": "exported"}`)
	rec = s.do("POST", "/api/v1/exports", "", true)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var res export.Result
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal(1, res.Count)

	rec = s.do("GET", "/api/v1/exports/latest", "", false)
	s.Require().Equal(http.StatusOK, rec.Code)
	var posts []models.Post
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &posts))
	s.Require().Len(posts, 1)
	s.Equal("exported", posts[0].Title)
}

func (s *HandlersSuite) TestExportQueued() {
	broker := &fakeBroker{}
	s.handler.Broker = broker

	rec := s.do("POST", "/api/v1/exports", "", true)
	s.Require().Equal(http.StatusAccepted, rec.Code)
	s.JSONEq(`{"taskId": "task_1"}`, rec.Body.String())
	s.Equal(1, broker.calls)

	broker.err = errors.New("broker down")
	rec = s.do("POST", "/api/v1/exports", "", true)
	s.Equal(http.StatusInternalServerError, rec.Code)
}

type brokenStorage struct {
	storage.Storage
}

func (brokenStorage) FindById(ctx context.Context, id string) (*models.Post, error) {
	return nil, storage.UnavailableError
}

func (s *HandlersSuite) TestUnavailableStore() {
	s.handler.Service = service.NewPostService(brokenStorage{})
	rec := s.do("GET", "/api/v1/posts/some-id", "", false)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal(INTERNAL_ERROR_MESSAGE+"\n", rec.Body.String())
}
