package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	openapi3_routers "github.com/getkin/kin-openapi/routers"
	openapi3_legacy "github.com/getkin/kin-openapi/routers/legacy"
	"github.com/stretchr/testify/suite"
)

//go:embed api.yaml
var apiSpec []byte

var ctx = context.Background()

func TestAPI(t *testing.T) {
	suite.Run(t, &APISuite{})
}

type APISuite struct {
	suite.Suite

	server        *httptest.Server
	client        http.Client
	apiSpecRouter openapi3_routers.Router
}

func (s *APISuite) SetupSuite() {
	s.T().Setenv("STORAGE_MODE", "inmemory")
	s.T().Setenv("EXPORT_DIR", s.T().TempDir())
	os.Unsetenv("EXPORT_BUCKET")
	os.Unsetenv("BROKER_URL")

	srv := CreateServer()
	s.server = httptest.NewServer(srv.Handler)

	spec, err := openapi3.NewLoader().LoadFromData(apiSpec)
	s.Require().NoError(err)
	s.Require().NoError(spec.Validate(ctx))
	router, err := openapi3_legacy.NewRouter(spec)
	s.Require().NoError(err)
	s.apiSpecRouter = router
	s.client.Transport = s.specValidating(http.DefaultTransport)
}

func (s *APISuite) TearDownSuite() {
	s.server.Close()
}

// specValidating checks every request and response against api.yaml.
func (s *APISuite) specValidating(transport http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		reqBody := s.readAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(reqBody))

		route, params, err := s.apiSpecRouter.FindRoute(req)
		s.Require().NoError(err)
		reqDescriptor := &openapi3filter.RequestValidationInput{
			Request:     req,
			PathParams:  params,
			QueryParams: req.URL.Query(),
			Route:       route,
		}
		s.Require().NoError(openapi3filter.ValidateRequest(ctx, reqDescriptor))

		req.Body = io.NopCloser(bytes.NewReader(reqBody))
		resp, err := transport.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		respBody := s.readAll(resp.Body)

		s.Require().NoError(openapi3filter.ValidateResponse(ctx, &openapi3filter.ResponseValidationInput{
			RequestValidationInput: reqDescriptor,
			Status:                 resp.StatusCode,
			Header:                 resp.Header,
			Body:                   io.NopCloser(bytes.NewReader(respBody)),
		}))

		resp.Body = io.NopCloser(bytes.NewReader(respBody))
		return resp, nil
	})
}

func (s *APISuite) readAll(in io.Reader) []byte {
	if in == nil {
		return nil
	}
	data, err := io.ReadAll(in)
	s.Require().NoError(err)
	return data
}

type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (fn RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

type post struct {
	Id        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *APISuite) request(method, path, body string, token bool) *http.Response {
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token {
		req.Header.Set("Authorization", "Bearer 12345")
	}
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *APISuite) decode(resp *http.Response, v interface{}) {
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func (s *APISuite) TestPing() {
	resp := s.request("GET", "/maintenance/ping", "", false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestPostLifecycle() {
	resp := s.request("POST", "/api/v1/posts", `{"title": "1234", "author": "api", "tags": ["lifecycle"]}`, true)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var p post
	s.decode(resp, &p)
	s.Require().NotEmpty(p.Id)
	s.True(p.CreatedAt.Equal(p.UpdatedAt))

	resp = s.request("GET", "/api/v1/posts/"+p.Id, "", false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp = s.request("PATCH", "/api/v1/posts/"+p.Id, `{"content": "new text"}`, true)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var patched post
	s.decode(resp, &patched)
	s.Equal("1234", patched.Title)
	s.Equal("new text", patched.Content)
	s.True(patched.UpdatedAt.After(p.UpdatedAt))
	s.True(p.CreatedAt.Equal(patched.CreatedAt))

	resp = s.request("GET", "/api/v1/posts?tag=lifecycle&sortOrder=ascending", "", false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var tagged []post
	s.decode(resp, &tagged)
	s.Require().Len(tagged, 1)
	s.Equal("new text", tagged[0].Content)

	resp = s.request("DELETE", "/api/v1/posts/"+p.Id, "", true)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp = s.request("GET", "/api/v1/posts/"+p.Id, "", false)
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.request("PATCH", "/api/v1/posts/"+p.Id, `{"title": "gone"}`, true)
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *APISuite) TestWritesNeedToken() {
	resp := s.request("POST", "/api/v1/posts", `{"title": "anonymous"}`, false)
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.request("DELETE", "/api/v1/posts/anything", "", false)
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestInvalidSortOrder() {
	resp := s.request("GET", "/api/v1/posts?sortOrder=upwards", "", false)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *APISuite) TestExport() {
	resp := s.request("POST", "/api/v1/posts", `{"title": "to export"}`, true)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp = s.request("POST", "/api/v1/exports", "", true)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp = s.request("GET", "/api/v1/exports/latest", "", false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var exported []post
	s.decode(resp, &exported)
	s.NotEmpty(exported)
}
