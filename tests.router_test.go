package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newStubCatalogService returns a service mock answering every read with empty views.
func newStubCatalogService() *MockCatalogService {
	return &MockCatalogService{
		ListBooksFunc: func(context.Context, int) (ListView[BookView], error) {
			return ListView[BookView]{Page: 1, NumPages: 1, Items: []BookView{}}, nil
		},
		GetBookFunc: func(context.Context, int64) (BookView, error) { return BookView{}, nil },
		ListAuthorsFunc: func(context.Context, int) (ListView[AuthorView], error) {
			return ListView[AuthorView]{Page: 1, NumPages: 1, Items: []AuthorView{}}, nil
		},
		GetAuthorFunc: func(context.Context, int64) (AuthorView, error) { return AuthorView{}, nil },
		AuthenticateFunc: func(context.Context, string, string) (User, error) {
			return User{}, ErrInvalidCredentials
		},
	}
}

// TestSetupCatalogRoutes ensures all expected catalog endpoints are implemented.
func TestSetupCatalogRoutes(t *testing.T) {
	testCases := []struct {
		name        string
		request     *http.Request
		implemented bool
	}{
		{
			"fetch all books endpoint",
			httptest.NewRequest(http.MethodGet, "/catalog/books", nil),
			true,
		},
		{
			"fetch all books endpoint with slash",
			httptest.NewRequest(http.MethodGet, "/catalog/books/", nil),
			true,
		},
		{
			"fetch single book endpoint",
			httptest.NewRequest(http.MethodGet, "/catalog/book/1", nil),
			true,
		},
		{
			"fetch all authors endpoint",
			httptest.NewRequest(http.MethodGet, "/catalog/authors", nil),
			true,
		},
		{
			"fetch single author endpoint",
			httptest.NewRequest(http.MethodGet, "/catalog/author/1", nil),
			true,
		},
		{
			"fetch borrowed books endpoint",
			httptest.NewRequest(http.MethodGet, "/catalog/mybooks", nil),
			true,
		},
		{
			"create book endpoint",
			httptest.NewRequest(http.MethodPost, "/catalog/books", nil),
			false,
		},
		{
			"invalid catalog endpoint",
			httptest.NewRequest(http.MethodGet, "/catalog", nil),
			false,
		},
		{
			"invalid books endpoint",
			httptest.NewRequest(http.MethodGet, "/books", nil),
			false,
		},
	}

	api := newTestAPIHandler(nil, newStubCatalogService(), nil)
	router := httprouter.New()
	m := &MiddlewareMap{public: (&Middlewares{}).Chain, ops: (&Middlewares{}).Chain}
	api.SetupCatalogRoutes(router, m)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tc.request)
			if tc.implemented {
				assert.NotEqual(t, 404, w.Code)
			} else {
				assert.Contains(t, []int{404, 405}, w.Code)
			}
		})
	}
}

// TestSetupAdminRoutes ensures all expected admin endpoints are implemented
// and protected by authentication.
func TestSetupAdminRoutes(t *testing.T) {
	testCases := []struct {
		name    string
		request *http.Request
	}{
		{"admin index", httptest.NewRequest(http.MethodGet, "/admin", nil)},
		{"recent actions", httptest.NewRequest(http.MethodGet, "/admin/history", nil)},
		{"changelist", httptest.NewRequest(http.MethodGet, "/admin/catalog/book", nil)},
		{"add object", httptest.NewRequest(http.MethodPost, "/admin/catalog/book", nil)},
		{"change form", httptest.NewRequest(http.MethodGet, "/admin/catalog/book/1", nil)},
		{"add form", httptest.NewRequest(http.MethodGet, "/admin/catalog/book/add", nil)},
		{"change object", httptest.NewRequest(http.MethodPut, "/admin/catalog/book/1", nil)},
		{"delete object", httptest.NewRequest(http.MethodDelete, "/admin/catalog/book/1", nil)},
		{"object history", httptest.NewRequest(http.MethodGet, "/admin/catalog/book/1/history", nil)},
	}

	api := newTestAPIHandler(nil, newStubCatalogService(), nil)
	router := httprouter.New()
	m := &MiddlewareMap{public: (&Middlewares{}).Chain, ops: (&Middlewares{}).Chain}
	api.SetupAdminRoutes(router, m)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tc.request)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

// TestSetupOpsRoutes ensures all expected operations endpoints are implemented.
func TestSetupOpsRoutes(t *testing.T) {
	testCases := []struct {
		name        string
		request     *http.Request
		implemented bool
	}{
		{
			"fetch configs endpoint",
			httptest.NewRequest(http.MethodGet, "/ops/configs", nil),
			true,
		},
		{
			"fetch stats endpoint",
			httptest.NewRequest(http.MethodGet, "/ops/stats", nil),
			true,
		},
		{
			"maintenance mode endpoint",
			httptest.NewRequest(http.MethodGet, "/ops/maintenance", nil),
			true,
		},
		{
			"invalid ops endpoint",
			httptest.NewRequest(http.MethodGet, "/ops", nil),
			false,
		},
		{
			"unknown ops endpoint",
			httptest.NewRequest(http.MethodGet, "/ops/unknown", nil),
			false,
		},
		{
			"disabled profiler endpoint",
			httptest.NewRequest(http.MethodGet, "/ops/debug/pprof/", nil),
			false,
		},
	}

	api := newTestAPIHandler(&Config{ProfilerEndpointsEnable: false}, nil, nil)
	router := httprouter.New()
	m := &MiddlewareMap{public: (&Middlewares{}).Chain, ops: (&Middlewares{}).Chain}
	api.SetupOpsRoutes(router, m)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tc.request)
			if tc.implemented {
				assert.NotEqual(t, 404, w.Code)
			} else {
				assert.Equal(t, 404, w.Code)
			}
		})
	}
}

// TestSetupRoutes ensures all expected endpoints are implemented.
func TestSetupRoutes(t *testing.T) {
	testCases := []struct {
		name               string
		OpsEndpointsEnable bool
		request            *http.Request
		implemented        bool
	}{
		{
			"ops disable:fetch configs endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/ops/configs", nil),
			false,
		},
		{
			"ops enable:fetch configs endpoint",
			true,
			httptest.NewRequest(http.MethodGet, "/ops/configs", nil),
			true,
		},
		{
			"ops enable:disabled profiler endpoint",
			true,
			httptest.NewRequest(http.MethodGet, "/ops/debug/pprof/", nil),
			false,
		},
		{
			"ops disable:fetch books endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/catalog/books", nil),
			true,
		},
		{
			"ops enable:admin index endpoint",
			true,
			httptest.NewRequest(http.MethodGet, "/admin", nil),
			true,
		},
		{
			"status endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/status", nil),
			true,
		},
		{
			"index endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/", nil),
			true,
		},
		{
			"invalid ops endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/ops/", nil),
			false,
		},
		{
			"invalid book endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/books/", nil),
			false,
		},
	}

	config := &Config{OpsEndpointsEnable: false, ProfilerEndpointsEnable: false}
	api := newTestAPIHandler(config, newStubCatalogService(), nil)
	m := &MiddlewareMap{public: (&Middlewares{}).Chain, ops: (&Middlewares{}).Chain}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := httprouter.New()
			config.OpsEndpointsEnable = tc.OpsEndpointsEnable
			api.SetupRoutes(router, m)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tc.request)
			if tc.implemented {
				assert.NotEqual(t, 404, w.Code)
			} else {
				assert.Equal(t, 404, w.Code)
			}
		})
	}
}

// TestSetupRoutes_NotFound ensures exact status code and json response body when a user requests an inexistant route.
func TestSetupRoutes_NotFound(t *testing.T) {
	m := &MiddlewareMap{public: (&Middlewares{}).Chain, ops: (&Middlewares{}).Chain}
	api := NewAPIHandler(zap.NewNop(), &Config{}, &Statistics{started: NewMockClocker().Now()}, NewMockClocker(), NewMockUIDHandler("abc", true), nil, nil)
	router := httprouter.New()
	api.SetupRoutes(router, m)
	r := httptest.NewRequest(http.MethodGet, "/x/books/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "application/json; charset=UTF-8", res.Header.Get("Content-Type"))
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	expected := `{"requestid":"","status":404,"message":"resource not found","data":{}}`
	assert.JSONEq(t, expected, string(data))
}

// TestSetupOpsRoutes_Profiler ensures named runtime profiles are served once the profiler is enabled.
func TestSetupOpsRoutes_Profiler(t *testing.T) {
	api := newTestAPIHandler(&Config{ProfilerEndpointsEnable: true}, nil, nil)
	router := httprouter.New()
	m := &MiddlewareMap{public: (&Middlewares{}).Chain, ops: (&Middlewares{}).Chain}
	api.SetupOpsRoutes(router, m)

	for _, name := range []string{"heap", "goroutine", "mutex"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/debug/pprof/"+name, nil))
		assert.Equal(t, http.StatusOK, w.Code, name)
	}
}
