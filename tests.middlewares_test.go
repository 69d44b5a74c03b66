package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAPIHandler(config *Config, service CatalogServiceProvider, site *AdminSite) *APIHandler {
	if config == nil {
		config = &Config{}
	}
	return NewAPIHandler(zap.NewNop(), config, &Statistics{started: NewMockClocker().Now()}, NewMockClocker(), NewMockUIDHandler("abc", true), service, site)
}

// TestMiddlewaresStacks ensures we get both public and ops middlewares
// stacks with exact number of elements in those stacks.
func TestMiddlewaresStacks(t *testing.T) {
	api := newTestAPIHandler(nil, nil, nil)
	pub, ops := api.MiddlewaresStacks()
	assert.Equal(t, 7, len(*pub))
	assert.Equal(t, 6, len(*ops))
}

// TestChain ensures each middleware in the stack is called as well the handler.
func TestChain(t *testing.T) {
	var ca, cb, cc, ch bool
	queue := make(chan int, 4)

	middlewareA := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 1
			ca = true
			next(w, r, ps)
		}
	}
	middlewareB := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 2
			cb = true
			next(w, r, ps)
		}
	}
	middlewareC := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 3
			cc = true
			next(w, r, ps)
		}
	}
	middlewares := Middlewares{
		middlewareA,
		middlewareB,
		middlewareC,
	}

	handler := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		queue <- 4
		ch = true
	}

	chained := (&middlewares).Chain(handler)
	req := httptest.NewRequest("GET", "/catalog/books", nil)
	w := httptest.NewRecorder()
	chained(w, req, nil)

	t.Run("check calling", func(t *testing.T) {
		assert.Equal(t, true, ca)
		assert.Equal(t, true, cb)
		assert.Equal(t, true, cc)
		assert.Equal(t, true, ch)
	})

	t.Run("check ordering", func(t *testing.T) {
		assert.Equal(t, 1, <-queue)
		assert.Equal(t, 2, <-queue)
		assert.Equal(t, 3, <-queue)
		assert.Equal(t, 4, <-queue)
	})
}

// TestRequestsCounterMiddleware ensures the request counter increment.
func TestRequestsCounterMiddleware(t *testing.T) {
	api := newTestAPIHandler(nil, nil, nil)
	req := httptest.NewRequest("GET", "/catalog/books", nil)
	w := httptest.NewRecorder()
	var called bool
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		called = true
		assert.Equal(t, uint64(1), GetRequestNumberFromContext(req.Context()))
	}
	wrapped := api.RequestsCounterMiddleware(handler)
	wrapped(w, req, nil)
	assert.Equal(t, true, called)
	assert.Equal(t, uint64(1), api.stats.called)
}

// TestRequestIDAndCoreMiddlewares ensures the request id is exposed and a
// request scoped logger is available to the handlers.
func TestRequestIDAndCoreMiddlewares(t *testing.T) {
	api := newTestAPIHandler(&Config{Server: ServerConfig{RequestTimeout: time.Minute}}, nil, nil)
	req := httptest.NewRequest("GET", "/catalog/books", nil)
	w := httptest.NewRecorder()
	handler := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		assert.Equal(t, "r:abc", GetValueFromContext(r.Context(), RequestIDContextKey))
		_, ok := r.Context().Value(LoggerContextKey).(*zap.Logger)
		assert.True(t, ok)
		_, hasDeadline := r.Context().Deadline()
		assert.True(t, hasDeadline)
	}
	api.RequestIDMiddleware(api.CoreMiddleware(handler))(w, req, nil)
	assert.Equal(t, "r:abc", w.Header().Get("X-Request-Id"))
}

// TestStatsMiddleware ensures responses are counted per status code.
func TestStatsMiddleware(t *testing.T) {
	api := newTestAPIHandler(nil, nil, nil)
	handler := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.WriteHeader(http.StatusTeapot)
	}
	wrapped := api.StatsMiddleware(handler)
	for i := 0; i < 2; i++ {
		wrapped(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), nil)
	}
	assert.Equal(t, uint64(2), api.stats.status[http.StatusTeapot])
}

// TestPanicRecoveryMiddleware ensures a panicking handler answers with 500.
func TestPanicRecoveryMiddleware(t *testing.T) {
	api := newTestAPIHandler(nil, nil, nil)
	handler := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		panic("boom")
	}
	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		api.PanicRecoveryMiddleware(handler)(w, httptest.NewRequest("GET", "/", nil), nil)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"requestid":"","status":500,"message":"failed to process the request.","data":{}}`, w.Body.String())
}

// TestMaintenanceModeMiddleware ensures public requests are blocked while the mode is enabled.
func TestMaintenanceModeMiddleware(t *testing.T) {
	api := newTestAPIHandler(nil, nil, nil)
	var called bool
	handler := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		called = true
	}
	wrapped := api.MaintenanceModeMiddleware(handler)

	api.mode.enabled.Store(true)
	api.mode.message = "moving shelves"
	w := httptest.NewRecorder()
	wrapped(w, httptest.NewRequest("GET", "/catalog/books", nil), nil)
	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "moving shelves")

	api.mode.enabled.Store(false)
	wrapped(httptest.NewRecorder(), httptest.NewRequest("GET", "/catalog/books", nil), nil)
	assert.True(t, called)
}

// TestBasicAuthMiddleware ensures credentials are checked and the user is
// saved into the request context.
func TestBasicAuthMiddleware(t *testing.T) {
	users := map[string]User{
		"reader": {ID: 1, Username: "reader", IsActive: true},
		"admin":  {ID: 2, Username: "admin", IsActive: true, IsStaff: true},
	}
	service := &MockCatalogService{
		AuthenticateFunc: func(_ context.Context, username, password string) (User, error) {
			if username == "broken" {
				return User{}, errors.New("database is down")
			}
			user, ok := users[username]
			if !ok || password != "secret" {
				return User{}, ErrInvalidCredentials
			}
			return user, nil
		},
	}
	api := newTestAPIHandler(&Config{Admin: AdminConfig{Realm: "Library admin"}}, service, nil)

	testCases := []struct {
		name      string
		staffOnly bool
		username  string
		password  string
		status    int
	}{
		{"no credentials", false, "", "", http.StatusUnauthorized},
		{"wrong password", false, "reader", "nope", http.StatusUnauthorized},
		{"storage failure", false, "broken", "secret", http.StatusInternalServerError},
		{"member", false, "reader", "secret", http.StatusOK},
		{"member on staff area", true, "reader", "secret", http.StatusForbidden},
		{"staff", true, "admin", "secret", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
				user, ok := GetUserFromContext(r.Context())
				require.True(t, ok)
				assert.Equal(t, tc.username, user.Username)
				w.WriteHeader(http.StatusOK)
			}
			req := httptest.NewRequest("GET", "/admin", nil)
			if tc.username != "" {
				req.SetBasicAuth(tc.username, tc.password)
			}
			w := httptest.NewRecorder()
			api.BasicAuthMiddleware(tc.staffOnly)(handler)(w, req, nil)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="Library admin", charset="UTF-8"`, w.Header().Get("WWW-Authenticate"))
			} else {
				assert.Empty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}
