package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHash(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAPIKeyAuth_Middleware(t *testing.T) {
	auth := NewAPIKeyAuth("", []string{testHash(t, "s3cret"), "  "}, time.Minute)
	require.True(t, auth.Enabled())

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := auth.Middleware(ok)

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header", map[string]string{"X-API-Key": "s3cret"}, http.StatusNoContent},
		{"bearer", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/run", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAPIKeyAuth_CachesVerification(t *testing.T) {
	auth := NewAPIKeyAuth("X-API-Key", []string{testHash(t, "k1")}, time.Minute)

	assert.True(t, auth.IsValid("k1"))
	assert.Equal(t, 1, auth.verified.ItemCount())

	// With the hashes gone, only the cached verification can accept k1.
	auth.hashes = nil
	assert.True(t, auth.IsValid("k1"))
	assert.False(t, auth.IsValid("k2"))
}

func TestAPIKeyAuth_NoKeysRejectsEverything(t *testing.T) {
	auth := NewAPIKeyAuth("X-API-Key", nil, 0)
	assert.False(t, auth.Enabled())
	assert.False(t, auth.IsValid("anything"))
}

func TestHashAPIKey(t *testing.T) {
	hash, err := HashAPIKey("abc")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("abc")))
}

func TestCacheControlMiddleware(t *testing.T) {
	h := ChainHandler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		SecurityHeadersMiddleware,
		CacheControlMiddleware(time.Hour),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	h := RequestSizeLimitMiddleware(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.ContentLength = 10
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCompositeHealthChecker(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	status := c.Check(context.Background())
	assert.True(t, status.Healthy)

	c.AddCheck("database", NewDatabaseCheck(pinger{}))
	c.AddCheck("gpa_backend", NewBackendCheck(pinger{err: errors.New("down")}))
	c.AddCheck("cache", NewCacheCheck(pinger{err: errors.New("refused")}))

	status = c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: cache, gpa_backend", status.Message)
	assert.True(t, status.Checks["database"].Healthy)

	c.RemoveCheck("gpa_backend")
	c.RemoveCheck("cache")
	assert.True(t, c.Check(context.Background()).Healthy)
}

func TestDatabaseCheck_ExhaustedPool(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("database", NewDatabaseCheck(pinger{err: errors.New("postgres: connection pool exhausted: 5 of 5 connections in use")}))

	status := c.Check(context.Background())
	assert.False(t, status.Ready)
	assert.False(t, status.Checks["database"].Healthy)
	assert.Contains(t, status.Checks["database"].Message, "pool exhausted")
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

// Check lets pinger stand in for a database as well.
func (p pinger) Check(context.Context) error { return p.err }
