package session_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aloha-social/aloha/internal/session"
)

func TestMiddlewareInjectsSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := session.NewManager(client, "test_session", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	userID := uuid.New()
	sess, err := manager.Create(context.Background(), userID)
	require.NoError(t, err)

	var got *session.Session
	handler := manager.Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = session.FromContext(r.Context())
	}))

	t.Run("via header", func(t *testing.T) {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(session.TokenHeader, sess.Token)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, got)
		assert.Equal(t, userID, got.UserID)
	})

	t.Run("via cookie", func(t *testing.T) {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "test_session", Value: sess.Token})
		handler.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, got)
		assert.Equal(t, userID, got.UserID)
	})

	t.Run("no token continues anonymous", func(t *testing.T) {
		got = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Nil(t, got)
	})

	t.Run("stale token continues anonymous", func(t *testing.T) {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(session.TokenHeader, "stale")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Nil(t, got)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("store down is a retryable failure", func(t *testing.T) {
		mr.Close()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(session.TokenHeader, sess.Token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})
}
