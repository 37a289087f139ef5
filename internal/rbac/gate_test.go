package rbac

import (
	"context"
	"errors"
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
	"github.com/aloha-social/aloha/internal/shared"
)

type failingRepository struct {
	mockRepository
	err error
}

func (f *failingRepository) EffectivePermissionNames(context.Context, uuid.UUID) ([]string, error) {
	return nil, f.err
}

func gateFixture(t *testing.T, repo Repository) (Gate, *Service, *session.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := session.NewManager(client, "test_session", time.Hour, false)
	svc := NewService(repo)
	return Gate{Sessions: sessions, Resolver: svc}, svc, sessions
}

func TestAuthorize(t *testing.T) {
	repo := newMockRepository()
	gate, svc, sessions := gateFixture(t, repo)
	ctx := context.Background()

	perm, err := svc.CreatePermission(ctx, "post_tweet", "")
	require.NoError(t, err)
	userID := uuid.New()
	require.NoError(t, svc.GrantToUser(ctx, userID, perm.ID))

	sess, err := sessions.Create(ctx, userID)
	require.NoError(t, err)

	got, err := gate.Authorize(ctx, sess.Token, "post_tweet")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = gate.Authorize(ctx, sess.Token, "ban_user")
	assert.ErrorIs(t, err, shared.ErrInsufficientPermission)

	_, err = gate.Authorize(ctx, "bogus-token", "post_tweet")
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestAuthorizeAfterLogout(t *testing.T) {
	repo := newMockRepository()
	gate, svc, sessions := gateFixture(t, repo)
	ctx := context.Background()

	perm, err := svc.CreatePermission(ctx, "post_tweet", "")
	require.NoError(t, err)
	userID := uuid.New()
	require.NoError(t, svc.GrantToUser(ctx, userID, perm.ID))

	sess, err := sessions.Create(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, sessions.Destroy(ctx, sess.Token))

	_, err = gate.Authorize(ctx, sess.Token, "post_tweet")
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestAuthorizeResolverFailureDenies(t *testing.T) {
	repo := &failingRepository{err: errors.New("boom")}
	gate, _, sessions := gateFixture(t, repo)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, uuid.New())
	require.NoError(t, err)

	// An internal resolver error must read as deny, never allow.
	_, err = gate.Authorize(ctx, sess.Token, "post_tweet")
	assert.ErrorIs(t, err, shared.ErrInsufficientPermission)
}

func TestAuthorizeStoreUnavailablePassesThrough(t *testing.T) {
	repo := &failingRepository{err: shared.ErrStoreUnavailable}
	gate, _, sessions := gateFixture(t, repo)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, uuid.New())
	require.NoError(t, err)

	_, err = gate.Authorize(ctx, sess.Token, "post_tweet")
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

func TestRequireMiddleware(t *testing.T) {
	repo := newMockRepository()
	gate, svc, sessions := gateFixture(t, repo)
	ctx := context.Background()

	perm, err := svc.CreatePermission(ctx, "users.edit", "")
	require.NoError(t, err)
	allowed := uuid.New()
	require.NoError(t, svc.GrantToUser(ctx, allowed, perm.ID))
	denied := uuid.New()

	allowedSess, err := sessions.Create(ctx, allowed)
	require.NoError(t, err)
	deniedSess, err := sessions.Create(ctx, denied)
	require.NoError(t, err)

	handler := gate.Require("users.edit")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("no session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing permission", func(t *testing.T) {
		sess, err := sessions.Resolve(ctx, deniedSess.Token)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/users", nil)
		req = req.WithContext(session.ContextWith(req.Context(), sess))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		// The body stays generic; it must not name the missing permission.
		assert.NotContains(t, rec.Body.String(), "users.edit")
	})

	t.Run("granted", func(t *testing.T) {
		sess, err := sessions.Resolve(ctx, allowedSess.Token)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/users", nil)
		req = req.WithContext(session.ContextWith(req.Context(), sess))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("store unavailable", func(t *testing.T) {
		failing := Gate{Sessions: sessions, Resolver: NewService(&failingRepository{err: shared.ErrStoreUnavailable})}
		h := failing.Require("users.edit")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		sess, err := sessions.Resolve(ctx, allowedSess.Token)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/users", nil)
		req = req.WithContext(session.ContextWith(req.Context(), sess))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})
}
