package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aloha-social/aloha/internal/session"
	"github.com/aloha-social/aloha/internal/shared"
)

// routerFixture mounts the permission API behind the session middleware with
// one fully privileged admin and one user holding nothing.
func routerFixture(t *testing.T) (*chi.Mux, *mockRepository, string, string) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := session.NewManager(client, "test_session", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := newMockRepository()
	svc := NewService(repo)
	gate := Gate{Sessions: sessions, Resolver: svc, Logger: logger}
	handler := NewHandler(logger, svc, gate)

	ctx := context.Background()
	admin := uuid.New()
	for _, name := range shared.CoreScopes() {
		perm, err := svc.CreatePermission(ctx, name, "")
		require.NoError(t, err)
		require.NoError(t, svc.GrantToUser(ctx, admin, perm.ID))
	}
	adminSess, err := sessions.Create(ctx, admin)
	require.NoError(t, err)
	memberSess, err := sessions.Create(ctx, uuid.New())
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(sessions.Middleware(logger))
	router.Route("/permissions", handler.MountPermissionRoutes)
	router.Route("/user_permissions", handler.MountUserGrantRoutes)
	router.Route("/user_groups", handler.MountGroupRoutes)
	return router, repo, adminSess.Token, memberSess.Token
}

func doJSON(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set(session.TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPermissionCRUDOverHTTP(t *testing.T) {
	router, _, admin, _ := routerFixture(t)

	rec := doJSON(router, http.MethodPost, "/permissions", admin,
		`{"name":"delete_post","description":"remove any post"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "delete_post", created.Name)

	rec = doJSON(router, http.MethodGet, "/permissions/"+created.ID, admin, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodPatch, "/permissions/"+created.ID, admin,
		`{"description":"moderators only"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "moderators only")

	rec = doJSON(router, http.MethodDelete, "/permissions/"+created.ID, admin, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(router, http.MethodGet, "/permissions/"+created.ID, admin, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPermissionListPagination(t *testing.T) {
	router, _, admin, _ := routerFixture(t)

	for i := 0; i < 5; i++ {
		rec := doJSON(router, http.MethodPost, "/permissions", admin,
			fmt.Sprintf(`{"name":"perm_%d"}`, i))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(router, http.MethodGet, "/permissions?page=1&size=3", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Pagination shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Pagination.Page)
	assert.Equal(t, 3, body.Pagination.PerPage)
	// Five created plus the fixture's scope permissions.
	assert.Equal(t, 5+len(shared.CoreScopes()), body.Pagination.Total)
}

func TestBulkDeletePermissions(t *testing.T) {
	router, _, admin, _ := routerFixture(t)

	var ids []string
	for _, name := range []string{"a", "b"} {
		rec := doJSON(router, http.MethodPost, "/permissions", admin, `{"name":"`+name+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		var created struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		ids = append(ids, created.ID)
	}

	payload, err := json.Marshal(map[string][]string{"ids": ids})
	require.NoError(t, err)
	rec := doJSON(router, http.MethodDelete, "/permissions", admin, string(payload))
	require.Equal(t, http.StatusNoContent, rec.Code)

	for _, id := range ids {
		rec = doJSON(router, http.MethodGet, "/permissions/"+id, admin, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
}

func TestGrantEndpoints(t *testing.T) {
	router, repo, admin, _ := routerFixture(t)

	rec := doJSON(router, http.MethodPost, "/permissions", admin, `{"name":"ban_user"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var perm struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &perm))

	target := uuid.New()
	body := fmt.Sprintf(`{"user_id":%q,"permission_id":%q}`, target, perm.ID)

	rec = doJSON(router, http.MethodPost, "/user_permissions", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	// Granting again stays a no-op.
	rec = doJSON(router, http.MethodPost, "/user_permissions", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, repo.userGrants[target], 1)

	rec = doJSON(router, http.MethodDelete, "/user_permissions", admin, body)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.userGrants[target])
}

func TestRoutesAreGated(t *testing.T) {
	router, _, _, member := routerFixture(t)

	// Anonymous gets 401.
	rec := doJSON(router, http.MethodGet, "/permissions", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authenticated without the scope gets 403 on views and mutations alike.
	rec = doJSON(router, http.MethodGet, "/permissions", member, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(router, http.MethodPost, "/user_groups", member, `{"group_name":"admins"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreatePermissionValidation(t *testing.T) {
	router, _, admin, _ := routerFixture(t)

	rec := doJSON(router, http.MethodPost, "/permissions", admin, `{"description":"nameless"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(router, http.MethodPost, "/permissions", admin, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
