package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/aloha-social/aloha/internal/platform/httpx"
	"github.com/aloha-social/aloha/internal/session"
	"github.com/aloha-social/aloha/internal/shared"
)

// PermissionResolver computes a user's effective permission set. Satisfied by
// Service.
type PermissionResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (PermissionSet, error)
}

// Gate is the single choke point every protected operation calls through. It
// combines who is calling (the session) with what they may do (the resolver).
// Handlers never consult the resolver directly.
type Gate struct {
	Sessions *session.Manager
	Resolver PermissionResolver
	Logger   *slog.Logger
}

// Authorize resolves the session token and checks the required permission
// against the user's effective set. Any resolver failure denies: an internal
// error is never interpreted as allow. Store unavailability is reported as
// such so callers can retry instead of re-authenticating.
func (g Gate) Authorize(ctx context.Context, token, requiredPermission string) (uuid.UUID, error) {
	sess, err := g.Sessions.Resolve(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	perms, err := g.Resolver.Resolve(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrStoreUnavailable) {
			return uuid.Nil, err
		}
		if g.Logger != nil {
			g.Logger.Error("resolve permissions", slog.Any("error", err))
		}
		return uuid.Nil, shared.ErrInsufficientPermission
	}
	if !perms.Has(requiredPermission) {
		return uuid.Nil, shared.ErrInsufficientPermission
	}
	return sess.UserID, nil
}

// Require is the HTTP middleware form of Authorize. Requests without a live
// session get a generic 401; authenticated requests missing the permission get
// a generic 403. The two bodies never reveal which permission was required.
func (g Gate) Require(requiredPermission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromContext(r.Context())
			if sess == nil {
				httpx.RespondError(w, shared.ErrSessionNotFound)
				return
			}
			perms, err := g.Resolver.Resolve(r.Context(), sess.UserID)
			if err != nil {
				if errors.Is(err, shared.ErrStoreUnavailable) {
					httpx.RespondError(w, err)
					return
				}
				if g.Logger != nil {
					g.Logger.Error("resolve permissions", slog.Any("error", err))
				}
				httpx.RespondError(w, shared.ErrInsufficientPermission)
				return
			}
			if !perms.Has(requiredPermission) {
				httpx.RespondError(w, shared.ErrInsufficientPermission)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
