package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aloha-social/aloha/internal/platform/httpx"
	"github.com/aloha-social/aloha/internal/shared"
)

// TokenHeader is the header alternative to the session cookie.
const TokenHeader = "X-Session-Token"

// TokenFromRequest extracts the session token from the cookie or header.
// Returns the empty string when the request carries neither.
func (m *Manager) TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.Header.Get(TokenHeader)
}

// WriteCookie sets the session cookie on the response.
func (m *Manager) WriteCookie(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  sess.ExpiresAt,
	})
}

// ClearCookie expires the session cookie on the response.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Middleware resolves the incoming session token and stores the session in the
// request context. Requests without a resolvable session pass through with an
// empty context entry; the authorization gate decides what that means. Store
// failures are surfaced as retryable 503s rather than treated as anonymous.
func (m *Manager) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := m.TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := m.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, shared.ErrStoreUnavailable) {
					logger.Error("session resolve", slog.Any("error", err))
					httpx.RespondError(w, err)
					return
				}
				// Unknown or expired token: continue unauthenticated.
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWith(r.Context(), sess)))
		})
	}
}
