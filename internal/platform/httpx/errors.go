package httpx

import (
	"errors"
	"net/http"

	"github.com/aloha-social/aloha/internal/shared"
)

// RespondError maps domain errors to HTTP responses. Authentication failures
// (missing, expired, or bad credentials) all collapse into one generic 401 body
// and authorization denials into one generic 403 body, so responses never leak
// which check failed or which permission was required.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrSessionNotFound),
		errors.Is(err, shared.ErrSessionExpired):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, shared.ErrInsufficientPermission):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrDuplicateUsername):
		Problem(w, http.StatusConflict, "Conflict", "username already taken")
	case errors.Is(err, shared.ErrConstraintViolation):
		Problem(w, http.StatusConflict, "Conflict", "constraint violation")
	case errors.Is(err, shared.ErrStoreUnavailable):
		w.Header().Set("Retry-After", "1")
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "temporary backend failure, retry the request")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
