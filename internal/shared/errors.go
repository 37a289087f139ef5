package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. It is used for unknown
	// usernames and wrong passwords alike so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrSessionNotFound indicates the session token resolves to nothing.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session exists but is past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrInsufficientPermission indicates the caller lacks the required permission.
	ErrInsufficientPermission = errors.New("insufficient permission")
	// ErrConstraintViolation indicates a uniqueness or referential constraint failed.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrStoreUnavailable indicates a backing store timed out or refused the
	// operation. Always retryable by the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)
