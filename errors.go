package session

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	textCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	textCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	textCodeNotSignedIn         = "NOT_SIGNED_IN"
	textCodeControllerClosed    = "CONTROLLER_CLOSED"
)

// ErrProviderUnavailable is returned by every action when the controller was
// constructed without an identity client (degraded mode). No I/O is attempted.
var ErrProviderUnavailable = goerrors.New("identity provider not available", goerrors.CategoryOperation).
	WithTextCode(textCodeProviderUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrInvalidCredentials wraps a provider-side credential rejection.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrProfileNotFound is returned by profile stores when no record matches the
// subject. The controller swallows it in background lookups.
var ErrProfileNotFound = goerrors.New("profile not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeProfileNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNotSignedIn is returned by actions that require an active session.
var ErrNotSignedIn = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(textCodeNotSignedIn).
	WithCode(goerrors.CodeUnauthorized)

// ErrControllerClosed is returned by actions dispatched after Close.
var ErrControllerClosed = goerrors.New("session controller is closed", goerrors.CategoryOperation).
	WithTextCode(textCodeControllerClosed).
	WithCode(goerrors.CodeInternal)

// IsProfileNotFound reports whether err means the profile record is missing,
// either our sentinel or a not-found surfaced by the underlying store.
func IsProfileNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProfileNotFound) {
		return true
	}
	return goerrors.IsNotFound(err)
}
