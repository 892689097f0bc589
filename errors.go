package netatmo

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the Netatmo client.
// All errors are defined here for easy discovery and consistent organization.
var (
	// Authentication errors
	ErrNotAuthenticated   = errors.New("netatmo: not authenticated (no credential has been obtained)")
	ErrReauthRequired     = errors.New("netatmo: token refresh failed, re-authentication required")
	ErrMissingAccessToken = errors.New("netatmo: token response missing access token")
	ErrNoRefreshToken     = errors.New("netatmo: credential has no refresh token")
	ErrUnauthorized       = errors.New("netatmo: unauthorized (invalid or expired token)")
	ErrEmptyToken         = errors.New("netatmo: access token cannot be empty")

	// Resource errors
	ErrNotFound = errors.New("netatmo: resource not found")

	// Rate limiting
	ErrRateLimited = errors.New("netatmo: usage limit reached (too many requests)")

	// Configuration validation errors
	ErrNilConfig         = errors.New("netatmo: OAuth config cannot be nil")
	ErrEmptyClientID     = errors.New("netatmo: client ID cannot be empty")
	ErrEmptyClientSecret = errors.New("netatmo: client secret cannot be empty")
	ErrInvalidScope      = errors.New("netatmo: scope is not in the set of known scopes")

	// Request validation errors
	ErrEmptyDeviceID   = errors.New("netatmo: device ID cannot be empty")
	ErrEmptyHomeID     = errors.New("netatmo: home ID cannot be empty")
	ErrEmptyPersonID   = errors.New("netatmo: person ID cannot be empty")
	ErrEmptyEventID    = errors.New("netatmo: event ID cannot be empty")
	ErrEmptyImageID    = errors.New("netatmo: image ID cannot be empty")
	ErrEmptyKey        = errors.New("netatmo: security key cannot be empty")
	ErrEmptyModuleID   = errors.New("netatmo: module ID cannot be empty")
	ErrEmptyWebhookURL = errors.New("netatmo: webhook URL cannot be empty")
	ErrEmptyUsername   = errors.New("netatmo: username cannot be empty")
	ErrEmptyCode       = errors.New("netatmo: authorization code cannot be empty")
	ErrEmptyScale      = errors.New("netatmo: measurement scale cannot be empty")
	ErrNoMeasureTypes  = errors.New("netatmo: at least one measure type is required")
	ErrEmptyThermMode  = errors.New("netatmo: setpoint mode cannot be empty")
)

// AuthError reports a failed credential exchange: the initial grant, a code
// exchange, or a token refresh. The provider's error description is carried
// when the token endpoint returned one.
type AuthError struct {
	// Op is the operation that failed: "authenticate", "exchange", "refresh"
	// or "call" when an API call was rejected before any I/O.
	Op string

	// Description is the provider's error_description, if any.
	Description string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("netatmo: %s failed: %v (%s)", e.Op, e.Err, e.Description)
	}
	return fmt.Sprintf("netatmo: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError represents an error response from the Netatmo API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("netatmo: API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("netatmo: API error %d", e.StatusCode)
}

// Is allows errors.Is() to match the sentinel for the status class.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == 401 || e.StatusCode == 403
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrRateLimited:
		// Netatmo reports usage limits with 426 alongside the usual 429.
		return e.StatusCode == 426 || e.StatusCode == 429
	}
	return false
}

// ParseError reports a response body that could not be decoded as the
// declared content type. Preview holds a truncated copy of the body for
// diagnostics.
type ParseError struct {
	Resource string
	Preview  string
	Err      error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("netatmo: failed to parse %s response: %v (body: %s)", e.Resource, e.Err, e.Preview)
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsAuthError returns true if the error originated in a credential exchange.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsUnauthorized returns true if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// IsNotFound returns true if the error indicates the resource was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates the usage limit was hit.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 426 || apiErr.StatusCode == 429
	}
	return false
}

// IsParseError returns true if the error reports an undecodable response body.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
