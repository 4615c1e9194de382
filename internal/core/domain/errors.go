package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures surfaced by the gateway.
type ErrorKind string

const (
	KindMissingParameter    ErrorKind = "missing_parameter"
	KindUnknownDestination  ErrorKind = "unknown_destination"
	KindNoProviderAvailable ErrorKind = "no_provider_available"
	KindUpstreamTimeout     ErrorKind = "upstream_timeout"
	KindUpstreamError       ErrorKind = "upstream_error"
)

// Error is a request failure with a machine-readable kind.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status code clients should see.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindMissingParameter:
		return http.StatusBadRequest
	case KindUnknownDestination:
		return http.StatusNotFound
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

// NewError builds an Error using the default status for kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// ErrUpstreamTimeout is returned by upstream clients when a call exceeds its deadline.
var ErrUpstreamTimeout = errors.New("upstream request timed out")

// UpstreamResponseError is a non-success answer from an upstream service.
type UpstreamResponseError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamResponseError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GeolocationError is an API-level refusal from an IP geolocation service,
// delivered with a successful HTTP status.
type GeolocationError struct {
	Info string
}

func (e *GeolocationError) Error() string {
	return "geolocation lookup failed: " + e.Info
}
