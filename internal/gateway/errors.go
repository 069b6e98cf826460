package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request by its distinguishable cause.
type Kind string

const (
	// KindCanceled marks a request superseded by a newer request with the
	// same fingerprint. Never shown to the user; orchestrators treat it as
	// a non-event.
	KindCanceled Kind = "canceled"

	// KindTimeout marks a deadline that elapsed before a response arrived.
	KindTimeout Kind = "timeout"

	// KindUnauthorized marks an HTTP 401. The session is torn down globally,
	// so per-request surfaces stay quiet.
	KindUnauthorized Kind = "unauthorized"

	// KindForbidden marks an HTTP 403.
	KindForbidden Kind = "forbidden"

	// KindNotFound marks an HTTP 404.
	KindNotFound Kind = "not_found"

	// KindServerError marks an HTTP 5xx.
	KindServerError Kind = "server_error"

	// KindNetworkError marks a request that got no response at all
	// (DNS failure, connection refused). Distinct from KindTimeout.
	KindNetworkError Kind = "network_error"

	// KindValidation marks an HTTP 4xx, optionally carrying structured
	// field errors for inline display next to the originating form.
	KindValidation Kind = "validation"
)

// APIError is the typed error the gateway rejects with.
type APIError struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // human-readable text from the backend, or a fallback

	// Fields holds structured per-field validation errors when the backend
	// sent them. Nil for every other kind.
	Fields map[string][]string

	// SuppressUserMessage is true when the failure must not produce a
	// user-visible notice (canceled requests, globally handled 401s,
	// liveness probes).
	SuppressUserMessage bool
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsCanceled reports whether err is a superseded-request outcome.
func IsCanceled(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindCanceled
}

// AsAPIError unwraps err into an *APIError, or wraps it as a network error
// so callers always have a classified failure to work with.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Kind: KindNetworkError, Message: err.Error()}
}
