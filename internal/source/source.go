package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoBody is returned when a response envelope carries no body.
var ErrNoBody = errors.New("response has no body")

// ErrMalformedPayload classifies a response body that could not be decoded.
var ErrMalformedPayload = errors.New("malformed payload")

// AuthError indicates that authentication has failed for an instance.
// It is returned by connectors when a 401 response is received.
type AuthError struct {
	InstanceID string
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.InstanceID, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is a non-2xx response other than 401 and 429.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Body,
	)
}

// MissingBodyError is reported instead of silently dropping a response
// when an instance runs with the "error" missing-body policy.
type MissingBodyError struct {
	InstanceID string
	Op         string
}

func (e *MissingBodyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.InstanceID, e.Op, ErrNoBody)
}

func (e *MissingBodyError) Unwrap() error { return ErrNoBody }

// PayloadError wraps a decode failure of a response body.
type PayloadError struct {
	Op  string
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrMalformedPayload, e.Err)
}

// Is makes errors.Is(err, ErrMalformedPayload) match.
func (e *PayloadError) Is(target error) bool { return target == ErrMalformedPayload }

func (e *PayloadError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is a missing-body or malformed-payload
// condition rather than a transport failure.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrNoBody) || errors.Is(err, ErrMalformedPayload)
}

// Envelope is the raw response handed back by a Connector.
type Envelope struct {
	StatusCode int
	Header     http.Header

	// Body is nil when the response had no body at all.
	Body *string
}

// HasBody reports whether the envelope carries a body field.
func (e *Envelope) HasBody() bool {
	return e != nil && e.Body != nil
}

// Connector performs a single raw call against the remote system. It owns
// URL construction, authentication, and socket-level retries; it never
// interprets the body.
type Connector interface {
	// Get reads the configured resource.
	Get(ctx context.Context) (*Envelope, error)

	// Post creates a record in the configured resource.
	Post(ctx context.Context) (*Envelope, error)
}

// Result pairs a value with an error. A Result delivered on a channel is
// authoritative: when Err is non-nil, Value is the zero value.
type Result[T any] struct {
	Value T
	Err   error
}
