package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a provider failure. Remediation differs per kind, so
// callers branch on this instead of matching error strings.
type Kind string

const (
	// MissingCredential: no API key supplied where one is required.
	// Returned before any network call.
	MissingCredential Kind = "missing_credential"
	// InvalidCredential: the backend rejected the key (401/403).
	InvalidCredential Kind = "invalid_credential"
	// RateLimited: the backend returned 429.
	RateLimited Kind = "rate_limited"
	// TransportUnavailable: network-level failure or backend 5xx. The
	// remediation is "check the connection / is the server running",
	// not "check the key".
	TransportUnavailable Kind = "transport_unavailable"
	// MalformedProviderResponse: HTTP succeeded but the body is missing
	// the expected message/content field, or the backend rejected the
	// request shape with a non-auth 4xx.
	MalformedProviderResponse Kind = "malformed_provider_response"
	// ResponseFormat: the transport-level body parsed, but the embedded
	// payload is not valid JSON for the task even after fence-stripping.
	ResponseFormat Kind = "response_format"
)

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider ID
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds a classified error.
func Errf(id ID, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Provider: id, Message: fmt.Sprintf(format, args...)}
}

// WrapErr builds a classified error around a cause.
func WrapErr(id ID, kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Provider: id, Message: message, Err: err}
}

// KindOf extracts the classification from err, or "" when err is not a
// provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// ClassifyStatus maps an HTTP status code from a backend to a Kind.
func ClassifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return InvalidCredential
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status >= 500:
		return TransportUnavailable
	default:
		return MalformedProviderResponse
	}
}

// ClassifyTransport wraps a failed round trip. DNS errors, refused
// connections, and timeouts all land in TransportUnavailable; context
// cancellation passes through untouched so callers can distinguish their
// own aborts.
func ClassifyTransport(id ID, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return WrapErr(id, TransportUnavailable, err, "backend unreachable")
	}
	return WrapErr(id, TransportUnavailable, err, "request failed")
}
