package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed call.
type Kind string

const (
	KindNetwork     Kind = "network_error"
	KindRateLimited Kind = "rate_limited"
	KindNotFound    Kind = "not_found"
	KindClient      Kind = "client_error"
	KindServer      Kind = "server_error"
	KindParse       Kind = "parse_error"
)

// Error is returned for every failed call. StatusCode is zero when no
// response was received.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindServer:
		return true
	default:
		return false
	}
}

// IsStatus reports whether err was derived from a non-2xx response status.
func IsStatus(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindNotFound, KindClient, KindServer:
		return StatusOf(err) != 0
	default:
		return false
	}
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusNotFound:
		return KindNotFound
	case code >= 500:
		return KindServer
	default:
		return KindClient
	}
}
