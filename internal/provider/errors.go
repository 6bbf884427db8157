package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies why a provider call or a supporting store failed.
type ErrorKind string

const (
	// ErrNetwork covers connection, DNS and TLS failures and upstream 5xx.
	ErrNetwork ErrorKind = "network"
	// ErrTimeout means the per-provider or global budget ran out.
	ErrTimeout ErrorKind = "timeout"
	// ErrRateLimited means the provider reported throttling.
	ErrRateLimited ErrorKind = "rate_limited"
	// ErrParseFailure means the response could not be understood.
	ErrParseFailure ErrorKind = "parse_failure"
	// ErrCacheUnavailable means local storage failed. Never fatal.
	ErrCacheUnavailable ErrorKind = "cache_unavailable"
	// ErrAuthRequired means a credential-only feature ran without one.
	ErrAuthRequired ErrorKind = "auth_required"
)

// Error is the error type returned by providers.
type Error struct {
	Kind       ErrorKind
	Provider   string
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request may succeed.
func (e *Error) Temporary() bool {
	return e.Kind == ErrNetwork
}

func NewNetworkError(provider string, statusCode int, err error) *Error {
	msg := ""
	if statusCode != 0 {
		msg = fmt.Sprintf("upstream returned %d", statusCode)
	}
	return &Error{Kind: ErrNetwork, Provider: provider, Message: msg, StatusCode: statusCode, Err: err}
}

func NewRateLimitError(provider string, statusCode int, message string) *Error {
	return &Error{Kind: ErrRateLimited, Provider: provider, Message: message, StatusCode: statusCode}
}

func NewParseError(provider string, err error) *Error {
	return &Error{Kind: ErrParseFailure, Provider: provider, Message: "malformed response", Err: err}
}

func NewTimeoutError(provider string, err error) *Error {
	return &Error{Kind: ErrTimeout, Provider: provider, Message: "deadline exceeded", Err: err}
}

func NewAuthRequiredError(provider, feature string) *Error {
	return &Error{Kind: ErrAuthRequired, Provider: provider, Message: feature + " requires a token"}
}

func NewCacheError(err error) *Error {
	return &Error{Kind: ErrCacheUnavailable, Err: err}
}

// KindOf classifies err. Untyped context deadlines map to ErrTimeout and
// anything else unknown is treated as a network failure.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return ErrNetwork
}

// classifyStatus maps a non-2xx HTTP response to an error kind.
func classifyStatus(provider string, resp *http.Response) *Error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewRateLimitError(provider, resp.StatusCode, "too many requests")
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return NewRateLimitError(provider, resp.StatusCode, "rate limit exhausted")
	case resp.StatusCode == http.StatusUnauthorized:
		return &Error{Kind: ErrAuthRequired, Provider: provider, Message: "credential rejected", StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500:
		return NewNetworkError(provider, resp.StatusCode, nil)
	default:
		return &Error{Kind: ErrParseFailure, Provider: provider, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode), StatusCode: resp.StatusCode}
	}
}
