package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (connection refused, unreachable, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeAuth indicates an authentication failure
	ErrTypeAuth
	// ErrTypeHTTP indicates an HTTP-level error (non-200 status code)
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response
	ErrTypeParse
	// ErrTypeRPC indicates the device answered with a JSON-RPC error object
	ErrTypeRPC
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeRPC:
		return "RPC Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred talking to a device
type DeviceError struct {
	Type       ErrorType // Category of error
	Method     string    // RPC method, when known
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	Code       int       // JSON-RPC error code (if applicable)
	Err        error     // Underlying error (if any)
	Retryable  bool      // Whether the error is retryable
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	prefix := e.Type.String()
	if e.Method != "" {
		prefix = e.Method + ": " + prefix
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps a transport error to a DeviceError.
func classifyNetworkError(method string, err error) *DeviceError {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &DeviceError{Type: ErrTypeTimeout, Method: method, Message: "request timed out", Err: err, Retryable: true}
	}
	if errors.Is(err, context.Canceled) {
		return &DeviceError{Type: ErrTypeNetwork, Method: method, Message: "request cancelled", Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{Type: ErrTypeNetwork, Method: method, Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name), Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &DeviceError{Type: ErrTypeNetwork, Method: method, Message: "device refused connection", Err: err, Retryable: true}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH), errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &DeviceError{Type: ErrTypeNetwork, Method: method, Message: "device unreachable", Err: err, Retryable: true}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return classifyNetworkError(method, urlErr.Err)
	}

	return &DeviceError{Type: ErrTypeNetwork, Method: method, Message: "network error occurred", Err: err, Retryable: true}
}

func newHTTPError(method string, statusCode int, body string) *DeviceError {
	if statusCode == http.StatusUnauthorized {
		return &DeviceError{Type: ErrTypeAuth, Method: method, Message: "authentication failed (check credentials)", StatusCode: statusCode}
	}
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Method:     method,
		Message:    fmt.Sprintf("unexpected status code %d: %s", statusCode, body),
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

func newParseError(method string, err error) *DeviceError {
	return &DeviceError{Type: ErrTypeParse, Method: method, Message: "malformed response", Err: err}
}

func newRPCError(method string, code int, message string) *DeviceError {
	return &DeviceError{Type: ErrTypeRPC, Method: method, Message: message, Code: code}
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Retryable
	}
	return false
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == ErrTypeAuth
}

// IsRPCError checks if the device rejected a call
func IsRPCError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == ErrTypeRPC
}
