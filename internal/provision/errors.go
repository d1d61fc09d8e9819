package provision

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeConfiguration indicates invalid candidate fields or a driver
	// rejecting the station configuration or connect request
	ErrTypeConfiguration ErrorType = iota
	// ErrTypePersistence indicates the configuration store failed to save.
	// The in-memory change already took effect.
	ErrTypePersistence
	// ErrTypeDriver indicates a driver primitive other than setup/connect failed
	ErrTypeDriver
	// ErrTypeConcurrentStart indicates a test was requested while one is running
	ErrTypeConcurrentStart
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConfiguration:
		return "Configuration Error"
	case ErrTypePersistence:
		return "Persistence Error"
	case ErrTypeDriver:
		return "Driver Error"
	case ErrTypeConcurrentStart:
		return "Test Already Running"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned by every Controller operation that can fail.
type Error struct {
	Type    ErrorType // Category of error
	Op      string    // Operation that failed, e.g. "copy", "start"
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrTestRunning is wrapped by the error returned when a test is started
// while another is active.
var ErrTestRunning = errors.New("provisioning test already running")

func configError(op, message string, err error) *Error {
	return &Error{Type: ErrTypeConfiguration, Op: op, Message: message, Err: err}
}

func persistenceError(op string, err error) *Error {
	return &Error{Type: ErrTypePersistence, Op: op, Message: "failed to save configuration", Err: err}
}

func driverError(op, message string, err error) *Error {
	return &Error{Type: ErrTypeDriver, Op: op, Message: message, Err: err}
}

func concurrentStartError(op string) *Error {
	return &Error{Type: ErrTypeConcurrentStart, Op: op, Message: "rejected", Err: ErrTestRunning}
}

func isType(err error, t ErrorType) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type == t
	}
	return false
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return isType(err, ErrTypeConfiguration)
}

// IsPersistenceError checks if an error is a persistence error
func IsPersistenceError(err error) bool {
	return isType(err, ErrTypePersistence)
}

// IsDriverError checks if an error is a driver error
func IsDriverError(err error) bool {
	return isType(err, ErrTypeDriver)
}

// IsConcurrentStart checks if an error rejected a test because one was
// already running
func IsConcurrentStart(err error) bool {
	return isType(err, ErrTypeConcurrentStart)
}
