// Package widgeterr defines the error taxonomy shared by the embed and frame controllers.
package widgeterr

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingWidgetID is wrapped by the ConfigurationError raised when no widget id is supplied.
	ErrMissingWidgetID = errors.New("widgetId is required")

	// ErrSessionNotLive is returned by token-requiring operations before the handshake completes.
	ErrSessionNotLive = errors.New("widget session is not live")

	// ErrStorageUnavailable is the cause of a StorageError when the backing store is blocked.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrQuotaExceeded is the cause of a StorageError when a write would exceed the store quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// ConfigurationError is fatal and raised synchronously at init time.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StorageError reports a failed read or write against the local session store.
// Callers treat it as recoverable.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NetworkError reports a transport failure or a non-2xx response from the backend.
type NetworkError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SchemaValidationError reports a backend payload that failed decoding or validation.
type SchemaValidationError struct {
	Op  string
	Err error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s: failed response schema validation: %v", e.Op, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// ProtocolError describes a channel message that was dropped. It is never surfaced to users.
type ProtocolError struct {
	Reason string
	Origin string
}

func (e *ProtocolError) Error() string {
	if e.Origin != "" {
		return fmt.Sprintf("protocol: %s (origin %s)", e.Reason, e.Origin)
	}
	return "protocol: " + e.Reason
}

// Configuration builds a ConfigurationError with a formatted reason.
func Configuration(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsSchema(err error) bool {
	var target *SchemaValidationError
	return errors.As(err, &target)
}

func IsProtocol(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}

// Recoverable reports whether err leaves the widget mounted (everything but configuration errors).
func Recoverable(err error) bool {
	return err != nil && !IsConfiguration(err)
}
