package session

import (
	"errors"
	"fmt"

	"jan-server/services/vision-api/internal/utils/redact"
)

var (
	// ErrNotFound is returned when no session matches the identifier.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyRunning is returned by Start on a running pipeline.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrAlreadyStopped is returned by Stop on a stopped pipeline.
	ErrAlreadyStopped = errors.New("session already stopped")
	// ErrDeviceExists is returned when a device already owns a live session.
	ErrDeviceExists = errors.New("device already has a session")
)

// ConfigurationError reports missing or malformed line geometry.
type ConfigurationError struct {
	SessionID string
	Err       error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("session %s: invalid configuration: %v", e.SessionID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// SourceOpenError reports a video source that could not be opened.
type SourceOpenError struct {
	URI string
	Err error
}

func (e *SourceOpenError) Error() string {
	return fmt.Sprintf("open source %s: %v", redact.URI(e.URI), e.Err)
}

func (e *SourceOpenError) Unwrap() error {
	return e.Err
}

// TransientSinkError wraps a failed frame, event, status or tracker call.
// The decode loop logs these and keeps going.
type TransientSinkError struct {
	Sink string
	Err  error
}

func (e *TransientSinkError) Error() string {
	return fmt.Sprintf("%s sink: %v", e.Sink, e.Err)
}

func (e *TransientSinkError) Unwrap() error {
	return e.Err
}
