package errors

import (
	"errors"
	"fmt"
)

// DAPClientError is the base interface for all errors originating in this module.
type DAPClientError interface {
	error
	IsDAPClientError() bool
}

// Compile-time verification that all error types implement DAPClientError.
var (
	_ DAPClientError = (*AdapterNotFoundError)(nil)
	_ DAPClientError = (*ConnectionError)(nil)
	_ DAPClientError = (*ProcessError)(nil)
	_ DAPClientError = (*DecodeError)(nil)
	_ DAPClientError = (*ProtocolViolationError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrSessionClosed indicates the session ended before a pending request
	// received its response. Callers awaiting a response during shutdown may
	// treat this as a non-fatal outcome.
	ErrSessionClosed = errors.New("session closed")

	// ErrRequestTimeout indicates a request timed out waiting for its response.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrEventWaiterExists indicates a waiter is already registered for an event name.
	ErrEventWaiterExists = errors.New("event waiter already registered")
)

// AdapterNotFoundError indicates no debug adapter executable could be resolved.
type AdapterNotFoundError struct {
	Kind          string
	SearchedPaths []string
}

func (e *AdapterNotFoundError) Error() string {
	if len(e.SearchedPaths) > 0 {
		return fmt.Sprintf("debug adapter for %q not found in: %v", e.Kind, e.SearchedPaths)
	}

	return fmt.Sprintf("debug adapter for %q not found", e.Kind)
}

// IsDAPClientError implements DAPClientError.
func (e *AdapterNotFoundError) IsDAPClientError() bool { return true }

// ConnectionError indicates failure to start or connect to the adapter process.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to adapter: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsDAPClientError implements DAPClientError.
func (e *ConnectionError) IsDAPClientError() bool { return true }

// ProcessError indicates the adapter process exited abnormally.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("adapter process failed (exit %d): %s", e.ExitCode, e.Stderr)
	}

	return fmt.Sprintf("adapter process failed (exit %d): %v", e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsDAPClientError implements DAPClientError.
func (e *ProcessError) IsDAPClientError() bool { return true }

// DecodeError indicates a wire frame could not be decoded: malformed header,
// truncated body, unparseable JSON, or an unrecognized message type.
// Decode errors are fatal to the session; the protocol has no defined
// recovery from a desynchronized stream.
type DecodeError struct {
	Reason  string
	RawData string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode frame: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("decode frame: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDAPClientError implements DAPClientError.
func (e *DecodeError) IsDAPClientError() bool { return true }

// ProtocolViolationError indicates the adapter sent a response whose
// request_seq matches no pending request. The two sides have desynchronized
// and no further message can be trusted to correlate, so this is fatal.
type ProtocolViolationError struct {
	RequestSeq int
	Command    string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf(
		"protocol violation: response for unknown request_seq %d (command %q)",
		e.RequestSeq, e.Command,
	)
}

// IsDAPClientError implements DAPClientError.
func (e *ProtocolViolationError) IsDAPClientError() bool { return true }
