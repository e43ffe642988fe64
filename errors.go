package dapclient

import "github.com/adapterkit/dap-client-go/internal/errors"

// Re-export error types from internal package

// AdapterNotFoundError indicates no debug adapter executable could be resolved.
type AdapterNotFoundError = errors.AdapterNotFoundError

// ConnectionError indicates failure to start or connect to the adapter process.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the adapter process exited abnormally.
type ProcessError = errors.ProcessError

// DecodeError indicates a wire frame could not be decoded.
type DecodeError = errors.DecodeError

// ProtocolViolationError indicates a response correlated with no pending request.
type ProtocolViolationError = errors.ProtocolViolationError

// DAPClientError is the base interface for all errors from this module.
type DAPClientError = errors.DAPClientError

// Re-export sentinel errors from internal package.
var (
	// ErrSessionClosed indicates the session ended before a pending request
	// received its response.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrRequestTimeout indicates a request timed out waiting for its response.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrEventWaiterExists indicates a waiter is already registered for an
	// event name.
	ErrEventWaiterExists = errors.ErrEventWaiterExists
)
