package dapclient

import "github.com/adapterkit/dap-client-go/internal/wire"

// Re-export wire message types from the internal package.

// Request is a client-originated protocol message.
type Request = wire.Request

// Response is the adapter's reply to exactly one prior request.
type Response = wire.Response

// Event is an unsolicited notification from the adapter.
type Event = wire.Event
