package dapclient

import "github.com/adapterkit/dap-client-go/internal/config"

// Transport supplies the byte streams of one adapter conversation.
// Implement this to provide custom transports for testing, mocking, or
// alternative stream sources (e.g. a socket-connected adapter).
//
// The default implementation spawns the adapter as a subprocess and exposes
// its stdio pipes. Custom transports can be injected via WithTransport.
type Transport = config.Transport
