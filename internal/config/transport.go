package config

import (
	"context"
	"io"
)

// Transport supplies the byte streams of one adapter conversation and owns
// the resources behind them.
//
// The default implementation spawns the adapter as a subprocess and exposes
// its stdio pipes. Custom implementations can supply in-memory streams for
// testing or remote connections.
type Transport interface {
	// Start acquires the streams. It must be called before Writer or Reader.
	Start(ctx context.Context) error

	// Writer returns the stream requests are written to (adapter stdin).
	Writer() io.Writer

	// Reader returns the stream responses and events arrive on (adapter stdout).
	Reader() io.Reader

	// CloseStdin closes the write side, signalling end of input to the
	// adapter. It is idempotent.
	CloseStdin() error

	// Wait blocks until the adapter process exits and reports its outcome.
	Wait(ctx context.Context) error

	// Close forcefully releases the transport's resources. Safe to call
	// multiple times or after Wait.
	Close() error
}
