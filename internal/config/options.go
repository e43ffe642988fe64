package config

import (
	"log/slog"
	"time"

	"github.com/adapterkit/dap-client-go/internal/wire"
)

// Options holds session configuration assembled by the public functional
// options.
type Options struct {
	// Logger receives debug and lifecycle output. Nil disables logging.
	Logger *slog.Logger

	// AdapterKind selects a registered adapter resolver (e.g. "python").
	AdapterKind string

	// AdapterPath, when set, bypasses resolver lookup and runs the given
	// executable directly with AdapterArgs.
	AdapterPath string

	// AdapterArgs are passed to the adapter executable when AdapterPath is set.
	AdapterArgs []string

	// LaunchConfig is passed verbatim as the launch request's arguments.
	// Its contents are opaque to the engine and never validated.
	LaunchConfig map[string]any

	// ClientName identifies this client in the initialize request.
	ClientName string

	// RequestTimeout bounds each request's wait for its response. Zero means
	// wait until the session ends.
	RequestTimeout time.Duration

	// Stderr receives each line the adapter writes to its stderr.
	Stderr func(line string)

	// OnEvent receives events that no registered waiter claimed.
	OnEvent func(ev *wire.Event)

	// Cwd is the working directory for the adapter process.
	Cwd string

	// Env provides additional environment variables for the adapter process.
	Env map[string]string

	// Transport overrides the default subprocess transport.
	Transport Transport
}
