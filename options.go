package dapclient

import (
	"log/slog"
	"time"

	"github.com/adapterkit/dap-client-go/internal/config"
)

// Option configures a session using the functional options pattern.
type Option func(*config.Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *config.Options {
	options := &config.Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for protocol and lifecycle output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *config.Options) {
		o.Logger = logger
	}
}

// WithAdapterKind selects a debug adapter by symbolic kind: "python", "go",
// "lldb" or "gdb". The executable is resolved at Start.
func WithAdapterKind(kind string) Option {
	return func(o *config.Options) {
		o.AdapterKind = kind
	}
}

// WithAdapterCommand runs an explicit adapter executable, bypassing kind
// resolution.
func WithAdapterCommand(path string, args ...string) Option {
	return func(o *config.Options) {
		o.AdapterPath = path
		o.AdapterArgs = args
	}
}

// WithLaunchConfig supplies the launch request's arguments. The map is
// passed to the adapter verbatim and never validated.
func WithLaunchConfig(launchConfig map[string]any) Option {
	return func(o *config.Options) {
		o.LaunchConfig = launchConfig
	}
}

// WithClientName sets the client name advertised in the initialize request.
func WithClientName(name string) Option {
	return func(o *config.Options) {
		o.ClientName = name
	}
}

// WithRequestTimeout bounds each request's wait for its response. On expiry
// the request fails locally with ErrRequestTimeout and its pending entry is
// removed. Zero (the default) waits until the session ends.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *config.Options) {
		o.RequestTimeout = timeout
	}
}

// WithStderr registers a sink receiving each line the adapter writes to its
// stderr. The error stream is never parsed as protocol.
func WithStderr(fn func(line string)) Option {
	return func(o *config.Options) {
		o.Stderr = fn
	}
}

// WithOnEvent registers a sink for events no waiter claimed. The callback
// runs on the reader goroutine and must not block.
func WithOnEvent(fn func(ev *Event)) Option {
	return func(o *config.Options) {
		o.OnEvent = fn
	}
}

// WithCwd sets the working directory for the adapter process.
func WithCwd(cwd string) Option {
	return func(o *config.Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the adapter process.
func WithEnv(env map[string]string) Option {
	return func(o *config.Options) {
		o.Env = env
	}
}

// WithTransport injects a custom transport instead of spawning an adapter
// subprocess. For tests and alternative stream sources.
func WithTransport(transport Transport) Option {
	return func(o *config.Options) {
		o.Transport = transport
	}
}
