package dapclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/adapterkit/dap-client-go/internal/adapter"
	"github.com/adapterkit/dap-client-go/internal/config"
	"github.com/adapterkit/dap-client-go/internal/protocol"
	"github.com/adapterkit/dap-client-go/internal/subprocess"
)

// defaultClientName identifies this client in initialize requests when no
// name is configured.
const defaultClientName = "dap-client-go"

// Session is one live protocol conversation bound to one debug adapter
// process.
//
// A session is created by Start, which launches the adapter and begins the
// reader loop. The named operations each block until their own response
// arrives, so calling them sequentially from one goroutine yields the
// well-formed order: Initialize, ConfigurationDone, Launch, Terminate,
// Disconnect. The session does not enforce this ordering itself.
//
// Close must be called on every session; WithSession does so automatically.
type Session struct {
	log       *slog.Logger
	id        string
	options   *config.Options
	transport config.Transport
	conn      *protocol.Conn

	// eg ties the reaper goroutine to the session lifetime: it waits for the
	// reader loop to drain the adapter's stdout, then reaps the process.
	eg *errgroup.Group

	closeOnce sync.Once
	closeErr  error
}

// Start launches the debug adapter process and returns a running session.
//
// The adapter command comes from WithAdapterCommand if set, otherwise the
// configured adapter kind is resolved via the built-in registry. A
// *AdapterNotFoundError is returned before any process is launched if
// resolution fails.
func Start(ctx context.Context, opts ...Option) (*Session, error) {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	id := ulid.Make().String()
	log = log.With("session_id", id)

	transport := options.Transport
	if transport == nil {
		command, args, err := resolveAdapter(ctx, log, options)
		if err != nil {
			return nil, err
		}

		transport = subprocess.New(log, command, args, options)
	} else {
		log.Debug("Using injected custom transport")
	}

	if err := transport.Start(ctx); err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}

	conn := protocol.New(&protocol.Config{
		Logger:         log,
		RequestTimeout: options.RequestTimeout,
		OnEvent:        options.OnEvent,
	}, transport.Writer())
	conn.Start(transport.Reader())

	s := &Session{
		log:       log.With("component", "session"),
		id:        id,
		options:   options,
		transport: transport,
		conn:      conn,
		eg:        &errgroup.Group{},
	}

	// Reap only after the reader loop has drained the adapter's stdout;
	// reaping closes the pipe under the reader otherwise. Teardown must
	// complete even if the caller's context is cancelled mid-session.
	waitCtx := context.WithoutCancel(ctx)

	s.eg.Go(func() error {
		s.conn.Wait()

		return s.transport.Wait(waitCtx)
	})

	s.log.Info("Debug session started")

	return s, nil
}

// resolveAdapter produces the adapter command for the configured options.
func resolveAdapter(
	ctx context.Context,
	log *slog.Logger,
	options *config.Options,
) (string, []string, error) {
	if options.AdapterPath != "" {
		return options.AdapterPath, options.AdapterArgs, nil
	}

	if options.AdapterKind == "" {
		return "", nil, fmt.Errorf("no adapter configured: set an adapter kind or command")
	}

	registry := adapter.NewRegistry(log)

	cmd, err := registry.Resolve(ctx, adapter.Kind(options.AdapterKind))
	if err != nil {
		return "", nil, fmt.Errorf("resolve adapter: %w", err)
	}

	return cmd.Path, cmd.Args, nil
}

// ID returns the session's unique identifier, used in log output.
func (s *Session) ID() string {
	return s.id
}

// Done returns a channel closed when the conversation ends for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.conn.Done()
}

// SendRequest issues a raw protocol request and blocks until its response
// arrives. The named operations are thin wrappers over this primitive.
func (s *Session) SendRequest(
	ctx context.Context,
	command string,
	arguments map[string]any,
) (*Response, error) {
	return s.conn.SendRequest(ctx, command, arguments)
}

// Initialize sends the initialize request, advertising this client to the
// adapter.
func (s *Session) Initialize(ctx context.Context) (*Response, error) {
	clientName := s.options.ClientName
	if clientName == "" {
		clientName = defaultClientName
	}

	adapterID := s.options.AdapterKind
	if adapterID == "" {
		adapterID = clientName
	}

	return s.conn.SendRequest(ctx, "initialize", map[string]any{
		"clientName": clientName,
		"adapterID":  adapterID,
		"pathFormat": "path",
	})
}

// ConfigurationDone signals that configuration is finished.
func (s *Session) ConfigurationDone(ctx context.Context) (*Response, error) {
	return s.conn.SendRequest(ctx, "configurationDone", map[string]any{})
}

// Launch sends the launch request with the session's configured launch
// arguments, passed through verbatim.
func (s *Session) Launch(ctx context.Context) (*Response, error) {
	args := s.options.LaunchConfig
	if args == nil {
		args = map[string]any{}
	}

	return s.conn.SendRequest(ctx, "launch", args)
}

// Terminate asks the adapter to gracefully terminate the debuggee.
func (s *Session) Terminate(ctx context.Context) (*Response, error) {
	return s.conn.SendRequest(ctx, "terminate", map[string]any{})
}

// Disconnect ends the debug session on the adapter side.
func (s *Session) Disconnect(ctx context.Context) (*Response, error) {
	return s.conn.SendRequest(ctx, "disconnect", map[string]any{})
}

// WaitForEvent blocks until the adapter emits the named event. Most events
// need no waiter; see the Events option for the passive sink.
func (s *Session) WaitForEvent(ctx context.Context, name string) (*Event, error) {
	return s.conn.WaitForEvent(ctx, name)
}

// Close ends the session: it closes the adapter's stdin, waits for the
// process to exit and the reader loop to stop, and releases every pending
// waiter. Safe to call multiple times; later calls return the first result.
//
// Close reports the adapter's abnormal exit (as a *ProcessError) or the
// error that terminated the conversation, if any. A session that ended at
// stream EOF with a zero exit closes cleanly.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.log.Debug("Closing session")

		closeErr := s.transport.CloseStdin()

		// The adapter exits once its input ends; stream EOF then stops the
		// reader loop, and the reaper collects the exit status.
		err := s.eg.Wait()

		s.conn.Stop()

		if err == nil {
			err = closeErr
		}

		if err == nil {
			err = s.conn.FatalError()
		}

		s.closeErr = err

		s.log.Info("Debug session closed")
	})

	return s.closeErr
}
