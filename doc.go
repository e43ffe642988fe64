// Package dapclient implements the client side of the Debug Adapter
// Protocol's request/response/event engine over a debug adapter's stdio
// pipes.
//
// The package frames messages with Content-Length headers, allocates and
// correlates sequence numbers between outgoing requests and their
// asynchronous responses, routes unsolicited events, and ties all of it to
// the lifecycle of the adapter process.
//
// # Basic Usage
//
// Use WithSession for automatic lifecycle management:
//
//	ctx := context.Background()
//	err := dapclient.WithSession(ctx, func(s *dapclient.Session) error {
//	    if _, err := s.Initialize(ctx); err != nil {
//	        return err
//	    }
//	    if _, err := s.ConfigurationDone(ctx); err != nil {
//	        return err
//	    }
//	    if _, err := s.Launch(ctx); err != nil {
//	        return err
//	    }
//	    if _, err := s.Terminate(ctx); err != nil {
//	        return err
//	    }
//	    _, err := s.Disconnect(ctx)
//	    return err
//	},
//	    dapclient.WithAdapterKind("python"),
//	    dapclient.WithLaunchConfig(map[string]any{
//	        "request": "launch",
//	        "program": "hello.py",
//	    }),
//	)
//
// Or use Start directly for more control:
//
//	session, err := dapclient.Start(ctx,
//	    dapclient.WithAdapterCommand("node", "/path/to/debugAdapter/main.js"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
// # Events
//
// Events with no registered waiter flow to the sink configured with
// WithOnEvent. To block until a specific named event occurs, use
// Session.WaitForEvent.
//
// # Error Handling
//
// A request whose session ends before its response arrives fails with
// ErrSessionClosed; decode errors and correlation violations are fatal to
// the session and surface as *DecodeError and *ProtocolViolationError from
// Session.Close. An abnormal adapter exit is reported as a *ProcessError
// carrying the exit code and captured stderr.
package dapclient
