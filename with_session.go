package dapclient

import (
	"context"
	"fmt"
)

// WithSession manages session lifecycle with automatic cleanup.
//
// This helper launches the adapter, executes the callback against the
// running session, and guarantees teardown on every exit path: the
// adapter's stdin is closed, the process is reaped, and all streams are
// released, even if the callback fails partway through its script.
//
// If the callback returns an error, it is returned to the caller; a
// teardown failure is then logged rather than overriding it.
//
// Example usage:
//
//	err := dapclient.WithSession(ctx, func(s *dapclient.Session) error {
//	    if _, err := s.Initialize(ctx); err != nil {
//	        return err
//	    }
//	    if _, err := s.ConfigurationDone(ctx); err != nil {
//	        return err
//	    }
//	    _, err := s.Launch(ctx)
//	    return err
//	},
//	    dapclient.WithAdapterKind("python"),
//	    dapclient.WithLaunchConfig(map[string]any{"program": "hello.py"}),
//	)
func WithSession(ctx context.Context, fn func(*Session) error, opts ...Option) (retErr error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	session, err := Start(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	defer func() {
		closeErr := session.Close()
		if closeErr == nil {
			return
		}

		if retErr == nil {
			retErr = closeErr
		} else {
			log.Warn("failed to close session", "error", closeErr)
		}
	}()

	return fn(session)
}
