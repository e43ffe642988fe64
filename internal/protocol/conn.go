package protocol

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/adapterkit/dap-client-go/internal/errors"
	"github.com/adapterkit/dap-client-go/internal/wire"
)

// EventHandler receives events that no registered waiter claimed.
type EventHandler func(ev *wire.Event)

// Config holds construction parameters for a Conn.
type Config struct {
	// Logger receives protocol traffic at debug level. Required.
	Logger *slog.Logger

	// RequestTimeout bounds each SendRequest's wait for its response.
	// Zero disables the timeout; the request then waits until the session ends.
	RequestTimeout time.Duration

	// OnEvent is invoked for every event with no registered waiter.
	// It runs on the reader goroutine and must not block.
	OnEvent EventHandler
}

// Conn drives one protocol conversation with a debug adapter.
//
// A Conn owns sequence-number allocation, the correlation table mapping
// in-flight request seqs to their completion slots, and the single reader
// goroutine that decodes frames from the adapter's output stream. Requests
// may be issued from any goroutine; the output stream has exactly one
// writer (the Conn) and the input stream exactly one reader (the loop).
type Conn struct {
	log *slog.Logger
	w   io.Writer

	// writeMu serializes frame writes to the output stream.
	writeMu sync.Mutex

	// seqMu guards the allocator; seq values start at 1 and are never reused.
	seqMu   sync.Mutex
	nextSeq int

	// Correlation table. An entry lives from the moment its request is sent
	// until the response arrives or the session ends, and is removed exactly
	// once. Seqs whose waiter gave up locally are parked in abandoned so a
	// late response is not mistaken for a protocol violation.
	pendingMu sync.Mutex
	pending   map[int]chan *wire.Response
	abandoned map[int]struct{}

	// Optional waiters for named events.
	eventMu      sync.Mutex
	eventWaiters map[string]chan *wire.Event

	onEvent        EventHandler
	requestTimeout time.Duration

	// First fatal error; broadcast to all waiters by closing done.
	errMu    sync.RWMutex
	fatalErr error

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a Conn writing frames to w. The reader loop is not started
// until Start is called with the input stream.
func New(cfg *Config, w io.Writer) *Conn {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Conn{
		log:            log.With("component", "protocol"),
		w:              w,
		nextSeq:        1,
		pending:        make(map[int]chan *wire.Response, 8),
		abandoned:      make(map[int]struct{}, 2),
		eventWaiters:   make(map[string]chan *wire.Event, 2),
		onEvent:        cfg.OnEvent,
		requestTimeout: cfg.RequestTimeout,
		done:           make(chan struct{}),
	}
}

// Start launches the reader loop over r. It must be called exactly once,
// before any SendRequest.
func (c *Conn) Start(r io.Reader) {
	dec := wire.NewDecoder(r)

	c.wg.Add(1)

	go c.readLoop(dec)

	c.log.Debug("Protocol reader loop started")
}

// Done returns a channel that is closed when the conversation ends, whether
// by stream EOF, a fatal protocol error, or Stop.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// FatalError returns the error that terminated the conversation, if any.
// Stream EOF is a normal ending and reports no fatal error.
func (c *Conn) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Stop releases every pending waiter with ErrSessionClosed without waiting
// for the reader loop to terminate. Safe to call multiple times.
func (c *Conn) Stop() {
	c.closeDone()
}

// Wait blocks until the reader loop has terminated. The loop terminates when
// the input stream ends or a fatal decode or correlation error occurs.
func (c *Conn) Wait() {
	c.wg.Wait()
}

// closeDone safely closes the done channel exactly once.
func (c *Conn) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// setFatalError stores the first fatal error.
func (c *Conn) setFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()
}

// SendRequest allocates a seq, registers a completion slot, writes the
// framed request, and blocks until the matching response arrives.
//
// If the session ends before the response is delivered the call fails with
// ErrSessionClosed (wrapping the fatal error, if any) rather than hanging.
// A configured request timeout fails the call locally with ErrRequestTimeout
// and removes the pending entry.
func (c *Conn) SendRequest(
	ctx context.Context,
	command string,
	arguments map[string]any,
) (*wire.Response, error) {
	select {
	case <-c.done:
		return nil, c.closedErr()
	default:
	}

	seq := c.newSeq()
	req := wire.NewRequest(seq, command, arguments)

	data, err := wire.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	// Slot is buffered so delivery never blocks the reader loop, even if
	// this waiter has already given up.
	slot := make(chan *wire.Response, 1)

	c.pendingMu.Lock()
	c.pending[seq] = slot
	c.pendingMu.Unlock()

	c.log.Debug("Sending request", "seq", seq, "command", command)

	if err := c.write(data); err != nil {
		c.abandon(seq)

		return nil, fmt.Errorf("send request: %w", err)
	}

	var timeoutCh <-chan time.Time

	if c.requestTimeout > 0 {
		timer := time.NewTimer(c.requestTimeout)
		defer timer.Stop()

		timeoutCh = timer.C
	}

	select {
	case resp := <-slot:
		c.log.Debug("Received response", "seq", seq, "command", command, "success", resp.Success)

		return resp, nil

	case <-c.done:
		c.abandon(seq)

		return nil, c.closedErr()

	case <-timeoutCh:
		c.abandon(seq)
		c.log.Warn("Request timed out", "seq", seq, "command", command, "timeout", c.requestTimeout)

		return nil, fmt.Errorf("%w after %s", errors.ErrRequestTimeout, c.requestTimeout)

	case <-ctx.Done():
		c.abandon(seq)
		c.log.Debug("Request cancelled", "seq", seq, "command", command)

		return nil, ctx.Err()
	}
}

// WaitForEvent blocks until the adapter emits an event with the given name.
//
// At most one waiter may be registered per event name at a time. The waiter
// fails with ErrSessionClosed when the session ends first.
func (c *Conn) WaitForEvent(ctx context.Context, name string) (*wire.Event, error) {
	select {
	case <-c.done:
		return nil, c.closedErr()
	default:
	}

	slot := make(chan *wire.Event, 1)

	c.eventMu.Lock()

	if _, exists := c.eventWaiters[name]; exists {
		c.eventMu.Unlock()

		return nil, fmt.Errorf("%w: %s", errors.ErrEventWaiterExists, name)
	}

	c.eventWaiters[name] = slot
	c.eventMu.Unlock()

	c.log.Debug("Waiting for event", "event", name)

	select {
	case ev := <-slot:
		return ev, nil

	case <-c.done:
		c.removeEventWaiter(name)

		return nil, c.closedErr()

	case <-ctx.Done():
		c.removeEventWaiter(name)

		return nil, ctx.Err()
	}
}

// newSeq returns the next unused sequence number. This is the single
// allocation point; values are strictly increasing within a session.
func (c *Conn) newSeq() int {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	seq := c.nextSeq
	c.nextSeq++

	return seq
}

// write serializes frame writes; the output stream has a single writer.
func (c *Conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// abandon removes a pending entry whose waiter gave up locally and parks
// the seq so a late response is tolerated instead of treated as fatal.
func (c *Conn) abandon(seq int) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if _, ok := c.pending[seq]; ok {
		delete(c.pending, seq)
		c.abandoned[seq] = struct{}{}
	}
}

func (c *Conn) removeEventWaiter(name string) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	delete(c.eventWaiters, name)
}

// closedErr reports the session's terminal state to a waiter.
func (c *Conn) closedErr() error {
	if err := c.FatalError(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrSessionClosed, err)
	}

	return errors.ErrSessionClosed
}

// readLoop is the sole reader of the input stream and the sole caller of the
// dispatch path. It terminates on stream EOF, a decode error, or a
// correlation violation; every exit closes done, releasing all waiters.
func (c *Conn) readLoop(dec *wire.Decoder) {
	defer c.wg.Done()
	defer c.closeDone()
	defer c.log.Debug("Protocol reader loop stopped")

	for {
		msg, err := dec.Decode()
		if err != nil {
			if err == io.EOF {
				c.log.Debug("Adapter output stream ended")

				return
			}

			select {
			case <-c.done:
				// Teardown already in progress; stream errors after Stop are
				// expected and not fatal.
				c.log.Debug("Stream error during teardown", "error", err)
			default:
				c.log.Error("Fatal decode error", "error", err)
				c.setFatalError(err)
			}

			return
		}

		switch m := msg.(type) {
		case *wire.Response:
			if err := c.dispatchResponse(m); err != nil {
				c.log.Error("Protocol violation", "error", err)
				c.setFatalError(err)

				return
			}

		case *wire.Event:
			c.dispatchEvent(m)
		}
	}
}

// dispatchResponse delivers a response to its pending slot, removing the
// entry. A response that matches neither a pending nor an abandoned request
// is a fatal protocol violation.
func (c *Conn) dispatchResponse(resp *wire.Response) error {
	c.pendingMu.Lock()

	slot, ok := c.pending[resp.RequestSeq]
	if ok {
		delete(c.pending, resp.RequestSeq)
	} else if _, late := c.abandoned[resp.RequestSeq]; late {
		delete(c.abandoned, resp.RequestSeq)
		c.pendingMu.Unlock()

		c.log.Debug("Late response for abandoned request", "request_seq", resp.RequestSeq)

		return nil
	}

	c.pendingMu.Unlock()

	if !ok {
		return &errors.ProtocolViolationError{
			RequestSeq: resp.RequestSeq,
			Command:    resp.Command,
		}
	}

	slot <- resp

	return nil
}

// dispatchEvent delivers an event to its waiter if one is registered.
// Events with no waiter are informational only, never an error.
func (c *Conn) dispatchEvent(ev *wire.Event) {
	c.eventMu.Lock()

	slot, ok := c.eventWaiters[ev.Event]
	if ok {
		delete(c.eventWaiters, ev.Event)
	}

	c.eventMu.Unlock()

	if ok {
		slot <- ev

		return
	}

	c.log.Debug("Received event", "event", ev.Event, "seq", ev.Seq)

	if c.onEvent != nil {
		c.onEvent(ev)
	}
}
