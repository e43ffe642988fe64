package dapclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adapterkit/dap-client-go/internal/errors"
	"github.com/adapterkit/dap-client-go/internal/wire"
)

func TestMain(m *testing.M) {
	// The end-to-end tests re-invoke this binary as a stub debug adapter.
	if os.Getenv("DAP_STUB_ADAPTER") == "1" {
		stubAdapterMain()

		return
	}

	os.Exit(m.Run())
}

// scriptedTransport plays the adapter side of a session over in-memory
// pipes: a responder goroutine reads framed requests and answers them
// through the script function.
type scriptedTransport struct {
	script func(req *wire.Request, out *scriptOutput)

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	stdinOnce sync.Once
	done      chan struct{}

	mu       sync.Mutex
	requests []*wire.Request
}

// scriptOutput writes the responder's frames to the session's read side.
type scriptOutput struct {
	mu      sync.Mutex
	w       io.Writer
	nextSeq int
}

func (o *scriptOutput) send(msg wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		panic(err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	_, _ = o.w.Write(data)
}

func (o *scriptOutput) respond(req *wire.Request, success bool, body any) {
	o.mu.Lock()
	seq := o.nextSeq
	o.nextSeq++
	o.mu.Unlock()

	o.send(&wire.Response{
		Seq:        seq,
		Type:       wire.TypeResponse,
		RequestSeq: req.Seq,
		Success:    success,
		Command:    req.Command,
		Body:       body,
	})
}

func (o *scriptOutput) event(name string, body any) {
	o.mu.Lock()
	seq := o.nextSeq
	o.nextSeq++
	o.mu.Unlock()

	o.send(&wire.Event{
		Seq:   seq,
		Type:  wire.TypeEvent,
		Event: name,
		Body:  body,
	})
}

func newScriptedTransport(script func(req *wire.Request, out *scriptOutput)) *scriptedTransport {
	if script == nil {
		script = defaultScript
	}

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	return &scriptedTransport{
		script:  script,
		stdinR:  stdinR,
		stdinW:  stdinW,
		stdoutR: stdoutR,
		stdoutW: stdoutW,
		done:    make(chan struct{}),
	}
}

// defaultScript answers every request with success and emits the events a
// well-behaved adapter would.
func defaultScript(req *wire.Request, out *scriptOutput) {
	switch req.Command {
	case "initialize":
		out.respond(req, true, map[string]any{
			"supportsConfigurationDoneRequest": true,
		})
		out.event("initialized", nil)
	case "terminate":
		out.respond(req, true, nil)
		out.event("terminated", nil)
	default:
		out.respond(req, true, nil)
	}
}

func (t *scriptedTransport) Start(_ context.Context) error {
	go func() {
		defer close(t.done)
		defer func() { _ = t.stdoutW.Close() }()

		out := &scriptOutput{w: t.stdoutW, nextSeq: 1}
		br := bufio.NewReader(t.stdinR)

		for {
			req, err := readFrame(br)
			if err != nil {
				return
			}

			t.mu.Lock()
			t.requests = append(t.requests, req)
			t.mu.Unlock()

			t.script(req, out)
		}
	}()

	return nil
}

func (t *scriptedTransport) Writer() io.Writer { return t.stdinW }
func (t *scriptedTransport) Reader() io.Reader { return t.stdoutR }

func (t *scriptedTransport) CloseStdin() error {
	t.stdinOnce.Do(func() { _ = t.stdinW.Close() })

	return nil
}

func (t *scriptedTransport) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *scriptedTransport) Close() error {
	_ = t.CloseStdin()
	_ = t.stdoutR.Close()

	return nil
}

func (t *scriptedTransport) seenRequests() []*wire.Request {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]*wire.Request(nil), t.requests...)
}

// readFrame parses one Content-Length framed request from the stream.
func readFrame(br *bufio.Reader) (*wire.Request, error) {
	contentLength := -1

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}

		if strings.TrimRight(line, "\r\n") == "" {
			break
		}

		if value, ok := strings.CutPrefix(line, "Content-Length:"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, err
			}

			contentLength = n
		}
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("frame missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(br, body); err != nil {
		return nil, err
	}

	var req wire.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}

	return &req, nil
}

var _ Transport = (*scriptedTransport)(nil)

func TestSession_ScriptedSequence(t *testing.T) {
	transport := newScriptedTransport(nil)

	session, err := Start(context.Background(),
		WithTransport(transport),
		WithAdapterKind("python"),
		WithLaunchConfig(map[string]any{
			"request": "launch",
			"program": "hello.py",
		}),
	)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID())

	ctx := context.Background()

	initResp, err := session.Initialize(ctx)
	require.NoError(t, err)
	require.True(t, initResp.Success)
	require.Equal(t, "initialize", initResp.Command)
	require.Equal(t, 1, initResp.RequestSeq)

	body, ok := initResp.Body.(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, body["supportsConfigurationDoneRequest"])

	for _, step := range []func(context.Context) (*Response, error){
		session.ConfigurationDone,
		session.Launch,
		session.Terminate,
		session.Disconnect,
	} {
		resp, err := step(ctx)
		require.NoError(t, err)
		require.True(t, resp.Success)
	}

	require.NoError(t, session.Close())

	select {
	case <-session.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel should be closed after Close")
	}

	commands := make([]string, 0, 5)
	for _, req := range transport.seenRequests() {
		commands = append(commands, req.Command)
	}

	require.Equal(t, []string{
		"initialize", "configurationDone", "launch", "terminate", "disconnect",
	}, commands)
}

func TestSession_InitializeArguments(t *testing.T) {
	transport := newScriptedTransport(nil)

	session, err := Start(context.Background(),
		WithTransport(transport),
		WithAdapterKind("go"),
		WithClientName("my-editor"),
	)
	require.NoError(t, err)

	defer func() { require.NoError(t, session.Close()) }()

	_, err = session.Initialize(context.Background())
	require.NoError(t, err)

	reqs := transport.seenRequests()
	require.Len(t, reqs, 1)
	require.Equal(t, "my-editor", reqs[0].Arguments["clientName"])
	require.Equal(t, "go", reqs[0].Arguments["adapterID"])
	require.Equal(t, "path", reqs[0].Arguments["pathFormat"])
}

func TestSession_LaunchConfigPassedVerbatim(t *testing.T) {
	transport := newScriptedTransport(nil)

	launchConfig := map[string]any{
		"request":     "launch",
		"program":     "app.py",
		"stopOnEntry": true,
		"madeUpKey":   "passed through unvalidated",
	}

	session, err := Start(context.Background(),
		WithTransport(transport),
		WithLaunchConfig(launchConfig),
	)
	require.NoError(t, err)

	defer func() { require.NoError(t, session.Close()) }()

	_, err = session.Launch(context.Background())
	require.NoError(t, err)

	reqs := transport.seenRequests()
	require.Len(t, reqs, 1)
	require.Equal(t, launchConfig, reqs[0].Arguments)
}

func TestSession_EventsFlowToSink(t *testing.T) {
	transport := newScriptedTransport(func(req *wire.Request, out *scriptOutput) {
		out.event("output", map[string]any{"category": "stdout", "output": "hi\n"})
		out.respond(req, true, nil)
	})

	events := make(chan *Event, 4)

	session, err := Start(context.Background(),
		WithTransport(transport),
		WithOnEvent(func(ev *Event) { events <- ev }),
	)
	require.NoError(t, err)

	defer func() { require.NoError(t, session.Close()) }()

	_, err = session.Launch(context.Background())
	require.NoError(t, err)

	select {
	case ev := <-events:
		require.Equal(t, "output", ev.Event)
	case <-time.After(time.Second):
		t.Fatal("sink should have observed the unsolicited event")
	}
}

func TestSession_WaitForEvent(t *testing.T) {
	transport := newScriptedTransport(nil)

	session, err := Start(context.Background(), WithTransport(transport))
	require.NoError(t, err)

	defer func() { require.NoError(t, session.Close()) }()

	eventCh := make(chan *Event, 1)

	go func() {
		ev, err := session.WaitForEvent(context.Background(), "initialized")
		require.NoError(t, err)

		eventCh <- ev
	}()

	// Give the waiter time to register before the adapter emits the event.
	time.Sleep(20 * time.Millisecond)

	_, err = session.Initialize(context.Background())
	require.NoError(t, err)

	select {
	case ev := <-eventCh:
		require.Equal(t, "initialized", ev.Event)
	case <-time.After(time.Second):
		t.Fatal("waiter should have been woken by the initialized event")
	}
}

func TestSession_CloseReleasesPendingRequest(t *testing.T) {
	transport := newScriptedTransport(func(_ *wire.Request, _ *scriptOutput) {
		// Never answer: the pending request must be released by teardown.
	})

	session, err := Start(context.Background(), WithTransport(transport))
	require.NoError(t, err)

	errCh := make(chan error, 1)

	go func() {
		_, err := session.SendRequest(context.Background(), "threads", nil)
		errCh <- err
	}()

	// Let the request reach the responder before tearing down.
	require.Eventually(t, func() bool {
		return len(transport.seenRequests()) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, session.Close())
	require.ErrorIs(t, <-errCh, errors.ErrSessionClosed)
}

func TestSession_FailedResponseSurfacesToCaller(t *testing.T) {
	transport := newScriptedTransport(func(req *wire.Request, out *scriptOutput) {
		message := "attribute 'program' is missing"
		out.send(&wire.Response{
			Seq:        1,
			Type:       wire.TypeResponse,
			RequestSeq: req.Seq,
			Success:    false,
			Command:    req.Command,
			Message:    &message,
		})
	})

	session, err := Start(context.Background(), WithTransport(transport))
	require.NoError(t, err)

	defer func() { require.NoError(t, session.Close()) }()

	resp, err := session.Launch(context.Background())
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Message)
	require.Contains(t, *resp.Message, "missing")
}

func TestStart_NoAdapterConfigured(t *testing.T) {
	_, err := Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no adapter configured")
}

func TestStart_UnknownAdapterKind(t *testing.T) {
	_, err := Start(context.Background(), WithAdapterKind("smalltalk"))
	require.Error(t, err)

	var notFound *AdapterNotFoundError

	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "smalltalk", notFound.Kind)
}

// stubAdapterMain is the adapter side of the end-to-end tests: the test
// binary re-invoked with DAP_STUB_ADAPTER=1 speaks the protocol on its own
// stdio until stdin closes.
func stubAdapterMain() {
	br := bufio.NewReader(os.Stdin)
	out := &scriptOutput{w: os.Stdout, nextSeq: 1}

	for {
		req, err := readFrame(br)
		if err != nil {
			os.Exit(0)
		}

		fmt.Fprintf(os.Stderr, "stub adapter handling %q\n", req.Command)
		defaultScript(req, out)
	}
}

func TestSession_SubprocessEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess test in short mode")
	}

	var stderrLines []string

	var stderrMu sync.Mutex

	session, err := Start(context.Background(),
		WithAdapterCommand(os.Args[0]),
		WithEnv(map[string]string{"DAP_STUB_ADAPTER": "1"}),
		WithStderr(func(line string) {
			stderrMu.Lock()
			stderrLines = append(stderrLines, line)
			stderrMu.Unlock()
		}),
		WithLaunchConfig(map[string]any{"program": "demo"}),
	)
	require.NoError(t, err)

	ctx := context.Background()

	resp, err := session.Initialize(ctx)
	require.NoError(t, err)
	require.True(t, resp.Success)

	resp, err = session.Launch(ctx)
	require.NoError(t, err)
	require.True(t, resp.Success)

	require.NoError(t, session.Close())

	stderrMu.Lock()
	defer stderrMu.Unlock()

	require.NotEmpty(t, stderrLines)
	require.Contains(t, stderrLines[0], "initialize")
}
