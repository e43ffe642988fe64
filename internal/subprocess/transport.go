package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/adapterkit/dap-client-go/internal/config"
	"github.com/adapterkit/dap-client-go/internal/errors"
)

// maxStderrBufferSize caps the buffer of adapter stderr kept for error
// reporting. The drain continues past the cap (the callback still receives
// every line), but the buffer stops growing.
const maxStderrBufferSize = 10 * 1024 * 1024 // 10MB

// AdapterTransport runs a debug adapter as a subprocess and exposes its
// stdio pipes as the protocol streams.
//
// Ownership: the write side (adapter stdin) belongs to the protocol engine's
// single writer, the read side (adapter stdout) to its single reader, and
// the error stream to the drain goroutine started by Start. The transport
// retains the authority to reap the process via Wait.
type AdapterTransport struct {
	log            *slog.Logger
	command        string
	args           []string
	env            map[string]string
	cwd            string
	stderrCallback func(string)

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	stderrWg  sync.WaitGroup
	stderrMu  sync.Mutex
	stderrBuf strings.Builder

	mu          sync.Mutex
	stdinClosed bool
	closing     bool
}

// Compile-time verification that AdapterTransport implements the Transport interface.
var _ config.Transport = (*AdapterTransport)(nil)

// New creates a transport that will run the given adapter command.
// Working directory, extra environment and the stderr sink come from options.
func New(log *slog.Logger, command string, args []string, options *config.Options) *AdapterTransport {
	if options == nil {
		options = &config.Options{}
	}

	return &AdapterTransport{
		log:            log.With("component", "adapter_transport"),
		command:        command,
		args:           args,
		env:            options.Env,
		cwd:            options.Cwd,
		stderrCallback: options.Stderr,
	}
}

// Start launches the adapter process with piped stdin, stdout and stderr,
// and starts the stderr drain goroutine.
//
// Returns a *errors.ConnectionError if any pipe cannot be created or the
// process fails to start.
func (t *AdapterTransport) Start(ctx context.Context) error {
	t.log.Info("Starting debug adapter", "command", t.command, "args", t.args)

	cwd := t.cwd

	if cwd == "" {
		var err error

		cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	//nolint:gosec // G204: launching a caller-selected adapter executable is the point
	cmd := exec.CommandContext(ctx, t.command, t.args...)
	cmd.Dir = cwd
	cmd.Env = t.buildEnv()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	t.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	t.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	t.stderr = stderr

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start adapter process", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.mu.Lock()
	t.cmd = cmd
	t.mu.Unlock()

	t.stderrWg.Add(1)

	go func() {
		defer t.stderrWg.Done()
		t.drainStderr()
	}()

	t.log.Info("Debug adapter started", "pid", cmd.Process.Pid)

	return nil
}

// drainStderr reads the adapter's error stream line by line until EOF,
// forwarding each line to the diagnostics sink. A noisy or silent stderr is
// never itself an error; the stream is never parsed as protocol.
func (t *AdapterTransport) drainStderr() {
	scanner := bufio.NewScanner(t.stderr)

	for scanner.Scan() {
		line := scanner.Text()

		t.log.Debug("Adapter stderr", "line", line)

		t.stderrMu.Lock()

		if t.stderrBuf.Len() < maxStderrBufferSize {
			if t.stderrBuf.Len() > 0 {
				t.stderrBuf.WriteString("\n")
			}

			t.stderrBuf.WriteString(line)
		}

		t.stderrMu.Unlock()

		if t.stderrCallback != nil {
			t.stderrCallback(line)
		}
	}

	// Scanner errors are expected when the process is killed mid-line.
	if err := scanner.Err(); err != nil {
		t.log.Debug("Stderr scanner error", "error", err)
	}
}

// Writer returns the adapter's stdin.
func (t *AdapterTransport) Writer() io.Writer {
	return t.stdin
}

// Reader returns the adapter's stdout.
func (t *AdapterTransport) Reader() io.Reader {
	return t.stdout
}

// CloseStdin closes the adapter's stdin, signalling end of input. The
// adapter is expected to finish processing and exit. Idempotent.
func (t *AdapterTransport) CloseStdin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil || t.stdinClosed {
		return nil
	}

	t.log.Debug("Closing adapter stdin")
	t.stdinClosed = true

	return t.stdin.Close()
}

// Wait reaps the adapter process and reports its outcome. A non-zero exit
// produces a *errors.ProcessError carrying the exit code and buffered
// stderr, unless Close was called first (intentional shutdown).
//
// Wait must be called exactly once, after the caller has finished reading
// from Reader: reaping closes the stdout pipe. Cancelling ctx kills the
// process rather than waiting for it.
func (t *AdapterTransport) Wait(ctx context.Context) error {
	t.mu.Lock()
	cmd := t.cmd
	t.mu.Unlock()

	if cmd == nil {
		return errors.ErrTransportNotConnected
	}

	// Stderr reads must complete before reaping; killing the process
	// unblocks them with EOF.
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe
	stderrDone := make(chan struct{})

	go func() {
		t.stderrWg.Wait()
		close(stderrDone)
	}()

	select {
	case <-stderrDone:
	case <-ctx.Done():
		t.log.Debug("Context cancelled while waiting for adapter, killing process")

		_ = t.Close()
		<-stderrDone
		_ = cmd.Wait()

		return ctx.Err()
	}

	t.log.Debug("Waiting for adapter process to exit")

	done := make(chan error, 1)

	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return t.exitResult(err)

	case <-ctx.Done():
		t.log.Debug("Context cancelled while waiting for adapter, killing process")

		_ = t.Close()
		<-done

		return ctx.Err()
	}
}

// exitResult converts the process exit state into the transport's outcome.
func (t *AdapterTransport) exitResult(err error) error {
	if err == nil {
		t.log.Info("Adapter process exited")

		return nil
	}

	t.mu.Lock()
	closing := t.closing
	t.mu.Unlock()

	if closing {
		t.log.Debug("Adapter process terminated during shutdown")

		return nil
	}

	exitCode := -1

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	t.stderrMu.Lock()
	stderrOutput := t.stderrBuf.String()
	t.stderrMu.Unlock()

	t.log.Error("Adapter process exited abnormally", "exit_code", exitCode, "stderr", stderrOutput)

	return &errors.ProcessError{
		ExitCode: exitCode,
		Stderr:   stderrOutput,
		Err:      err,
	}
}

// Close forcefully terminates the adapter process. It is the last-resort
// teardown path; the ordinary path is CloseStdin followed by Wait. Safe to
// call multiple times or on an already-exited process.
func (t *AdapterTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = true
	t.stdinClosed = true

	if t.cmd != nil && t.cmd.Process != nil {
		t.log.Debug("Killing adapter process", "pid", t.cmd.Process.Pid)

		if err := t.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill adapter process (pid %d): %w", t.cmd.Process.Pid, err)
		}
	}

	return nil
}

// buildEnv merges the parent environment with configured overrides.
func (t *AdapterTransport) buildEnv() []string {
	env := os.Environ()

	for k, v := range t.env {
		env = append(env, k+"="+v)
	}

	return env
}
