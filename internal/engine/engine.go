// Package engine runs an external code-intelligence engine as a subprocess
// and adapts it to the completion provider contract.
//
// The wire protocol is line-delimited JSON over stdio. A completion request
// looks like:
//
//	{"id":"<uuid>","method":"complete","source":"...","row":3,"col":7}
//
// and the matching response carries candidates under "result", each with
// complete/str/description/help/type fields, or a failure under
// "error.message". The engine's internals are the collaborator's concern;
// only this calling contract is owned here.
package engine

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/omnicomplete/internal/complete"
	"github.com/dshills/omnicomplete/internal/log"
)

// Default engine settings.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRestarts = 5
	defaultBackoff     = 1 * time.Second
	maxBackoff         = 30 * time.Second
)

// Engine supervises the external engine process and issues completion
// requests to it. It implements complete.Provider.
type Engine struct {
	command string
	args    []string
	paths   *PathList
	timeout time.Duration
	logger  *log.Logger

	maxRestarts int

	mu        sync.Mutex
	cmd       *exec.Cmd
	transport *Transport
	restarts  int
	lastStart time.Time
	closed    bool
}

// Option configures the engine.
type Option func(*Engine)

// WithArgs sets the engine command arguments.
func WithArgs(args ...string) Option {
	return func(e *Engine) {
		e.args = args
	}
}

// WithSearchPaths sets the module search paths handed to the engine at
// startup. The engine takes ownership and closes the list with itself.
func WithSearchPaths(p *PathList) Option {
	return func(e *Engine) {
		e.paths = p
	}
}

// WithTimeout sets the per-request timeout. Zero disables it, which stalls
// the host editor if the engine hangs; the default keeps that bounded.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.WithComponent("engine")
		}
	}
}

// WithMaxRestarts sets how many times a crashed engine is restarted before
// the engine gives up.
func WithMaxRestarts(n int) Option {
	return func(e *Engine) {
		e.maxRestarts = n
	}
}

// New creates an engine for the given command. Start must be called before
// Complete.
func New(command string, opts ...Option) *Engine {
	e := &Engine{
		command:     command,
		timeout:     DefaultTimeout,
		logger:      log.Null,
		maxRestarts: DefaultMaxRestarts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the engine process and sends the initialize request with
// the resolved search paths.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrShutdown
	}
	if e.transport != nil {
		return nil // Already running
	}
	return e.startLocked(ctx)
}

// startLocked launches the process. Caller holds e.mu.
func (e *Engine) startLocked(ctx context.Context) error {
	cmd := exec.Command(e.command, e.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("engine stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting engine %s: %w", e.command, err)
	}

	transport := NewTransport(stdout, stdin, stdin)
	transport.Start()

	e.cmd = cmd
	e.transport = transport
	e.lastStart = time.Now()

	e.logger.Info("engine started: %s (pid %d)", e.command, cmd.Process.Pid)

	go e.supervise(cmd, transport)

	if err := e.initialize(ctx, transport); err != nil {
		e.logger.Warn("engine initialize failed: %v", err)
		// The engine may still serve completions without search paths.
	}

	return nil
}

// initialize sends the search-path list to a freshly started engine.
func (e *Engine) initialize(ctx context.Context, transport *Transport) error {
	var paths []string
	if e.paths != nil {
		paths = e.paths.Resolve()
		e.logger.Debug("search paths: %v (resolved from %v)", paths, e.paths.Dirs())
	}

	id := uuid.NewString()
	payload, err := buildInitRequest(id, paths)
	if err != nil {
		return err
	}

	initCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res, err := transport.Call(initCtx, id, payload)
	if err != nil {
		return err
	}
	if msg := res.Get("error.message"); msg.Exists() {
		return fmt.Errorf("%w: %s", ErrEngineFailure, msg.String())
	}
	return nil
}

// supervise waits for the process to exit and restarts it with backoff if
// the exit was not requested.
func (e *Engine) supervise(cmd *exec.Cmd, transport *Transport) {
	err := cmd.Wait()
	_ = transport.Close()

	e.mu.Lock()
	if e.closed || e.cmd != cmd {
		e.mu.Unlock()
		return
	}
	e.cmd = nil
	e.transport = nil

	// A long healthy run resets the restart budget.
	if time.Since(e.lastStart) > 5*time.Minute {
		e.restarts = 0
	}

	if e.restarts >= e.maxRestarts {
		e.mu.Unlock()
		e.logger.Error("engine exited (%v); restart budget exhausted", err)
		return
	}

	e.restarts++
	attempt := e.restarts
	e.mu.Unlock()

	backoff := defaultBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
			break
		}
	}

	e.logger.Warn("engine exited (%v); restarting in %s (attempt %d/%d)",
		err, backoff, attempt, e.maxRestarts)
	time.Sleep(backoff)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.transport != nil {
		return
	}
	if startErr := e.startLocked(context.Background()); startErr != nil {
		e.logger.Error("engine restart failed: %v", startErr)
	}
}

// Complete implements complete.Provider: it forwards the buffer and cursor
// to the engine and maps the response into candidates, order preserved.
func (e *Engine) Complete(ctx context.Context, source string, row, col int) ([]complete.Candidate, error) {
	e.mu.Lock()
	transport := e.transport
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return nil, ErrShutdown
	}
	if transport == nil {
		return nil, ErrNotStarted
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	id := uuid.NewString()
	payload, err := buildCompleteRequest(id, source, row, col)
	if err != nil {
		return nil, fmt.Errorf("encoding completion request: %w", err)
	}

	res, err := transport.Call(ctx, id, payload)
	if err != nil {
		return nil, err
	}

	return parseCandidates(res)
}

// Close stops the engine process and releases the search-path watcher.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cmd := e.cmd
	transport := e.transport
	e.cmd = nil
	e.transport = nil
	e.mu.Unlock()

	if transport != nil {
		_ = transport.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	if e.paths != nil {
		return e.paths.Close()
	}
	return nil
}

// buildCompleteRequest encodes one completion request line.
func buildCompleteRequest(id, source string, row, col int) ([]byte, error) {
	b := []byte(`{}`)
	var err error
	if b, err = sjson.SetBytes(b, "id", id); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "method", "complete"); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "source", source); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "row", row); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "col", col); err != nil {
		return nil, err
	}
	return b, nil
}

// buildInitRequest encodes the initialize request carrying search paths.
func buildInitRequest(id string, paths []string) ([]byte, error) {
	b := []byte(`{}`)
	var err error
	if b, err = sjson.SetBytes(b, "id", id); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "method", "initialize"); err != nil {
		return nil, err
	}
	if paths == nil {
		paths = []string{}
	}
	if b, err = sjson.SetBytes(b, "paths", paths); err != nil {
		return nil, err
	}
	return b, nil
}

// parseCandidates maps an engine response to completion candidates.
func parseCandidates(res gjson.Result) ([]complete.Candidate, error) {
	if msg := res.Get("error.message"); msg.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrEngineFailure, msg.String())
	}

	result := res.Get("result")
	if !result.Exists() {
		return nil, ErrMalformedResponse
	}
	if !result.IsArray() {
		return nil, ErrMalformedResponse
	}

	var candidates []complete.Candidate
	result.ForEach(func(_, item gjson.Result) bool {
		candidates = append(candidates, complete.Candidate{
			Text:          item.Get("complete").String(),
			Display:       item.Get("str").String(),
			Detail:        item.Get("description").String(),
			Documentation: item.Get("help").String(),
			Kind:          item.Get("type").String(),
		})
		return true
	})
	return candidates, nil
}
