package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// ErrExecutorClosed is returned when attempting to use a closed executor.
var ErrExecutorClosed = errors.New("lua executor is closed")

// call is one Lua operation queued for the executor goroutine.
type call struct {
	fn     func(L *lua.LState) error
	result chan error
}

// Executor serializes all Lua operations through a single goroutine.
//
// gopher-lua's LState is not goroutine-safe; every LState operation must run
// on one goroutine. The host editor guarantees completion requests arrive
// serially, but the embedding harness and tests call in from arbitrary
// goroutines, so the executor marshals them onto the owner.
type Executor struct {
	L     *lua.LState
	queue chan *call

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewExecutor creates an executor for the given Lua state.
func NewExecutor(L *lua.LState, queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Executor{
		L:     L,
		queue: make(chan *call, queueSize),
		done:  make(chan struct{}),
	}
}

// Run processes queued operations until the context is cancelled or Close
// is called. Must run on the goroutine that owns the Lua state.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drain(ctx.Err())
			return
		case <-e.done:
			e.drain(ErrExecutorClosed)
			return
		case c := <-e.queue:
			err := e.run(c)
			select {
			case c.result <- err:
			default:
			}
			close(c.result)
		}
	}
}

// run executes one operation with panic recovery; a panicking Lua callback
// must not take the executor goroutine down with it.
func (e *Executor) run(c *call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = errors.New("lua panic")
			}
		}
	}()
	return c.fn(e.L)
}

// drain fails all queued operations with the given error.
func (e *Executor) drain(err error) {
	for {
		select {
		case c := <-e.queue:
			select {
			case c.result <- err:
			default:
			}
			close(c.result)
		default:
			return
		}
	}
}

// Execute runs fn on the executor goroutine and waits for it to finish.
func (e *Executor) Execute(ctx context.Context, fn func(L *lua.LState) error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	c := &call{
		fn:     fn,
		result: make(chan error, 1),
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- c:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-c.result:
		if !ok {
			return ErrExecutorClosed
		}
		return err
	}
}

// Close stops the executor. Queued operations fail with ErrExecutorClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
}
