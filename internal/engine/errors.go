package engine

import "errors"

// Engine errors.
var (
	// ErrNotStarted indicates the engine process has not been started.
	ErrNotStarted = errors.New("engine not started")

	// ErrShutdown indicates the engine was closed.
	ErrShutdown = errors.New("engine shut down")

	// ErrEngineFailure indicates the engine reported a failure for a request.
	ErrEngineFailure = errors.New("engine failure")

	// ErrMalformedResponse indicates the engine sent a response the codec
	// could not interpret.
	ErrMalformedResponse = errors.New("malformed engine response")
)
