package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
)

// maxLineSize bounds a single engine message. Buffers are sent whole inside
// requests, so responses stay small; 16 MB leaves generous headroom.
const maxLineSize = 16 * 1024 * 1024

// Transport handles line-delimited JSON communication with the engine
// process over stdio. Each request carries a string id; the matching
// response echoes it.
type Transport struct {
	reader *bufio.Scanner
	writer io.Writer
	closer io.Closer

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan []byte

	closed atomic.Bool
	done   chan struct{}
}

// NewTransport creates a transport over the given streams. The closer,
// typically the process stdin, is closed with the transport.
func NewTransport(r io.Reader, w io.Writer, c io.Closer) *Transport {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &Transport{
		reader:  scanner,
		writer:  w,
		closer:  c,
		pending: make(map[string]chan []byte),
		done:    make(chan struct{}),
	}
}

// Start begins reading responses from the engine.
func (t *Transport) Start() {
	go t.readLoop()
}

// Close closes the transport. Callers blocked in Call receive ErrShutdown.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil // Already closed
	}

	close(t.done)

	// Drop pending requests; waiters are released through t.done.
	t.mu.Lock()
	t.pending = make(map[string]chan []byte)
	t.mu.Unlock()

	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// Call writes one request line and waits for the response bearing the same
// id. The payload must already be a complete JSON object containing the id.
func (t *Transport) Call(ctx context.Context, id string, payload []byte) (gjson.Result, error) {
	if t.closed.Load() {
		return gjson.Result{}, ErrShutdown
	}

	ch := make(chan []byte, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.write(payload); err != nil {
		return gjson.Result{}, fmt.Errorf("writing engine request: %w", err)
	}

	select {
	case <-ctx.Done():
		return gjson.Result{}, ctx.Err()
	case <-t.done:
		return gjson.Result{}, ErrShutdown
	case raw := <-ch:
		res := gjson.ParseBytes(raw)
		if !res.IsObject() {
			return gjson.Result{}, ErrMalformedResponse
		}
		return res, nil
	}
}

// write sends one newline-terminated message.
func (t *Transport) write(payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(payload); err != nil {
		return err
	}
	_, err := t.writer.Write([]byte{'\n'})
	return err
}

// readLoop reads response lines and routes them to waiting callers.
// Lines with an unknown or missing id are dropped: the engine owns its side
// of the protocol and may emit chatter this layer does not consume.
func (t *Transport) readLoop() {
	for t.reader.Scan() {
		if t.closed.Load() {
			return
		}

		line := t.reader.Bytes()
		if len(line) == 0 {
			continue
		}

		id := gjson.GetBytes(line, "id").String()
		if id == "" {
			continue
		}

		t.mu.Lock()
		ch, ok := t.pending[id]
		t.mu.Unlock()
		if !ok {
			continue
		}

		// Scanner reuses its buffer; hand the waiter a copy.
		raw := make([]byte, len(line))
		copy(raw, line)

		select {
		case ch <- raw:
		default:
		}
	}
}
