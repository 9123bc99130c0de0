package complete

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/omnicomplete/internal/log"
)

// Adapter translates provider candidates into host completion entries.
//
// Adapter carries no per-request state: each invocation is independent and
// anything remembered across requests lives inside the provider itself. The
// flag fields may be updated between requests via Reconfigure.
type Adapter struct {
	provider Provider

	mu              sync.RWMutex
	logger          *log.Logger
	caseInsensitive bool
	dedupe          bool
	maxResults      int
}

// Option configures the adapter.
type Option func(*Adapter)

// WithLogger sets the diagnostic logger. Defaults to log.Null.
func WithLogger(l *log.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithCaseInsensitive controls the icase flag stamped on every entry.
// Enabled by default.
func WithCaseInsensitive(enabled bool) Option {
	return func(a *Adapter) {
		a.caseInsensitive = enabled
	}
}

// WithDedupe enables dropping candidates that repeat an earlier (word, abbr)
// pair. Disabled by default: the host is told duplicates are permitted.
func WithDedupe(enabled bool) Option {
	return func(a *Adapter) {
		a.dedupe = enabled
	}
}

// WithMaxResults caps the number of entries returned. Zero means unlimited.
func WithMaxResults(n int) Option {
	return func(a *Adapter) {
		a.maxResults = n
	}
}

// New creates an adapter around the given provider.
func New(provider Provider, opts ...Option) *Adapter {
	a := &Adapter{
		provider:        provider,
		logger:          log.Null,
		caseInsensitive: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reconfigure applies options to a live adapter. Requests in flight finish
// under the flags they started with; later requests see the new values. The
// provider itself cannot be swapped.
func (a *Adapter) Reconfigure(opts ...Option) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, opt := range opts {
		opt(a)
	}
}

// StartColumn reports the column at which completion should start: the
// current cursor column, unmodified. Never fails.
func (a *Adapter) StartColumn(col int) int {
	return col
}

// Complete invokes the provider and maps its candidates into host entries.
//
// The mapping is total and order-preserving: every candidate yields exactly
// one entry, in provider order. When deduplication is enabled, later repeats
// of an earlier (word, abbr) pair are dropped; the first occurrence keeps
// its position.
func (a *Adapter) Complete(ctx context.Context, req Request) ([]Entry, error) {
	if a.provider == nil {
		return nil, ErrNoProvider
	}

	candidates, err := a.provider.Complete(ctx, req.Source, req.Row, req.Col)
	if err != nil {
		return nil, fmt.Errorf("completion provider: %w", err)
	}

	a.mu.RLock()
	caseInsensitive, dedupe, maxResults := a.caseInsensitive, a.dedupe, a.maxResults
	a.mu.RUnlock()

	icase := 0
	if caseInsensitive {
		icase = 1
	}
	dup := 1
	if dedupe {
		dup = 0
	}

	entries := make([]Entry, 0, len(candidates))
	var seen map[[2]string]bool
	if dedupe {
		seen = make(map[[2]string]bool, len(candidates))
	}

	for _, c := range candidates {
		if dedupe {
			key := [2]string{c.Text, c.Display}
			if seen[key] {
				continue
			}
			seen[key] = true
		}

		entries = append(entries, Entry{
			Word:  c.Text,
			Abbr:  c.Display,
			Menu:  c.Detail,
			Info:  c.Documentation,
			Kind:  c.Kind,
			ICase: icase,
			Dup:   dup,
		})

		if maxResults > 0 && len(entries) >= maxResults {
			break
		}
	}

	return entries, nil
}

// Completions is the host-facing boundary. Any failure from Complete is
// reported once on the diagnostic channel and converted to an empty list,
// which the host cannot distinguish from a genuine "nothing matches".
func (a *Adapter) Completions(ctx context.Context, req Request) []Entry {
	entries, err := a.Complete(ctx, req)
	if err != nil {
		a.mu.RLock()
		logger := a.logger
		a.mu.RUnlock()
		logger.Error("error: %v", err)
		return []Entry{}
	}
	return entries
}
