package complete

import "context"

// Request carries the completion context handed over by the host editor.
// It is constructed fresh on each invocation and never persisted.
type Request struct {
	// Source is the full buffer content with line breaks preserved.
	Source string
	// Row is the 1-based cursor line.
	Row int
	// Col is the 0-based cursor byte column.
	Col int
}

// Candidate is a single proposed completion produced by a provider.
type Candidate struct {
	// Text is the string to insert.
	Text string
	// Display is the human-readable label.
	Display string
	// Detail is a short descriptor shown inline in the popup.
	Detail string
	// Documentation is long-form help text.
	Documentation string
	// Kind is a category tag used for icon selection and grouping.
	Kind string
}

// Entry is one record in the host editor's completion-entry format.
// ICase and Dup are numeric flags, matching the host convention.
type Entry struct {
	// Word is the insertion text.
	Word string
	// Abbr is the display text.
	Abbr string
	// Menu is the inline detail.
	Menu string
	// Info is the long help text.
	Info string
	// Kind is the category tag.
	Kind string
	// ICase enables case-insensitive matching when 1.
	ICase int
	// Dup permits duplicate entries when 1.
	Dup int
}

// Provider supplies completion candidates for a cursor position.
//
// Implementations receive the full buffer and the cursor position and return
// candidates in presentation order. Malformed or out-of-range positions are
// the provider's concern; the adapter performs no validation.
type Provider interface {
	Complete(ctx context.Context, source string, row, col int) ([]Candidate, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, source string, row, col int) ([]Candidate, error)

// Complete calls f.
func (f ProviderFunc) Complete(ctx context.Context, source string, row, col int) ([]Candidate, error) {
	return f(ctx, source, row, col)
}
