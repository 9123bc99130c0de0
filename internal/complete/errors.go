package complete

import "errors"

// Adapter errors.
var (
	// ErrNoProvider indicates the adapter was built without a provider.
	ErrNoProvider = errors.New("no completion provider configured")
)
