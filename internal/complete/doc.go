// Package complete implements the omni-completion adapter.
//
// The adapter sits between the host editor's two-phase completion hook and
// an external code-intelligence provider. It carries no analysis of its own:
// it forwards the buffer and cursor to the provider and maps each returned
// candidate into the record shape the host popup understands.
//
// The provider is injected at construction, so the adapter can be exercised
// with a mock in tests. Complete returns a typed error; Completions is the
// host-facing boundary that converts any failure into an empty list plus a
// single diagnostic, which is the behavior the host observes.
package complete
