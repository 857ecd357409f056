// Package model provides the inference backend interface.
package model

import "context"

// Backend abstracts the underlying inference engine. The session
// delegates to whichever implementation is injected at construction,
// keeping platform branching out of business logic.
type Backend interface {
	// Load initializes the engine with the given model artifact.
	Load(ctx context.Context, artifactPath string) error

	// Complete runs one chat completion. Tokens are pushed through
	// onToken as they are produced; implementations must return when
	// the context is canceled, yielding whatever was accumulated.
	Complete(ctx context.Context, messages []Message, opts Options, tools []ToolDef, onToken TokenFunc) (*CompletionResult, error)

	// Embed returns a fixed-dimension dense vector for the text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Reset clears any engine-internal conversational context.
	Reset() error

	// Close releases all engine resources.
	Close() error
}
