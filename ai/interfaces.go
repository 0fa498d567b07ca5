package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Its length is whatever the model produces; callers reconcile it
	// to the index dimension.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TokenFunc receives successive raw completion fragments.
// Returning an error aborts the completion.
type TokenFunc func(ctx context.Context, token string) error

// Completer turns a prompt into an answer.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete sends the prompt as a single user message and returns the
	// full raw completion text.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteStream sends the prompt as a single user message and invokes
	// onToken for every fragment as it arrives. It returns once the
	// provider finishes, onToken fails, or ctx is cancelled.
	CompleteStream(ctx context.Context, prompt string, onToken TokenFunc) error
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Completer instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Completer returns the chat completion service.
	// The returned Completer is safe for concurrent use.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
