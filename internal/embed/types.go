// Package embed turns text into fixed-dimension vectors.
//
// Providers implement Embedder and may fail; Client wraps one of them and
// never fails, returning an all-zero vector instead so callers can filter
// unusable signals with IsZero.
package embed

import (
	"context"
	"time"
)

const (
	// StaticDimensions is the embedding dimension of the static embedder.
	StaticDimensions = 256

	// DefaultWorkers bounds concurrent embedding calls.
	DefaultWorkers = 4

	// DefaultMaxInputChars truncates inputs before they reach the provider.
	DefaultMaxInputChars = 8000

	// DefaultTimeout applies per provider request.
	DefaultTimeout = 60 * time.Second

	DefaultMaxRetries = 3
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the provider can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}
