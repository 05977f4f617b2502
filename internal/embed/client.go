package embed

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ClientOptions configures Client.
type ClientOptions struct {
	// Workers bounds concurrent provider calls in EmbedBatch.
	Workers int
	// MaxInputChars truncates each input (in runes) before embedding.
	MaxInputChars int
}

// Client is the embedding entry point used by ingestion and retrieval. It
// never returns an error: failures are logged and yield a zero vector of the
// provider's dimension.
type Client struct {
	embedder Embedder
	opts     ClientOptions
}

// NewClient wraps an embedder.
func NewClient(embedder Embedder, opts ClientOptions) *Client {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}
	return &Client{embedder: embedder, opts: opts}
}

// Embed returns the embedding of text, or a zero vector on failure.
func (c *Client) Embed(ctx context.Context, text string) []float32 {
	text = truncateRunes(text, c.opts.MaxInputChars)
	if strings.TrimSpace(text) == "" {
		return c.zero()
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		slog.Warn("embedding failed, using zero vector",
			slog.String("model", c.embedder.ModelName()),
			slog.Int("chars", len(text)),
			slog.String("error", err.Error()))
		return c.zero()
	}
	return vec
}

// EmbedBatch embeds texts on a bounded worker pool. The result has one entry
// per input in input order; individual failures are zero vectors.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out
	}

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for i, text := range texts {
		g.Go(func() error {
			out[i] = c.Embed(ctx, text)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Dimensions returns the provider's embedding dimension.
func (c *Client) Dimensions() int { return c.embedder.Dimensions() }

// ModelName returns the provider's model identifier.
func (c *Client) ModelName() string { return c.embedder.ModelName() }

// Close closes the underlying provider.
func (c *Client) Close() error { return c.embedder.Close() }

func (c *Client) zero() []float32 {
	return make([]float32, c.embedder.Dimensions())
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max])
}
