package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	cerrors "github.com/Aman-CERP/convorag/internal/errors"
)

// DefaultOpenAIModel is the default OpenAI embedding model.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	APIKey string
	// BaseURL targets any OpenAI-compatible endpoint ("" = api.openai.com).
	BaseURL string
	Model   string
	// Dimensions requests shortened embeddings when the model supports it.
	Dimensions int
	MaxRetries int
}

// OpenAIEmbedder generates embeddings through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	config OpenAIConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI embedder. It performs no network call;
// dimensions are learned from the first response unless configured.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, cerrors.ConfigError("openai api key is empty", nil).
			WithSuggestion("set OPENAI_API_KEY or embeddings.openai.api_key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		dims:   cfg.Dimensions,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.config.Model),
	}
	if e.config.Dimensions > 0 {
		req.Dimensions = e.config.Dimensions
	}

	retry := cerrors.DefaultRetryConfig()
	retry.MaxRetries = e.config.MaxRetries
	resp, err := cerrors.RetryWithResult(ctx, retry, func() (openai.EmbeddingResponse, error) {
		r, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return r, classifyOpenAIError(err)
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, cerrors.New(cerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts)), nil)
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		pos := d.Index
		if pos < 0 || pos >= len(out) {
			pos = i
		}
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		out[pos] = Normalize(v)
	}

	e.mu.Lock()
	if e.dims == 0 && len(out[0]) > 0 {
		e.dims = len(out[0])
	}
	e.mu.Unlock()
	return out, nil
}

// classifyOpenAIError marks rate limits and server errors as retryable.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return cerrors.New(cerrors.ErrCodeProviderUnavailable, apiErr.Message, err)
		}
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed, apiErr.Message, err)
	}
	return cerrors.New(cerrors.ErrCodeProviderUnavailable, "openai request failed", err)
}

func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *OpenAIEmbedder) ModelName() string { return e.config.Model }

// Available reports whether the embedder is open; it does not call the API.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
