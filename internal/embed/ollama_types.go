package embed

import "time"

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model.
	DefaultOllamaModel = "qwen3-embedding:0.6b"

	// OllamaConnectTimeout bounds the startup health check.
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize sizes the HTTP connection pool to match DefaultWorkers.
	OllamaPoolSize = DefaultWorkers
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host  string
	Model string

	// Dimensions overrides auto-detection (0 = detect on startup).
	Dimensions int

	Timeout    time.Duration
	MaxRetries int
	PoolSize   int

	// SkipHealthCheck skips the startup model lookup (tests).
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:       DefaultOllamaHost,
		Model:      DefaultOllamaModel,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		PoolSize:   OllamaPoolSize,
	}
}

// OllamaEmbedRequest is the body of POST /api/embed.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// OllamaEmbedResponse is the response of POST /api/embed.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelInfo describes one entry of GET /api/tags.
type OllamaModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// OllamaModelListResponse is the response of GET /api/tags.
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}
