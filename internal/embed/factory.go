package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ProviderType names an embedding provider.
type ProviderType string

const (
	ProviderStatic ProviderType = "static"
	ProviderOllama ProviderType = "ollama"
	ProviderOpenAI ProviderType = "openai"
)

// FactoryConfig selects and configures a provider.
type FactoryConfig struct {
	Provider ProviderType
	Ollama   OllamaConfig
	OpenAI   OpenAIConfig

	// StaticDimensions sizes the static embedder, including when it is used
	// as a fallback.
	StaticDimensions int

	// CacheSize enables an LRU embedding cache (0 = disabled).
	CacheSize int

	// Fallback switches to the static embedder when a remote provider cannot
	// be constructed, instead of failing.
	Fallback bool
}

// ParseProvider parses a provider name, case-insensitively.
func ParseProvider(s string) (ProviderType, error) {
	switch p := ProviderType(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderStatic, ProviderOllama, ProviderOpenAI:
		return p, nil
	case "":
		return ProviderStatic, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (want static, ollama or openai)", s)
	}
}

// NewEmbedder builds the configured provider, optionally wrapped in a cache.
func NewEmbedder(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch cfg.Provider {
	case ProviderOllama:
		e, err = NewOllamaEmbedder(ctx, cfg.Ollama)
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedder(cfg.OpenAI)
	case ProviderStatic, "":
		e = NewStaticEmbedder(cfg.StaticDimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if err != nil {
		if !cfg.Fallback {
			return nil, err
		}
		slog.Warn("embedding provider unavailable, falling back to static embeddings",
			slog.String("provider", string(cfg.Provider)),
			slog.String("error", err.Error()))
		e = NewStaticEmbedder(cfg.StaticDimensions)
	}

	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
