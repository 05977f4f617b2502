package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/convorag/internal/chunk"
	"github.com/Aman-CERP/convorag/internal/config"
	"github.com/Aman-CERP/convorag/internal/discovery"
	"github.com/Aman-CERP/convorag/internal/embed"
	"github.com/Aman-CERP/convorag/internal/memory"
	"github.com/Aman-CERP/convorag/internal/retrieval"
	"github.com/Aman-CERP/convorag/internal/search"
	"github.com/Aman-CERP/convorag/internal/store"
)

// app holds the components a command runs against.
type app struct {
	cfg      *config.Config
	orch     *retrieval.Orchestrator
	store    *store.IndexStore
	messages *memory.SQLiteStore
	embedder embed.Embedder
	client   *embed.Client
}

func loadConfig() (*config.Config, error) {
	dir, err := filepath.Abs(configDir)
	if err != nil {
		return nil, err
	}
	return config.Load(dir)
}

// openApp wires the store, embedder, discovery, memory and orchestrator
// from configuration.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	lockTimeout, err := cfg.Store.LockTimeoutDuration()
	if err != nil {
		return nil, err
	}
	st, err := store.NewIndexStore(store.Config{
		Root:           cfg.Paths.DataDir,
		MaxOpenIndices: cfg.Store.MaxOpenIndices,
		HNSW: store.HNSWConfig{
			M:                cfg.Store.HNSWM,
			EfSearch:         cfg.Store.HNSWEfSearch,
			ExactSearchLimit: cfg.Store.ExactSearchLimit,
		},
		LockTimeout: lockTimeout,
	})
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := embed.NewClient(embedder, embed.ClientOptions{
		Workers:       cfg.Embeddings.Workers,
		MaxInputChars: cfg.Embeddings.MaxInputChars,
	})

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.MessagesDB), 0o755); err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to create messages directory: %w", err)
	}
	messages, err := memory.OpenSQLiteStore(cfg.Paths.MessagesDB)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	var disc *discovery.Index
	if cfg.Discovery.Enabled && cfg.Paths.PoolDir != "" {
		disc = discovery.New(cfg.Paths.PoolDir, client, discovery.Options{
			SummaryChars: cfg.Discovery.SummaryChars,
			Threshold:    cfg.Discovery.Threshold,
			Exclude:      cfg.Discovery.Exclude,
		})
	}

	memOpts := memory.DefaultOptions()
	memOpts.WindowSize = cfg.Memory.WindowSize
	memOpts.PoolSize = cfg.Memory.PoolSize
	memOpts.MinScore = cfg.Memory.MinScore
	memOpts.MaxSemanticHits = cfg.Memory.MaxSemanticHits
	memOpts.ClosureTerms = cfg.Memory.ClosureTerms

	orch := retrieval.New(retrieval.Deps{
		Store:     st,
		Embedder:  client,
		Ranker:    search.NewRanker(searchOptions(cfg)),
		Discovery: disc,
		Memory:    memory.NewRetriever(messages, client, memOpts),
		Messages:  messages,
	}, retrieval.Config{
		TopK:          cfg.Search.TopK,
		DiscoveryTopK: cfg.Discovery.TopK,
		AutoLoad:      cfg.Discovery.AutoLoad,
		Chunk:         chunk.Options{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap},
	})

	slog.Debug("app ready",
		slog.String("data_dir", cfg.Paths.DataDir),
		slog.String("pool_dir", cfg.Paths.PoolDir),
		slog.String("embedder", embedder.ModelName()))

	return &app{
		cfg:      cfg,
		orch:     orch,
		store:    st,
		messages: messages,
		embedder: embedder,
		client:   client,
	}, nil
}

func searchOptions(cfg *config.Config) search.Options {
	return search.Options{
		VectorWeight:      cfg.Search.VectorWeight,
		KeywordWeight:     cfg.Search.KeywordWeight,
		Threshold:         cfg.Search.Threshold,
		VectorCandidates:  cfg.Search.VectorCandidates,
		KeywordCandidates: cfg.Search.KeywordCandidates,
		BM25:              search.BM25Config{K1: cfg.Search.BM25K1, B: cfg.Search.BM25B},
	}
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Embeddings.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	ollama := embed.DefaultOllamaConfig()
	if cfg.Embeddings.OllamaHost != "" {
		ollama.Host = cfg.Embeddings.OllamaHost
	}
	if cfg.Embeddings.Model != "" {
		ollama.Model = cfg.Embeddings.Model
	}
	ollama.Dimensions = cfg.Embeddings.Dimensions
	ollama.Timeout = timeout
	ollama.MaxRetries = cfg.Embeddings.MaxRetries

	openaiModel := cfg.Embeddings.Model
	if openaiModel == "" {
		openaiModel = embed.DefaultOpenAIModel
	}

	staticDims := 0
	if provider == embed.ProviderStatic {
		staticDims = cfg.Embeddings.Dimensions
	}

	return embed.NewEmbedder(ctx, embed.FactoryConfig{
		Provider: provider,
		Ollama:   ollama,
		OpenAI: embed.OpenAIConfig{
			APIKey:     cfg.Embeddings.OpenAIAPIKey,
			BaseURL:    cfg.Embeddings.OpenAIBaseURL,
			Model:      openaiModel,
			Dimensions: cfg.Embeddings.Dimensions,
			MaxRetries: cfg.Embeddings.MaxRetries,
		},
		StaticDimensions: staticDims,
		CacheSize:        cfg.Embeddings.CacheSize,
		Fallback:         cfg.Embeddings.Fallback,
	})
}

// embedderStatus reports "ready", "fallback" or "offline".
func (a *app) embedderStatus(ctx context.Context) string {
	provider, _ := embed.ParseProvider(a.cfg.Embeddings.Provider)
	inner := a.embedder
	if c, ok := inner.(*embed.CachedEmbedder); ok {
		inner = c.Inner()
	}
	if _, static := inner.(*embed.StaticEmbedder); static && provider != embed.ProviderStatic {
		return "fallback"
	}
	if !a.embedder.Available(ctx) {
		return "offline"
	}
	return "ready"
}

func (a *app) Close() error {
	return errors.Join(a.messages.Close(), a.client.Close())
}
