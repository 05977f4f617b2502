package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete convorag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Discovery  DiscoveryConfig  `yaml:"discovery" json:"discovery"`
	Memory     MemoryConfig     `yaml:"memory" json:"memory"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig locates persisted state.
type PathsConfig struct {
	// DataDir holds <user>/<conversation>/ index directories.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// PoolDir is the shared document pool scanned by discovery.
	PoolDir string `yaml:"pool_dir" json:"pool_dir"`
	// MessagesDB is the SQLite message history file.
	MessagesDB string `yaml:"messages_db" json:"messages_db"`
}

// ChunkingConfig sizes chunks in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// SearchConfig configures hybrid ranking.
// Weights are configurable via:
//  1. User config (~/.config/convorag/config.yaml)
//  2. Project config (.convorag.yaml)
//  3. Env vars (CONVORAG_VECTOR_WEIGHT, CONVORAG_KEYWORD_WEIGHT)
type SearchConfig struct {
	// VectorWeight and KeywordWeight must sum to 1.0.
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// Threshold is the fused score a chunk must exceed to be returned.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	VectorCandidates  int     `yaml:"vector_candidates" json:"vector_candidates"`
	KeywordCandidates int     `yaml:"keyword_candidates" json:"keyword_candidates"`
	TopK              int     `yaml:"top_k" json:"top_k"`
	BM25K1            float64 `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B             float64 `yaml:"bm25_b" json:"bm25_b"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is static, ollama or openai.
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	OllamaHost    string `yaml:"ollama_host" json:"ollama_host"`
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`
	// OpenAIAPIKey is normally supplied through OPENAI_API_KEY or .env.
	OpenAIAPIKey string `yaml:"-" json:"-"`

	Workers       int    `yaml:"workers" json:"workers"`
	MaxInputChars int    `yaml:"max_input_chars" json:"max_input_chars"`
	Timeout       string `yaml:"timeout" json:"timeout"`
	MaxRetries    int    `yaml:"max_retries" json:"max_retries"`
	CacheSize     int    `yaml:"cache_size" json:"cache_size"`

	// Fallback uses static embeddings when the remote provider is down.
	Fallback bool `yaml:"fallback" json:"fallback"`
}

// StoreConfig configures the per-conversation index store.
type StoreConfig struct {
	MaxOpenIndices   int    `yaml:"max_open_indices" json:"max_open_indices"`
	HNSWM            int    `yaml:"hnsw_m" json:"hnsw_m"`
	HNSWEfSearch     int    `yaml:"hnsw_ef_search" json:"hnsw_ef_search"`
	ExactSearchLimit int    `yaml:"exact_search_limit" json:"exact_search_limit"`
	LockTimeout      string `yaml:"lock_timeout" json:"lock_timeout"`
}

// DiscoveryConfig configures pool discovery and auto-loading.
type DiscoveryConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	AutoLoad     bool     `yaml:"auto_load" json:"auto_load"`
	// Watch refreshes the pool index while the server runs.
	Watch        bool     `yaml:"watch" json:"watch"`
	TopK         int      `yaml:"top_k" json:"top_k"`
	Threshold    float64  `yaml:"threshold" json:"threshold"`
	SummaryChars int      `yaml:"summary_chars" json:"summary_chars"`
	Exclude      []string `yaml:"exclude" json:"exclude"`
}

// MemoryConfig configures hierarchical memory.
type MemoryConfig struct {
	WindowSize      int      `yaml:"window_size" json:"window_size"`
	PoolSize        int      `yaml:"pool_size" json:"pool_size"`
	MinScore        float64  `yaml:"min_score" json:"min_score"`
	MaxSemanticHits int      `yaml:"max_semantic_hits" json:"max_semantic_hits"`
	ClosureTerms    []string `yaml:"closure_terms" json:"closure_terms"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	base := defaultBaseDir()
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:    filepath.Join(base, "data"),
			PoolDir:    filepath.Join(base, "pool"),
			MessagesDB: filepath.Join(base, "messages.db"),
		},
		Chunking: ChunkingConfig{Size: 600, Overlap: 100},
		Search: SearchConfig{
			VectorWeight:      0.6,
			KeywordWeight:     0.4,
			Threshold:         0.25,
			VectorCandidates:  50,
			KeywordCandidates: 50,
			TopK:              5,
			BM25K1:            1.2,
			BM25B:             0.75,
		},
		Embeddings: EmbeddingsConfig{
			Provider:      "static",
			Dimensions:    0, // provider default
			Workers:       4,
			MaxInputChars: 8000,
			Timeout:       "60s",
			MaxRetries:    3,
			CacheSize:     1000,
			Fallback:      true,
		},
		Store: StoreConfig{
			MaxOpenIndices:   5,
			HNSWM:            16,
			HNSWEfSearch:     64,
			ExactSearchLimit: 2000,
			LockTimeout:      "30s",
		},
		Discovery: DiscoveryConfig{
			Enabled:      true,
			AutoLoad:     true,
			Watch:        false,
			TopK:         3,
			Threshold:    0.35,
			SummaryChars: 500,
		},
		Memory: MemoryConfig{
			WindowSize:      10,
			PoolSize:        500,
			MinScore:        0.45,
			MaxSemanticHits: 5,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// defaultBaseDir returns ~/.convorag, or a temp fallback.
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".convorag")
	}
	return filepath.Join(home, ".convorag")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/convorag/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/convorag/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "convorag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "convorag", "config.yaml")
	}
	return filepath.Join(home, ".config", "convorag", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the working directory dir. Precedence, low
// to high:
//  1. Defaults
//  2. User config (~/.config/convorag/config.yaml)
//  3. Project config (.convorag.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. Environment variables (CONVORAG_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads .convorag.yaml or .convorag.yml from dir if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".convorag.yaml", ".convorag.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path on top of the current values. Keys absent from the
// file keep their current value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies CONVORAG_* variables. Malformed numbers are
// ignored.
func (c *Config) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("CONVORAG_DATA_DIR", &c.Paths.DataDir)
	str("CONVORAG_POOL_DIR", &c.Paths.PoolDir)
	str("CONVORAG_MESSAGES_DB", &c.Paths.MessagesDB)

	num("CONVORAG_CHUNK_SIZE", &c.Chunking.Size)
	num("CONVORAG_CHUNK_OVERLAP", &c.Chunking.Overlap)

	float("CONVORAG_VECTOR_WEIGHT", &c.Search.VectorWeight)
	float("CONVORAG_KEYWORD_WEIGHT", &c.Search.KeywordWeight)
	float("CONVORAG_THRESHOLD", &c.Search.Threshold)
	num("CONVORAG_TOP_K", &c.Search.TopK)

	str("CONVORAG_EMBEDDINGS_PROVIDER", &c.Embeddings.Provider)
	str("CONVORAG_EMBEDDINGS_MODEL", &c.Embeddings.Model)
	num("CONVORAG_EMBEDDINGS_DIMENSIONS", &c.Embeddings.Dimensions)
	str("CONVORAG_OLLAMA_HOST", &c.Embeddings.OllamaHost)
	str("CONVORAG_OPENAI_BASE_URL", &c.Embeddings.OpenAIBaseURL)
	str("OPENAI_API_KEY", &c.Embeddings.OpenAIAPIKey)
	str("CONVORAG_OPENAI_API_KEY", &c.Embeddings.OpenAIAPIKey)
	num("CONVORAG_EMBED_WORKERS", &c.Embeddings.Workers)

	num("CONVORAG_MAX_OPEN_INDICES", &c.Store.MaxOpenIndices)

	boolean("CONVORAG_DISCOVERY_ENABLED", &c.Discovery.Enabled)
	boolean("CONVORAG_AUTO_LOAD", &c.Discovery.AutoLoad)
	boolean("CONVORAG_DISCOVERY_WATCH", &c.Discovery.Watch)

	str("CONVORAG_LOG_LEVEL", &c.Server.LogLevel)
	str("CONVORAG_TRANSPORT", &c.Server.Transport)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Search.VectorWeight < 0 || c.Search.VectorWeight > 1 {
		return fmt.Errorf("vector_weight must be between 0 and 1, got %f", c.Search.VectorWeight)
	}
	if c.Search.KeywordWeight < 0 || c.Search.KeywordWeight > 1 {
		return fmt.Errorf("keyword_weight must be between 0 and 1, got %f", c.Search.KeywordWeight)
	}
	if sum := c.Search.VectorWeight + c.Search.KeywordWeight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("vector_weight + keyword_weight must equal 1.0, got %.2f", sum)
	}
	if c.Search.Threshold < 0 || c.Search.Threshold >= 1 {
		return fmt.Errorf("threshold must be in [0, 1), got %f", c.Search.Threshold)
	}
	if c.Search.TopK < 0 {
		return fmt.Errorf("top_k must be non-negative, got %d", c.Search.TopK)
	}

	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}

	validProviders := map[string]bool{"static": true, "ollama": true, "openai": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'static', 'ollama' or 'openai', got %s", c.Embeddings.Provider)
	}
	if _, err := c.Embeddings.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.Store.LockTimeoutDuration(); err != nil {
		return err
	}
	if c.Store.MaxOpenIndices < 1 {
		return fmt.Errorf("store.max_open_indices must be at least 1, got %d", c.Store.MaxOpenIndices)
	}

	if c.Discovery.Threshold < 0 || c.Discovery.Threshold >= 1 {
		return fmt.Errorf("discovery.threshold must be in [0, 1), got %f", c.Discovery.Threshold)
	}
	if c.Memory.MinScore < 0 || c.Memory.MinScore > 1 {
		return fmt.Errorf("memory.min_score must be between 0 and 1, got %f", c.Memory.MinScore)
	}

	validTransports := map[string]bool{"stdio": true, "http": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'http', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// TimeoutDuration parses the per-request embedding timeout.
func (e EmbeddingsConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration("embeddings.timeout", e.Timeout)
}

// LockTimeoutDuration parses the store lock timeout.
func (s StoreConfig) LockTimeoutDuration() (time.Duration, error) {
	return parseDuration("store.lock_timeout", s.LockTimeout)
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", field, v)
	}
	return d, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
