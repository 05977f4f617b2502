package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config lookup at an empty temp dir.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, 600, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)

	assert.Equal(t, 0.6, cfg.Search.VectorWeight)
	assert.Equal(t, 0.4, cfg.Search.KeywordWeight)
	assert.Equal(t, 0.25, cfg.Search.Threshold)
	assert.Equal(t, 50, cfg.Search.VectorCandidates)
	assert.Equal(t, 1.2, cfg.Search.BM25K1)
	assert.Equal(t, 0.75, cfg.Search.BM25B)

	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 4, cfg.Embeddings.Workers)
	assert.True(t, cfg.Embeddings.Fallback)

	assert.Equal(t, 5, cfg.Store.MaxOpenIndices)
	assert.Equal(t, 0.35, cfg.Discovery.Threshold)
	assert.Equal(t, 500, cfg.Discovery.SummaryChars)
	assert.False(t, cfg.Discovery.Watch)
	assert.Equal(t, 10, cfg.Memory.WindowSize)
	assert.Equal(t, 500, cfg.Memory.PoolSize)
	assert.Equal(t, 0.45, cfg.Memory.MinScore)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	// Given: a project config changing a few keys
	isolate(t)
	dir := t.TempDir()
	yaml := `
chunking:
  size: 800
search:
  vector_weight: 0.7
  keyword_weight: 0.3
discovery:
  auto_load: false
  exclude: ["drafts/"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".convorag.yaml"), []byte(yaml), 0644))

	// When
	cfg, err := Load(dir)

	// Then: changed keys apply and the rest keep defaults
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.False(t, cfg.Discovery.AutoLoad)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, []string{"drafts/"}, cfg.Discovery.Exclude)
}

func TestLoad_UserConfigBelowProjectConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "convorag"), 0755))
	require.NoError(t, os.WriteFile(GetUserConfigPath(), []byte("search:\n  top_k: 9\nchunking:\n  size: 700\n"), 0644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".convorag.yml"), []byte("chunking:\n  size: 900\n"), 0644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.True(t, UserConfigExists())
	assert.Equal(t, 9, cfg.Search.TopK)
	assert.Equal(t, 900, cfg.Chunking.Size)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".convorag.yaml"), []byte("search:\n  top_k: 3\n"), 0644))
	t.Setenv("CONVORAG_TOP_K", "7")
	t.Setenv("CONVORAG_EMBEDDINGS_PROVIDER", "ollama")
	t.Setenv("CONVORAG_AUTO_LOAD", "false")
	t.Setenv("CONVORAG_CHUNK_OVERLAP", "not-a-number")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.TopK)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.False(t, cfg.Discovery.AutoLoad)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("CONVORAG_TOP_K=4\nCONVORAG_POOL_DIR=/srv/pool\n"), 0644))
	t.Setenv("CONVORAG_TOP_K", "8")
	// Registered so t restores it after .env sets it.
	t.Setenv("CONVORAG_POOL_DIR", "")
	require.NoError(t, os.Unsetenv("CONVORAG_POOL_DIR"))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Search.TopK)
	assert.Equal(t, "/srv/pool", cfg.Paths.PoolDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".convorag.yaml"), []byte("search: [unclosed"), 0644))

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"weights do not sum to one", func(c *Config) { c.Search.VectorWeight = 0.9 }},
		{"negative weight", func(c *Config) { c.Search.KeywordWeight = -0.1 }},
		{"threshold of one", func(c *Config) { c.Search.Threshold = 1 }},
		{"overlap not below size", func(c *Config) { c.Chunking.Overlap = 600 }},
		{"zero chunk size", func(c *Config) { c.Chunking.Size = 0 }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "word2vec" }},
		{"bad timeout", func(c *Config) { c.Embeddings.Timeout = "soon" }},
		{"bad lock timeout", func(c *Config) { c.Store.LockTimeout = "-1s" }},
		{"zero cache", func(c *Config) { c.Store.MaxOpenIndices = 0 }},
		{"bad transport", func(c *Config) { c.Server.Transport = "carrier-pigeon" }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := NewConfig()

	d, err := cfg.Embeddings.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, d)

	d, err = cfg.Store.LockTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Search.TopK = 11
	cfg.Memory.ClosureTerms = []string{"ciao"}

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".convorag.yaml")))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 11, loaded.Search.TopK)
	assert.Equal(t, []string{"ciao"}, loaded.Memory.ClosureTerms)
}
