package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderType
		wantErr bool
	}{
		{"", ProviderStatic, false},
		{"Static", ProviderStatic, false},
		{" ollama ", ProviderOllama, false},
		{"openai", ProviderOpenAI, false},
		{"mlx", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvider(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEmbedder_StaticWithCache(t *testing.T) {
	e, err := NewEmbedder(context.Background(), FactoryConfig{Provider: ProviderStatic, CacheSize: 10})

	require.NoError(t, err)
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.IsType(t, &StaticEmbedder{}, cached.Inner())
}

func TestNewEmbedder_FallsBackToStatic(t *testing.T) {
	// Given: an OpenAI provider without a key
	cfg := FactoryConfig{Provider: ProviderOpenAI, StaticDimensions: 32, Fallback: true}

	e, err := NewEmbedder(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimensions())
}

func TestNewEmbedder_NoFallbackFails(t *testing.T) {
	_, err := NewEmbedder(context.Background(), FactoryConfig{Provider: ProviderOpenAI})
	assert.Error(t, err)
}
