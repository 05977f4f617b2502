package embed

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Embed_ZeroVectorOnFailure(t *testing.T) {
	// Given: a provider that fails for this text
	c := NewClient(newFakeEmbedder(16), ClientOptions{})

	// When: embedding
	v := c.Embed(context.Background(), "this will fail")

	// Then: a zero vector of the provider dimension comes back
	assert.Len(t, v, 16)
	assert.True(t, IsZero(v))
}

func TestClient_Embed_Truncates(t *testing.T) {
	inner := newFakeEmbedder(1000)
	c := NewClient(inner, ClientOptions{MaxInputChars: 5})

	v := c.Embed(context.Background(), strings.Repeat("é", 50))

	// Fake embedder sets index len(text) in bytes; 5 runes of "é" is 10 bytes.
	assert.Equal(t, float32(1), v[10])
}

func TestClient_Embed_BlankSkipsProvider(t *testing.T) {
	inner := newFakeEmbedder(4)
	c := NewClient(inner, ClientOptions{})

	v := c.Embed(context.Background(), " \n ")

	assert.True(t, IsZero(v))
	assert.Equal(t, int32(0), inner.calls.Load())
}

func TestClient_EmbedBatch_PreservesOrderAndBoundsConcurrency(t *testing.T) {
	// Given: a slow provider and more texts than workers
	inner := newFakeEmbedder(64)
	inner.delay = 5 * time.Millisecond
	c := NewClient(inner, ClientOptions{Workers: 4})

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}
	texts[7] = "fail " + texts[7]

	// When: embedding the batch
	out := c.EmbedBatch(context.Background(), texts)

	// Then: one result per input, in input order, failures zeroed
	require.Len(t, out, len(texts))
	for i, v := range out {
		if i == 7 {
			assert.True(t, IsZero(v), "failed text is zeroed")
			continue
		}
		assert.Equal(t, float32(1), v[len(texts[i])%64], fmt.Sprintf("text %d", i))
	}
	assert.LessOrEqual(t, inner.peak.Load(), int32(4))
	assert.Equal(t, int32(20), inner.calls.Load())
}

func TestClient_EmbedBatch_Empty(t *testing.T) {
	c := NewClient(newFakeEmbedder(4), ClientOptions{})
	assert.Empty(t, c.EmbedBatch(context.Background(), nil))
}
