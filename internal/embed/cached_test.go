package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps StaticEmbedder and counts inner calls.
type countingEmbedder struct {
	*StaticEmbedder
	embedCalls int
	batchTexts int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls++
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchTexts += len(texts)
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_Embed_CachesRepeats(t *testing.T) {
	// Given: a cached embedder over a call-counting inner
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	// When: the same text is embedded twice
	emb1, err := cached.Embed(context.Background(), "func main() {}")
	require.NoError(t, err)
	emb2, err := cached.Embed(context.Background(), "func main() {}")
	require.NoError(t, err)

	// Then: the inner embedder ran once and results match
	assert.Equal(t, 1, inner.embedCalls)
	assert.Equal(t, emb1, emb2)
}

func TestCachedEmbedder_EmbedBatch_OnlyMissesReachInner(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	_, err := cached.Embed(context.Background(), "alpha")
	require.NoError(t, err)

	results, err := cached.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 2, inner.batchTexts, "cached text should not be re-embedded")
}

func TestCachedEmbedder_EmbedBatch_AllCached(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	texts := []string{"one", "two"}
	first, err := cached.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	second, err := cached.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, inner.batchTexts, "second batch should be served from cache")
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(), 0)
	defer func() { _ = cached.Close() }()

	assert.Equal(t, ModelDimensions, cached.Dimensions())
	assert.Equal(t, "static", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
}

func TestCachedEmbedder_KeysIncludeModelName(t *testing.T) {
	a := NewCachedEmbedder(NewStaticEmbedder(), 10)
	defer func() { _ = a.Close() }()
	b := NewCachedEmbedder(NewMiniLMEmbedder(nil), 10)
	defer func() { _ = b.Close() }()

	keyA := a.cacheKey("same text")
	keyB := a.cacheKey("other text")
	assert.NotEqual(t, keyA, keyB)
	assert.NotEqual(t, keyA, b.cacheKey("same text"), "the same text under another model gets its own key")
	assert.Len(t, keyA, 64, "keys are hex SHA-256")
}
