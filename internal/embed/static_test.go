package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

func TestStaticEmbedder_Embed_ReturnsModelDimensions(t *testing.T) {
	// Given: static embedder
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	// When: I embed code text
	embedding, err := embedder.Embed(context.Background(), "func main() {}")

	// Then: the vector matches the model dimension it substitutes for
	require.NoError(t, err)
	assert.Len(t, embedding, ModelDimensions)
}

func TestStaticEmbedder_Embed_VectorIsNormalized(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.Embed(context.Background(), "func main() {}")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, vectorMagnitude(embedding), 0.001, "vector should be unit length")
}

func TestStaticEmbedder_Embed_IsDeterministic(t *testing.T) {
	// Given: two separate embedder instances
	embedder1 := NewStaticEmbedder()
	embedder2 := NewStaticEmbedder()
	defer func() { _ = embedder1.Close() }()
	defer func() { _ = embedder2.Close() }()

	text := "func getUserById(id string) (*User, error)"

	// When: I embed the same text with both
	emb1, err1 := embedder1.Embed(context.Background(), text)
	emb2, err2 := embedder2.Embed(context.Background(), text)

	// Then: identical vectors come back
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, emb1, emb2, "same text should produce identical vectors")
}

func TestStaticEmbedder_Embed_DifferentTextsDiffer(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	emb1, _ := embedder.Embed(context.Background(), "func add()")
	emb2, _ := embedder.Embed(context.Background(), "class Database")

	assert.NotEqual(t, emb1, emb2, "different texts should produce different vectors")
}

func TestStaticEmbedder_Embed_EmptyInput_ReturnsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	for _, text := range []string{"", "   \n\t  "} {
		embedding, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		require.Len(t, embedding, ModelDimensions)
		assert.Zero(t, vectorMagnitude(embedding), "blank input should embed to the zero vector")
	}
}

func TestStaticEmbedder_Embed_SimilarIdentifiersOverlap(t *testing.T) {
	// Given: camelCase and snake_case spellings of the same identifier
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	emb1, err := embedder.Embed(context.Background(), "parseConfigFile")
	require.NoError(t, err)
	emb2, err := embedder.Embed(context.Background(), "parse_config_file")
	require.NoError(t, err)

	// Then: their cosine similarity beats an unrelated identifier's
	unrelated, err := embedder.Embed(context.Background(), "renderButtonWidget")
	require.NoError(t, err)

	assert.Greater(t, dot(emb1, emb2), dot(emb1, unrelated),
		"identifier spellings should land closer than unrelated code")
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestStaticEmbedder_EmbedBatch(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := []string{"func a()", "func b()", "func c()"}
	batch, err := embedder.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "batch element %d should match single embedding", i)
	}
}

func TestStaticEmbedder_EmbedBatch_Empty(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	batch, err := embedder.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestStaticEmbedder_Closed_RejectsEmbed(t *testing.T) {
	embedder := NewStaticEmbedder()
	require.NoError(t, embedder.Close())

	_, err := embedder.Embed(context.Background(), "text")
	assert.Error(t, err)
	assert.False(t, embedder.Available(context.Background()))
}

func TestSplitCamelCase(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple camel", "parseFile", []string{"parse", "File"}},
		{"acronym run", "HTTPServer", []string{"HTTP", "Server"}},
		{"trailing acronym", "parseJSON", []string{"parse", "JSON"}},
		{"single word", "parse", []string{"parse"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitCamelCase(tt.input))
		})
	}
}

func TestTokenize_FiltersAndSplits(t *testing.T) {
	tokens := filterStopWords(tokenize("func parseConfigFile(path string) error"))

	assert.Contains(t, tokens, "parse")
	assert.Contains(t, tokens, "config")
	assert.Contains(t, tokens, "file")
	assert.Contains(t, tokens, "path")
	assert.NotContains(t, tokens, "func", "language keywords should be filtered")
	assert.NotContains(t, tokens, "string", "language keywords should be filtered")
}
