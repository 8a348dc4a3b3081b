// Package embed turns chunk text into fixed-dimension unit-norm vectors.
package embed

import (
	"context"
	"math"
)

// Common embedding constants
const (
	// DefaultBatchSize is the batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps a single forward pass to prevent memory exhaustion.
	MaxBatchSize = 256

	// ProgressInterval is the chunk cadence for coarse progress logging.
	ProgressInterval = 10 * DefaultBatchSize
)

// MiniLM constants (default model)
const (
	// ModelDimensions is the embedding dimension for MiniLM-L6-v2.
	ModelDimensions = 384

	// MaxSequenceLength is the model context window in tokens.
	MaxSequenceLength = 256

	// DefaultModelName identifies the default sentence-transformer.
	DefaultModelName = "sentence-transformers/all-MiniLM-L6-v2"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Tokenizer converts text into model token IDs. Implementations wrap
// the model's own vocabulary files from the local cache.
type Tokenizer interface {
	// Encode returns token IDs for text, without padding.
	Encode(text string) ([]int64, error)
}

// Model is the transformer forward pass, an external collaborator
// consuming a local weight file. Given right-padded token ID rows and
// matching attention masks it returns per-token embeddings shaped
// [batch][token][dim].
type Model interface {
	Forward(inputIDs [][]int64, attentionMask [][]int64) ([][][]float32, error)
	Dimensions() int
	Close() error
}

// ModelLoader opens the model and tokenizer from the local cache.
// Loading is heavyweight; callers hold the result for the process
// lifetime.
type ModelLoader interface {
	Load(ctx context.Context) (Model, Tokenizer, error)
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v // Return as-is if zero vector
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
