package embed

import (
	"context"
	"fmt"
	"sync"

	cerrors "github.com/Anabaai/code-search/internal/errors"
)

// padTokenID is the padding token for MiniLM's WordPiece vocabulary.
const padTokenID = 0

// MiniLMEmbedder runs the all-MiniLM-L6-v2 sentence transformer from the
// local model cache. Loading is deferred to the first Embed, EmbedBatch
// or Available call; NewEmbedder triggers it when it builds the stack.
type MiniLMEmbedder struct {
	loader ModelLoader

	mu        sync.Mutex
	model     Model
	tokenizer Tokenizer
	loaded    bool
	closed    bool
}

// NewMiniLMEmbedder creates an embedder backed by loader. The model is
// not loaded until first use.
func NewMiniLMEmbedder(loader ModelLoader) *MiniLMEmbedder {
	return &MiniLMEmbedder{loader: loader}
}

// ensureLoaded loads the model and tokenizer exactly once.
func (e *MiniLMEmbedder) ensureLoaded(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return cerrors.New(cerrors.ErrCodeInternal, "embedder is closed", nil)
	}
	if e.loaded {
		return nil
	}

	model, tokenizer, err := e.loader.Load(ctx)
	if err != nil {
		return err
	}

	if model.Dimensions() != ModelDimensions {
		model.Close()
		return cerrors.New(cerrors.ErrCodeModelCorrupt,
			fmt.Sprintf("model produces %d-dimensional vectors, expected %d", model.Dimensions(), ModelDimensions),
			nil)
	}

	e.model = model
	e.tokenizer = tokenizer
	e.loaded = true
	return nil
}

// Embed generates the embedding for a single text.
func (e *MiniLMEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	results, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// EmbedBatch generates embeddings for multiple texts. Inputs are split
// into forward passes of at most DefaultBatchSize rows; each row is
// truncated to the model context window and right-padded to the longest
// row in its batch.
func (e *MiniLMEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if err := e.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += DefaultBatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + DefaultBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatch(texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}

	return results, nil
}

// embedBatch runs one forward pass: tokenize, pad, forward, pool, normalize.
func (e *MiniLMEmbedder) embedBatch(texts []string) ([][]float32, error) {
	inputIDs := make([][]int64, len(texts))
	maxLen := 1
	for i, text := range texts {
		ids, err := e.tokenizer.Encode(text)
		if err != nil {
			return nil, cerrors.EmbeddingError(fmt.Sprintf("tokenization failed for text %d", i), err)
		}
		if len(ids) > MaxSequenceLength {
			ids = ids[:MaxSequenceLength]
		}
		inputIDs[i] = ids
		if len(ids) > maxLen {
			maxLen = len(ids)
		}
	}

	padded := make([][]int64, len(texts))
	masks := make([][]int64, len(texts))
	for i, ids := range inputIDs {
		row := make([]int64, maxLen)
		mask := make([]int64, maxLen)
		for j, id := range ids {
			row[j] = id
			mask[j] = 1
		}
		for j := len(ids); j < maxLen; j++ {
			row[j] = padTokenID
		}
		padded[i] = row
		masks[i] = mask
	}

	hidden, err := e.model.Forward(padded, masks)
	if err != nil {
		return nil, cerrors.EmbeddingError("model forward pass failed", err)
	}
	if len(hidden) != len(texts) {
		return nil, cerrors.EmbeddingError(
			fmt.Sprintf("model returned %d rows for %d inputs", len(hidden), len(texts)), nil)
	}

	results := make([][]float32, len(texts))
	for i, tokens := range hidden {
		results[i] = normalizeVector(meanPool(tokens, masks[i]))
	}
	return results, nil
}

// meanPool averages per-token embeddings over positions where the
// attention mask is set. Padding positions contribute nothing.
func meanPool(tokens [][]float32, mask []int64) []float32 {
	pooled := make([]float32, ModelDimensions)
	var count float32
	for pos, vec := range tokens {
		if pos >= len(mask) || mask[pos] == 0 {
			continue
		}
		count++
		for d := 0; d < len(pooled) && d < len(vec); d++ {
			pooled[d] += vec[d]
		}
	}
	if count == 0 {
		return pooled
	}
	for d := range pooled {
		pooled[d] /= count
	}
	return pooled
}

// Dimensions returns the embedding dimension.
func (e *MiniLMEmbedder) Dimensions() int {
	return ModelDimensions
}

// ModelName returns the model identifier.
func (e *MiniLMEmbedder) ModelName() string {
	return DefaultModelName
}

// Available reports whether the model can be loaded. Triggers loading
// when it has not happened yet.
func (e *MiniLMEmbedder) Available(ctx context.Context) bool {
	return e.ensureLoaded(ctx) == nil
}

// Close releases the model.
func (e *MiniLMEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		e.tokenizer = nil
		e.loaded = false
		return err
	}
	return nil
}

var _ Embedder = (*MiniLMEmbedder)(nil)
