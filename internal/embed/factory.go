package embed

import (
	"context"
	"log/slog"
)

// FactoryOptions selects and configures the embedder implementation.
type FactoryOptions struct {
	// Offline forces the static embedder, skipping model loading.
	Offline bool
	// ModelName overrides the default model identifier.
	ModelName string
	// Loader provides the model and tokenizer. Required unless Offline.
	Loader ModelLoader
	// CacheSize sets the embedding LRU capacity. 0 means default.
	CacheSize int
}

// NewEmbedder creates the embedder stack for the given options: the
// model-backed embedder wrapped in an LRU cache, or the static embedder
// in offline mode. A configured loader that cannot produce a working
// model is an error; mixing model and static vectors in one index would
// make scores meaningless.
func NewEmbedder(ctx context.Context, opts FactoryOptions) (Embedder, error) {
	if opts.Offline || opts.Loader == nil {
		if !opts.Offline {
			slog.Warn("no model loader configured, using static embeddings")
		}
		return NewCachedEmbedder(NewStaticEmbedder(), opts.CacheSize), nil
	}

	inner := NewMiniLMEmbedder(opts.Loader)
	if err := inner.ensureLoaded(ctx); err != nil {
		inner.Close()
		return nil, err
	}

	return NewCachedEmbedder(inner, opts.CacheSize), nil
}
