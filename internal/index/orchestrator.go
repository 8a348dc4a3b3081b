// Package index orchestrates the pipeline: scan the repository, diff
// against the stored index, embed changed chunks, and persist. All
// index mutations complete before any retrieval runs.
package index

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Anabaai/code-search/internal/chunk"
	"github.com/Anabaai/code-search/internal/config"
	"github.com/Anabaai/code-search/internal/embed"
	cerrors "github.com/Anabaai/code-search/internal/errors"
	"github.com/Anabaai/code-search/internal/scanner"
	"github.com/Anabaai/code-search/internal/search"
	"github.com/Anabaai/code-search/internal/store"
)

// Report summarizes one indexing run.
type Report struct {
	FilesScanned  int
	FilesIndexed  int
	FilesRemoved  int
	ChunksIndexed int
	Duration      time.Duration
}

// Orchestrator owns the store and embedder for one repository.
type Orchestrator struct {
	root     string
	cfg      *config.Config
	store    *store.Store
	embedder embed.Embedder
}

// New opens the index under root's .code-search directory and makes
// sure the directory is git-ignored.
func New(ctx context.Context, root string, cfg *config.Config, embedder embed.Embedder) (*Orchestrator, error) {
	if err := config.EnsureGitignore(root); err != nil {
		slog.Warn("failed to update .gitignore", slog.String("error", err.Error()))
	}

	st, err := store.Open(ctx, config.IndexDir(root), embedder.Dimensions(), embedder.ModelName())
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		root:     root,
		cfg:      cfg,
		store:    st,
		embedder: embedder,
	}, nil
}

// Index brings the store up to date with the working tree: new and
// modified files are re-embedded, files gone from the tree are removed.
func (o *Orchestrator) Index(ctx context.Context) (*Report, error) {
	start := time.Now()

	var results <-chan scanner.ScanResult
	var indexed map[string]int64

	// The scan keeps streaming after g.Wait returns, and Wait cancels
	// gctx, so the scanner runs on its own context.
	scanCtx, cancelScan := context.WithCancel(ctx)
	defer cancelScan()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = scanner.New().Scan(scanCtx, &scanner.Options{
			RootDir:         o.root,
			MaxLines:        o.cfg.Search.MaxLines,
			ExcludePatterns: o.cfg.Search.Exclude,
		})
		return err
	})
	g.Go(func() error {
		var err error
		indexed, err = o.store.IndexedMetadata(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	observed := make(map[string]bool)

	for res := range results {
		if res.Err != nil {
			return nil, cerrors.New(cerrors.ErrCodeIndexFailed, "repository scan failed", res.Err)
		}

		report.FilesScanned++
		observed[res.File.Path] = true

		if mtime, ok := indexed[res.File.Path]; ok && mtime == res.File.Mtime {
			continue
		}

		if err := o.indexFile(ctx, res.File.Path, res.Chunks, report); err != nil {
			return nil, err
		}
		report.FilesIndexed++
	}

	var removed []string
	for path := range indexed {
		if !observed[path] {
			removed = append(removed, path)
		}
	}
	if len(removed) > 0 {
		if err := o.store.DeletePaths(ctx, removed); err != nil {
			return nil, err
		}
		report.FilesRemoved = len(removed)
	}

	if err := o.store.Save(); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	slog.Info("index updated",
		slog.Int("scanned", report.FilesScanned),
		slog.Int("indexed", report.FilesIndexed),
		slog.Int("removed", report.FilesRemoved),
		slog.Int("chunks", report.ChunksIndexed),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// indexFile embeds one file's chunks and replaces its stored records.
// A file whose chunks all vanished (now blank) still upserts, clearing
// its old rows.
func (o *Orchestrator) indexFile(ctx context.Context, path string, chunks []chunk.Chunk, report *Report) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]store.Record, len(chunks))
	for i, c := range chunks {
		records[i] = store.Record{
			FilePath:   c.FilePath,
			ChunkIndex: c.Index,
			Content:    c.Content,
			LineStart:  c.LineStart,
			LineEnd:    c.LineEnd,
			Mtime:      c.Mtime,
			Vector:     vectors[i],
		}
	}

	if err := o.store.Upsert(ctx, path, records); err != nil {
		return err
	}

	before := report.ChunksIndexed
	report.ChunksIndexed += len(chunks)
	if before/embed.ProgressInterval != report.ChunksIndexed/embed.ProgressInterval {
		slog.Info("embedding progress", slog.Int("chunks", report.ChunksIndexed))
	}
	return nil
}

// Search refreshes the index, then retrieves. Results never reference
// files deleted before the query ran.
func (o *Orchestrator) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	if _, err := o.Index(ctx); err != nil {
		return nil, err
	}

	retriever := search.NewRetriever(o.store, o.embedder)
	return retriever.Retrieve(ctx, query, limit)
}

// Stats describes the current index.
type Stats struct {
	IndexDir string
	Model    string
	Files    int
	Chunks   int
	Size     int64
}

// Stats reports index contents without mutating anything.
func (o *Orchestrator) Stats(ctx context.Context) (*Stats, error) {
	st, err := o.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	model, err := o.store.Model(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		IndexDir: config.IndexDir(o.root),
		Model:    model,
		Files:    st.Files,
		Chunks:   st.Chunks,
		Size:     st.SizeBytes,
	}, nil
}

// Cleanup compacts the store.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	return o.store.Cleanup(ctx)
}

// Close flushes and releases the store and embedder.
func (o *Orchestrator) Close() error {
	storeErr := o.store.Close()
	embErr := o.embedder.Close()
	if storeErr != nil {
		return storeErr
	}
	return embErr
}
