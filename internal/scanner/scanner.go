// Package scanner walks a repository tree, applies the ignore chain,
// and streams chunked files to the indexing pipeline.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Anabaai/code-search/internal/chunk"
	"github.com/Anabaai/code-search/internal/gitignore"
)

// Scanner discovers and chunks indexable files in a repository.
type Scanner struct{}

// New creates a Scanner.
func New() *Scanner {
	return &Scanner{}
}

// Scan walks the tree rooted at opts.RootDir and streams one ScanResult
// per admitted file. The channel is closed when scanning completes.
// Chunking runs on a worker pool; the bounded channel gives the
// downstream embedder natural backpressure.
func (s *Scanner) Scan(ctx context.Context, opts *Options) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &Options{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	matcher, err := buildMatcher(absRoot, opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan ScanResult, workers*4)
	candidates := make(chan *FileInfo, workers*4)

	go func() {
		defer close(results)

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			defer close(candidates)
			return walk(ctx, absRoot, matcher, maxFileSize, candidates)
		})

		for i := 0; i < workers; i++ {
			g.Go(func() error {
				ck := chunk.NewChunker()
				defer ck.Close()

				for fi := range candidates {
					chunks, err := chunkFile(ctx, ck, fi, opts.MaxLines)
					if err != nil {
						slog.Warn("skipping file",
							slog.String("path", fi.Path),
							slog.String("error", err.Error()))
						continue
					}
					select {
					case results <- ScanResult{File: fi, Chunks: chunks}:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case results <- ScanResult{Err: err}:
			default:
			}
		}
	}()

	return results, nil
}

// buildMatcher assembles the ignore chain: built-in defaults, the
// repository .gitignore, the project .codesearchignore, then caller
// exclude patterns. Later additions can re-admit via negation.
func buildMatcher(absRoot string, excludes []string) (*gitignore.Matcher, error) {
	m := gitignore.New()

	for _, p := range defaultIgnorePatterns {
		m.AddPattern(p)
	}

	for _, name := range []string{".gitignore", IgnoreFileName} {
		path := filepath.Join(absRoot, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := m.AddFromFile(path, ""); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
	}

	for _, p := range excludes {
		m.AddPattern(p)
	}

	return m, nil
}

// walk traverses the tree and sends admitted files to candidates.
func walk(ctx context.Context, absRoot string, matcher *gitignore.Matcher, maxFileSize int64, candidates chan<- *FileInfo) error {
	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			slog.Warn("skipping unreadable entry", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		relSlash := filepath.ToSlash(rel)

		if d.IsDir() {
			if matcher.Match(relSlash, true) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are never followed.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(relSlash))
		if !allowedExtensions[ext] {
			return nil
		}

		if matcher.Match(relSlash, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("skipping unreadable file", slog.String("path", relSlash), slog.String("error", err.Error()))
			return nil
		}

		if info.Size() > maxFileSize {
			slog.Debug("skipping oversized file",
				slog.String("path", relSlash),
				slog.Int64("size", info.Size()))
			return nil
		}

		fi := &FileInfo{
			Path:     relSlash,
			AbsPath:  path,
			Size:     info.Size(),
			Mtime:    info.ModTime().Unix(),
			Language: chunk.LanguageForExtension(ext),
		}

		select {
		case candidates <- fi:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// chunkFile reads and chunks one file. Binary and non-UTF-8 content is
// rejected here rather than aborting the scan.
func chunkFile(ctx context.Context, ck *chunk.Chunker, fi *FileInfo, maxLines int) ([]chunk.Chunk, error) {
	content, err := os.ReadFile(fi.AbsPath)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	if isBinary(content) {
		return nil, errors.New("binary content")
	}
	if !utf8.Valid(content) {
		return nil, errors.New("invalid UTF-8")
	}

	return ck.File(ctx, fi.Path, content, fi.Language, fi.Mtime, maxLines), nil
}

// isBinary sniffs for a NUL byte in the leading bytes.
func isBinary(content []byte) bool {
	n := len(content)
	if n > 8192 {
		n = 8192
	}
	return bytes.IndexByte(content[:n], 0) >= 0
}
