package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Anabaai/code-search/internal/index"
	"github.com/Anabaai/code-search/internal/logging"
	"github.com/Anabaai/code-search/internal/output"
)

func newIndexCmd(root *rootOptions) *cobra.Command {
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the repository index",
		Long: `Build or refresh the repository index without searching.

Unchanged files are skipped, modified files are re-embedded, and
files deleted from the tree are removed from the index.

Examples:
  code-search index
  code-search index --path ~/src/myrepo --cleanup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, *root, cleanup)
		},
	}

	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Compact the index after updating")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts rootOptions, compact bool) error {
	if cleanupLogs, err := logging.SetupDefault(logging.DefaultConfig()); err == nil {
		defer cleanupLogs()
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	out := output.New(cmd.ErrOrStderr())
	out.Statusf("", "Indexing %s ...", opts.path)

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}

	orch, err := index.New(ctx, opts.path, &cfg, embedder)
	if err != nil {
		embedder.Close()
		return err
	}
	defer orch.Close()

	report, err := orch.Index(ctx)
	if err != nil {
		return err
	}

	if compact {
		if err := orch.Cleanup(ctx); err != nil {
			slog.Warn("index compaction failed", slog.String("error", err.Error()))
		}
	}

	out.Successf("Indexed %d files (%d chunks, %d removed) in %s",
		report.FilesIndexed, report.ChunksIndexed, report.FilesRemoved,
		report.Duration.Round(time.Millisecond))
	return nil
}
