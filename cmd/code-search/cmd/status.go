package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Anabaai/code-search/internal/config"
	"github.com/Anabaai/code-search/internal/index"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Long:  `Show the index location, embedding model, and content counts.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, *root)
		},
	}
}

func runStatus(ctx context.Context, cmd *cobra.Command, opts rootOptions) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(config.IndexDir(opts.path)); os.IsNotExist(err) {
		fmt.Fprintln(out, "No index found. Run 'code-search index' first.")
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

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

	stats, err := orch.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Index:  %s\n", stats.IndexDir)
	fmt.Fprintf(out, "Model:  %s\n", stats.Model)
	fmt.Fprintf(out, "Files:  %d\n", stats.Files)
	fmt.Fprintf(out, "Chunks: %d\n", stats.Chunks)
	fmt.Fprintf(out, "Size:   %s\n", formatBytes(stats.Size))
	return nil
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
