package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Anabaai/code-search/internal/index"
	"github.com/Anabaai/code-search/internal/logging"
	"github.com/Anabaai/code-search/internal/output"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the repository",
		Long: `Search the repository with a natural language query.

The index is refreshed incrementally first, so results always match
the current working tree.

Examples:
  code-search search "authentication middleware"
  code-search search "retry logic" --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := *root
			opts.limit = limit
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (0 uses the configured default)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts rootOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if cleanup, err := logging.SetupDefault(logCfg); err == nil {
		defer cleanup()
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	slog.Info("search started",
		slog.String("query", query),
		slog.Int("limit", cfg.Search.Limit),
		slog.String("root", opts.path))

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

	results, err := orch.Search(ctx, query, cfg.Search.Limit)
	if err != nil {
		return err
	}

	output.RenderResults(cmd.OutOrStdout(), results)
	return nil
}
