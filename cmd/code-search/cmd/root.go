// Package cmd provides the CLI commands for code-search.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Anabaai/code-search/internal/config"
	"github.com/Anabaai/code-search/internal/embed"
	cerrors "github.com/Anabaai/code-search/internal/errors"
	"github.com/Anabaai/code-search/internal/version"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitValidation = 1
	ExitStoreIO    = 2
	ExitModel      = 3
)

// rootOptions holds flags shared by the root command and subcommands.
type rootOptions struct {
	path     string
	limit    int
	maxLines int
	exclude  []string
	offline  bool
	mcpMode  bool
}

// NewRootCmd creates the root command. Running it with a query
// searches; --mcp serves the Model Context Protocol on stdio instead.
func NewRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "code-search [query]",
		Short: "Local semantic code search",
		Long: `code-search indexes a repository into a local vector index and
answers natural language queries over it.

The index lives in .code-search/ at the repository root and is
refreshed incrementally before every search.

Examples:
  code-search "where is the retry logic"
  code-search index --path ~/src/myrepo
  code-search --mcp`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.mcpMode {
				return runServe(cmd.Context(), opts)
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.SetVersionTemplate("code-search version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.path, "path", "p", ".", "Repository root to operate on")
	cmd.PersistentFlags().IntVar(&opts.maxLines, "max-lines", 0, "Maximum lines per chunk (0 uses the configured default)")
	cmd.PersistentFlags().StringSliceVarP(&opts.exclude, "exclude", "e", nil, "Exclude glob pattern, gitignore syntax (repeatable)")
	cmd.PersistentFlags().BoolVar(&opts.offline, "offline", false, "Use deterministic hash embeddings (no model)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().BoolVar(&opts.mcpMode, "mcp", false, "Serve the Model Context Protocol on stdio")

	cmd.AddCommand(newSearchCmd(&opts))
	cmd.AddCommand(newIndexCmd(&opts))
	cmd.AddCommand(newStatusCmd(&opts))

	return cmd
}

// Execute runs the root command and maps errors to exit codes.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		if suggestion := suggestionOf(err); suggestion != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", suggestion)
		}
		return exitCode(err)
	}
	return ExitOK
}

// exitCode maps an error to the process exit code by error category.
func exitCode(err error) int {
	switch cerrors.GetCategory(err) {
	case cerrors.CategoryModel:
		return ExitModel
	case cerrors.CategoryIO:
		return ExitStoreIO
	default:
		return ExitValidation
	}
}

// suggestionOf extracts the suggestion from a structured error, if any.
func suggestionOf(err error) string {
	var serr *cerrors.SearchError
	if errors.As(err, &serr) {
		return serr.Suggestion
	}
	return ""
}

// loadConfig resolves configuration for the target repository and
// applies flag overrides.
func loadConfig(opts rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.path)
	if err != nil {
		return cfg, err
	}
	if opts.maxLines > 0 {
		cfg.Search.MaxLines = opts.maxLines
	}
	if opts.limit > 0 {
		cfg.Search.Limit = opts.limit
	}
	cfg.Search.Exclude = append(cfg.Search.Exclude, opts.exclude...)
	if opts.offline {
		cfg.Embeddings.Offline = true
	}
	return cfg, cfg.Validate()
}

// newEmbedder builds the embedder stack for the resolved configuration.
// No model runtime ships with the CLI, so without a loader the factory
// settles on static embeddings.
func newEmbedder(ctx context.Context, cfg config.Config) (embed.Embedder, error) {
	return embed.NewEmbedder(ctx, embed.FactoryOptions{
		Offline:   cfg.Embeddings.Offline,
		ModelName: cfg.Embeddings.Model,
	})
}
