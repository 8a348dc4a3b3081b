package cmd

import (
	"context"
	"log/slog"

	"github.com/Anabaai/code-search/internal/config"
	"github.com/Anabaai/code-search/internal/embed"
	"github.com/Anabaai/code-search/internal/logging"
	"github.com/Anabaai/code-search/internal/mcp"
)

// runServe starts the MCP server on stdio. Nothing may be written to
// stdout before the server takes over; it carries JSON-RPC frames.
func runServe(ctx context.Context, opts rootOptions) error {
	cleanup, err := logging.SetupDefault(logging.ServerConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	factory := func(ctx context.Context) (embed.Embedder, error) {
		cfg := config.Default()
		cfg.Embeddings.Offline = cfg.Embeddings.Offline || opts.offline
		return newEmbedder(ctx, cfg)
	}

	server := mcp.NewServer(opts.path, factory)
	slog.Info("serving mcp on stdio", slog.String("root", opts.path))
	return server.Run(ctx)
}
