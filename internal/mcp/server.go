// Package mcp exposes search over the Model Context Protocol on
// stdio. Stdout carries JSON-RPC frames, so all logging goes to the
// log file.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Anabaai/code-search/internal/config"
	"github.com/Anabaai/code-search/internal/embed"
	cerrors "github.com/Anabaai/code-search/internal/errors"
	"github.com/Anabaai/code-search/internal/index"
	"github.com/Anabaai/code-search/internal/output"
	"github.com/Anabaai/code-search/internal/version"
)

// DefaultSearchLimit is the result count when the client omits one.
const DefaultSearchLimit = 10

// SearchInput is the search tool's argument schema.
type SearchInput struct {
	Query          string `json:"query" jsonschema:"natural language search query"`
	RepositoryPath string `json:"repository_path,omitempty" jsonschema:"repository root to search, defaults to the server's working directory"`
	Limit          int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

// SearchOutput is the search tool's result schema.
type SearchOutput struct {
	Results []ResultOutput `json:"results"`
	Text    string         `json:"text" jsonschema:"human-readable rendering of the results"`
}

// ResultOutput is one structured search hit.
type ResultOutput struct {
	FilePath  string  `json:"file_path"`
	LineStart int     `json:"line_start"`
	LineEnd   int     `json:"line_end"`
	Score     float64 `json:"score"`
	Content   string  `json:"content"`
}

// EmbedderFactory creates the embedder for a server session.
type EmbedderFactory func(ctx context.Context) (embed.Embedder, error)

// Server serves the search tool over stdio. One orchestrator is kept
// per repository path; the first search against a repository indexes
// it. Each repository's own config file applies.
type Server struct {
	mu            sync.Mutex
	defaultRoot   string
	newEmbedder   EmbedderFactory
	orchestrators map[string]*index.Orchestrator

	mcp    *mcp.Server
	logger *slog.Logger
}

// NewServer creates an MCP server rooted at defaultRoot.
func NewServer(defaultRoot string, factory EmbedderFactory) *Server {
	s := &Server{
		defaultRoot:   defaultRoot,
		newEmbedder:   factory,
		orchestrators: make(map[string]*index.Orchestrator),
		logger:        slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "code-search",
			Version: version.Version,
		},
		nil,
	)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Semantic code search over a local repository index. Finds code by meaning, not just keywords. The index is refreshed before every search, so results always reflect the working tree.",
	}, s.searchHandler)
	s.logger.Debug("registered tool", slog.String("name", "search"))

	return s
}

// orchestratorFor returns the cached orchestrator for root, creating
// it on first use.
func (s *Server) orchestratorFor(ctx context.Context, root string) (*index.Orchestrator, error) {
	if root == "" {
		root = s.defaultRoot
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot resolve repository path: %s", root), err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeInvalidPath,
			fmt.Sprintf("repository path does not exist: %s", absRoot), err)
	}
	if !info.IsDir() {
		return nil, cerrors.New(cerrors.ErrCodeInvalidPath,
			fmt.Sprintf("repository path is not a directory: %s", absRoot), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if orch, ok := s.orchestrators[absRoot]; ok {
		return orch, nil
	}

	embedder, err := s.newEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		embedder.Close()
		return nil, err
	}

	orch, err := index.New(ctx, absRoot, &cfg, embedder)
	if err != nil {
		embedder.Close()
		return nil, err
	}

	s.orchestrators[absRoot] = orch
	s.logger.Info("repository attached", slog.String("root", absRoot))
	return orch, nil
}

// searchHandler serves one search call: refresh the index, retrieve,
// render.
func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, cerrors.InvalidQuery("query parameter is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	orch, err := s.orchestratorFor(ctx, input.RepositoryPath)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	results, err := orch.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{
		Results: make([]ResultOutput, 0, len(results)),
		Text:    output.RenderResultsString(results),
	}
	for _, r := range results {
		out.Results = append(out.Results, ResultOutput{
			FilePath:  r.FilePath,
			LineStart: r.LineStart,
			LineEnd:   r.LineEnd,
			Score:     r.Score,
			Content:   r.Content,
		})
	}

	s.logger.Info("search completed",
		slog.String("query", input.Query),
		slog.Int("results", len(results)))

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out.Text}},
	}, out, nil
}

// Run serves on stdio until the context is canceled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("version", version.Version))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	s.closeAll()
	return err
}

// closeAll releases every attached repository.
func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for root, orch := range s.orchestrators {
		if err := orch.Close(); err != nil {
			s.logger.Warn("failed to close repository",
				slog.String("root", root),
				slog.String("error", err.Error()))
		}
	}
	s.orchestrators = make(map[string]*index.Orchestrator)
}
