package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anabaai/code-search/internal/embed"
	cerrors "github.com/Anabaai/code-search/internal/errors"
)

func staticFactory(_ context.Context) (embed.Embedder, error) {
	return embed.NewStaticEmbedder(), nil
}

func newTestServer(t *testing.T, root string) *Server {
	t.Helper()
	s := NewServer(root, staticFactory)
	t.Cleanup(s.closeAll)
	return s
}

func writeRepoFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	mtime := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestServer_SearchHandler_RequiresQuery(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	_, _, err := s.searchHandler(context.Background(), nil, SearchInput{})
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInvalidQuery, cerrors.GetCode(err))
}

func TestServer_SearchHandler_ReturnsResults(t *testing.T) {
	// Given: a repository with one matching file
	root := t.TempDir()
	writeRepoFile(t, root, "auth.go", "package main\n\nfunc validateUserToken() error { return nil }\n")
	s := newTestServer(t, root)

	// When: the tool is called without an explicit path
	res, out, err := s.searchHandler(context.Background(), nil, SearchInput{Query: "validate user token"})
	require.NoError(t, err)

	// Then: structured results and the rendered text agree
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "auth.go", out.Results[0].FilePath)
	assert.Contains(t, out.Text, "auth.go")
	require.Len(t, res.Content, 1)
}

func TestServer_SearchHandler_LimitCapsResults(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "a.go", "package main\n\nfunc handlerOne() {}\n")
	writeRepoFile(t, root, "b.go", "package main\n\nfunc handlerTwo() {}\n")
	s := newTestServer(t, root)

	_, out, err := s.searchHandler(context.Background(), nil, SearchInput{Query: "handler", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out.Results, 1)
}

func TestServer_OrchestratorFor_RejectsBadPaths(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "file.go", "package main\n")
	s := newTestServer(t, root)

	t.Run("missing directory", func(t *testing.T) {
		_, err := s.orchestratorFor(context.Background(), filepath.Join(root, "absent"))
		require.Error(t, err)
		assert.Equal(t, cerrors.ErrCodeInvalidPath, cerrors.GetCode(err))
	})

	t.Run("plain file", func(t *testing.T) {
		_, err := s.orchestratorFor(context.Background(), filepath.Join(root, "file.go"))
		require.Error(t, err)
		assert.Equal(t, cerrors.ErrCodeInvalidPath, cerrors.GetCode(err))
	})
}

func TestServer_OrchestratorFor_CachesPerRepository(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)

	first, err := s.orchestratorFor(context.Background(), root)
	require.NoError(t, err)
	second, err := s.orchestratorFor(context.Background(), "")
	require.NoError(t, err)

	assert.Same(t, first, second, "the default root and its absolute path share one orchestrator")
}
