package embed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Anabaai/code-search/internal/errors"
)

func TestDefaultCacheDir_FlattensModelName(t *testing.T) {
	dir, err := DefaultCacheDir("sentence-transformers/all-MiniLM-L6-v2")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dir, "sentence-transformers--all-MiniLM-L6-v2"))
	assert.Contains(t, dir, filepath.Join(".cache", "huggingface"))
}

func writeModelFiles(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{weightsFile, tokenizerFile, configFile} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644))
	}
}

func TestVerifyCache(t *testing.T) {
	t.Run("complete cache passes", func(t *testing.T) {
		dir := t.TempDir()
		writeModelFiles(t, dir)
		assert.NoError(t, VerifyCache(dir))
	})

	t.Run("missing weights is a model-not-found error", func(t *testing.T) {
		dir := t.TempDir()
		writeModelFiles(t, dir)
		require.NoError(t, os.Remove(filepath.Join(dir, weightsFile)))

		err := VerifyCache(dir)
		require.Error(t, err)
		assert.Equal(t, cerrors.ErrCodeModelNotFound, cerrors.GetCode(err))
	})

	t.Run("empty file is corrupt", func(t *testing.T) {
		dir := t.TempDir()
		writeModelFiles(t, dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, tokenizerFile), nil, 0o644))

		err := VerifyCache(dir)
		require.Error(t, err)
		assert.Equal(t, cerrors.ErrCodeModelCorrupt, cerrors.GetCode(err))
	})
}

func TestFileLock_LockUnlock(t *testing.T) {
	dir := t.TempDir()
	lock := NewFileLock(dir)

	require.NoError(t, lock.Lock())
	assert.FileExists(t, lock.Path())
	require.NoError(t, lock.Unlock())
	require.NoError(t, lock.Unlock(), "double unlock is safe")
}

func TestFileLock_TryLockContention(t *testing.T) {
	dir := t.TempDir()
	first := NewFileLock(dir)
	require.NoError(t, first.Lock())
	defer func() { _ = first.Unlock() }()

	// flock locks are per-process handle; a second handle in the same
	// process still observes the conflict through TryLock.
	second := NewFileLock(dir)
	acquired, err := second.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired, "a held lock must not be acquired through a second handle")
	if acquired {
		require.NoError(t, second.Unlock())
	}
}

func TestLockedLoader_VerifiesBeforeLoading(t *testing.T) {
	dir := t.TempDir()
	loader := NewLockedLoader(dir, &fakeLoader{model: &fakeModel{dims: ModelDimensions}})

	_, _, err := loader.Load(context.Background())
	require.Error(t, err, "an empty cache directory must not load")
	assert.Equal(t, cerrors.ErrCodeModelNotFound, cerrors.GetCode(err))

	writeModelFiles(t, dir)
	model, tokenizer, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, model)
	assert.NotNil(t, tokenizer)
}
