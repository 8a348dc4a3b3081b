package embed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	cerrors "github.com/Anabaai/code-search/internal/errors"
)

// Model cache layout, matching the huggingface hub convention.
const (
	cacheDirName  = "huggingface"
	lockFileName  = ".model.lock"
	weightsFile   = "model.safetensors"
	tokenizerFile = "tokenizer.json"
	configFile    = "config.json"
)

// DefaultCacheDir returns the local model cache directory,
// ~/.cache/huggingface/<model>. The model name's slash becomes a
// double-dash so the path stays flat.
func DefaultCacheDir(modelName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	flat := strings.ReplaceAll(modelName, "/", "--")
	return filepath.Join(home, ".cache", cacheDirName, flat), nil
}

// VerifyCache checks that the model's weight and tokenizer files are
// present in dir. Returns a fatal model error naming the missing file
// otherwise.
func VerifyCache(dir string) error {
	for _, name := range []string{weightsFile, tokenizerFile, configFile} {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return cerrors.New(cerrors.ErrCodeModelNotFound,
				fmt.Sprintf("model file not found: %s", path), err).
				WithSuggestion("download the model or run with offline embeddings")
		}
		if info.Size() == 0 {
			return cerrors.New(cerrors.ErrCodeModelCorrupt,
				fmt.Sprintf("model file is empty: %s", path), nil).
				WithSuggestion("delete the cache directory and download the model again")
		}
	}
	return nil
}

// FileLock serializes model loading across processes. Two indexers
// starting at once must not read a half-written cache.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates a lock scoped to the given cache directory.
func NewFileLock(dir string) *FileLock {
	lockPath := filepath.Join(dir, lockFileName)
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock acquires an exclusive lock, blocking until available.
func (l *FileLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking. Returns false
// when another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return fmt.Errorf("failed to release lock: %w", err)
	}
	l.locked = false
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// LockedLoader wraps a ModelLoader with cache verification and a
// cross-process file lock held for the duration of the load.
type LockedLoader struct {
	dir   string
	inner ModelLoader
}

// NewLockedLoader creates a loader reading from the cache at dir.
func NewLockedLoader(dir string, inner ModelLoader) *LockedLoader {
	return &LockedLoader{dir: dir, inner: inner}
}

// Load verifies the cache and delegates to the inner loader under the
// cache lock.
func (l *LockedLoader) Load(ctx context.Context) (Model, Tokenizer, error) {
	lock := NewFileLock(l.dir)
	if err := lock.Lock(); err != nil {
		return nil, nil, cerrors.New(cerrors.ErrCodeModelLocked,
			fmt.Sprintf("failed to lock model cache: %s", l.dir), err)
	}
	defer lock.Unlock()

	if err := VerifyCache(l.dir); err != nil {
		return nil, nil, err
	}

	return l.inner.Load(ctx)
}

var _ ModelLoader = (*LockedLoader)(nil)
