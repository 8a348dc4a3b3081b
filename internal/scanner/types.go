package scanner

import (
	"github.com/Anabaai/code-search/internal/chunk"
)

// DefaultMaxFileSize is the per-file size ceiling (1 MiB).
const DefaultMaxFileSize = 1 << 20

// IgnoreFileName is the project-local ignore file, gitignore syntax.
const IgnoreFileName = ".codesearchignore"

// FileInfo describes one admitted file.
type FileInfo struct {
	// Path is repository-relative with forward slashes.
	Path string
	// AbsPath is the absolute filesystem path.
	AbsPath string
	// Size in bytes.
	Size int64
	// Mtime is the modification time in unix seconds.
	Mtime int64
	// Language is the grammar name, or "" for heuristic-only files.
	Language string
}

// ScanResult carries one scanned file with its chunks, or a fatal walk
// error. Per-file failures are logged and skipped, never surfaced here.
type ScanResult struct {
	File   *FileInfo
	Chunks []chunk.Chunk
	Err    error
}

// Options configures a scan.
type Options struct {
	// RootDir is the repository root. Defaults to ".".
	RootDir string
	// MaxLines is the chunk ceiling. Defaults to chunk.DefaultMaxLines.
	MaxLines int
	// ExcludePatterns are caller-supplied globs, gitignore syntax.
	ExcludePatterns []string
	// MaxFileSize overrides the size ceiling when > 0.
	MaxFileSize int64
	// Workers overrides the chunking worker count when > 0.
	Workers int
}

// allowedExtensions is the admission list: source plus documentation
// and config formats.
var allowedExtensions = map[string]bool{
	".rs":   true,
	".py":   true,
	".js":   true,
	".ts":   true,
	".jsx":  true,
	".tsx":  true,
	".go":   true,
	".java": true,
	".cpp":  true,
	".c":    true,
	".h":    true,
	".hpp":  true,
	".php":  true,
	".rb":   true,
	".cs":   true,
	".md":   true,
	".txt":  true,
	".json": true,
	".yml":  true,
	".yaml": true,
	".toml": true,
}

// defaultIgnorePatterns are always excluded, ahead of any ignore file.
var defaultIgnorePatterns = []string{
	".git/",
	".code-search/",
	"target/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"__pycache__/",
}
