// Package chunk splits source files into contiguous line ranges suitable
// for embedding. Syntax-aware chunking is attempted first; a line heuristic
// covers everything else.
package chunk

// Chunk is a contiguous slice of one source file, the unit of indexing
// and retrieval.
type Chunk struct {
	// FilePath is repository-relative with forward slashes.
	FilePath string

	// Index is the 0-based ordinal within the file, dense from 0 upward.
	Index int

	// Content is the verbatim text of the covered lines.
	Content string

	// LineStart and LineEnd are 1-based inclusive line numbers.
	LineStart int
	LineEnd   int

	// Mtime is the file modification time in unix seconds at chunking time.
	Mtime int64
}

// Chunking parameters.
const (
	// DefaultMaxLines is the chunk ceiling used when the caller passes 0.
	DefaultMaxLines = 60

	// MinLines is the floor below which adjacent captures are merged and
	// the heuristic refuses to break before a definition.
	MinLines = 10
)
