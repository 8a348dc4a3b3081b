package chunk

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Chunker converts file contents into Chunk records. It holds one
// tree-sitter parser and is not safe for concurrent use; create one
// per worker.
type Chunker struct {
	parser *sitter.Parser
}

// NewChunker creates a Chunker.
func NewChunker() *Chunker {
	return &Chunker{parser: sitter.NewParser()}
}

// Close releases parser resources.
func (c *Chunker) Close() {
	if c.parser != nil {
		c.parser.Close()
		c.parser = nil
	}
}

// File chunks one file's content. Syntax chunking is attempted when a
// grammar exists for language; any failure falls back to the line
// heuristic. Blank-only regions produce no chunks, so a non-empty file
// always yields chunk indexes dense from 0.
func (c *Chunker) File(ctx context.Context, relPath string, content []byte, language string, mtime int64, maxLines int) []Chunk {
	if maxLines < 1 {
		maxLines = DefaultMaxLines
	}

	lines := splitLines(string(content))
	if len(lines) == 0 {
		return nil
	}

	var spans []span
	if language != "" {
		if s, ok := syntaxSpans(ctx, c.parser, language, content, lines, maxLines); ok {
			spans = s
		}
	}
	if spans == nil {
		spans = heuristicSpans(lines, maxLines)
	}

	chunks := make([]Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, Chunk{
			FilePath:  relPath,
			Index:     i,
			Content:   strings.Join(lines[s.start:s.end+1], "\n"),
			LineStart: s.start + 1,
			LineEnd:   s.end + 1,
			Mtime:     mtime,
		})
	}
	return chunks
}

// splitLines splits file content into lines without the trailing
// newline producing a phantom empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
