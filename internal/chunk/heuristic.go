package chunk

import "strings"

// definitionPrefixes are language-agnostic tokens that open a new
// semantic unit. A chunk with at least MinLines closes when the next
// line starts with one of these.
var definitionPrefixes = []string{
	"fn ",
	"def ",
	"class ",
	"struct ",
	"impl ",
	"interface ",
	"trait ",
	"func ",
	"public ",
	"private ",
	"protected ",
	"async function ",
}

// span is an inclusive 0-based line range within a file.
type span struct {
	start int
	end   int
}

func (s span) size() int { return s.end - s.start + 1 }

// isDefinitionStart reports whether a line begins a new definition.
func isDefinitionStart(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, prefix := range definitionPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func allBlank(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}

// heuristicSpans splits lines into chunks by scanning for definition
// boundaries and the size ceiling. A chunk closes when it holds at least
// MinLines and the next line begins a definition, or when it reaches
// maxLines. Only ceiling-closed chunks overlap with their successor, by
// floor(maxLines/2) lines; a definition boundary is a clean break.
func heuristicSpans(lines []string, maxLines int) []span {
	if maxLines < 1 {
		maxLines = DefaultMaxLines
	}
	n := len(lines)
	if n == 0 {
		return nil
	}
	if n <= maxLines {
		if allBlank(lines) {
			return nil
		}
		return []span{{start: 0, end: n - 1}}
	}

	overlap := maxLines / 2
	var spans []span
	start := 0
	for start < n {
		end := start
		for end+1 < n {
			size := end - start + 1
			if size >= maxLines {
				break
			}
			if size >= MinLines && isDefinitionStart(lines[end+1]) {
				break
			}
			end++
		}

		if !allBlank(lines[start : end+1]) {
			spans = append(spans, span{start: start, end: end})
		}

		if end+1 >= n {
			break
		}

		next := end + 1
		if end-start+1 >= maxLines {
			// Ceiling hit mid-unit: back up to preserve context, but
			// always advance to guarantee termination.
			next = end + 1 - overlap
			if next <= start {
				next = start + 1
			}
		}
		start = next
	}

	return spans
}
