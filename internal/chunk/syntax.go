package chunk

import (
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// maxSyntaxFileBytes is the ceiling above which parsing is skipped and
// the whole file goes to the heuristic chunker.
const maxSyntaxFileBytes = 512 * 1024

// syntaxSpans chunks source by its parse tree. Top-level declarations
// become captures; a leading comment run merges into the declaration it
// documents; captures below MinLines merge with adjacent neighbors;
// captures above maxLines are re-split by the line heuristic with their
// offsets preserved. Uncovered regions are chunked by the heuristic
// without overlap across the boundary.
//
// Returns ok=false when no grammar applies or parsing fails, in which
// case the caller falls back to the heuristic for the whole file.
func syntaxSpans(ctx context.Context, parser *sitter.Parser, language string, source []byte, lines []string, maxLines int) ([]span, bool) {
	grammar, ok := grammarFor(language)
	if !ok {
		return nil, false
	}
	if len(source) > maxSyntaxFileBytes {
		return nil, false
	}

	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil {
		return nil, false
	}
	defer tree.Close()

	captures := topLevelCaptures(tree.RootNode())
	if len(captures) == 0 {
		return nil, false
	}

	captures = mergeSmallCaptures(captures)

	var spans []span
	for _, c := range captures {
		if c.size() > maxLines {
			for _, sub := range heuristicSpans(lines[c.start:c.end+1], maxLines) {
				spans = append(spans, span{start: sub.start + c.start, end: sub.end + c.start})
			}
		} else {
			spans = append(spans, c)
		}
	}

	for _, r := range uncoveredRegions(captures, len(lines)) {
		for _, sub := range heuristicSpans(lines[r.start:r.end+1], maxLines) {
			spans = append(spans, span{start: sub.start + r.start, end: sub.end + r.start})
		}
	}

	sortSpans(spans)
	return spans, true
}

// topLevelCaptures extracts line ranges of the root node's named
// children. A comment run directly above a declaration is folded into
// that declaration's capture; detached comments stay uncovered and fall
// through to the residual pass.
func topLevelCaptures(root *sitter.Node) []span {
	var captures []span
	commentStart, commentEnd := -1, -1

	count := int(root.NamedChildCount())
	for i := 0; i < count; i++ {
		n := root.NamedChild(i)
		start := int(n.StartPoint().Row)
		end := int(n.EndPoint().Row)

		if commentTypes[n.Type()] {
			if commentStart == -1 {
				commentStart = start
			}
			commentEnd = end
			continue
		}

		if commentStart != -1 && start <= commentEnd+1 {
			start = commentStart
		}
		commentStart, commentEnd = -1, -1

		captures = append(captures, span{start: start, end: end})
	}

	return captures
}

// mergeSmallCaptures folds captures below MinLines into their adjacent
// neighbor. A gap of more than one line flushes the pending capture.
func mergeSmallCaptures(captures []span) []span {
	if len(captures) == 0 {
		return nil
	}

	merged := make([]span, 0, len(captures))
	cur := captures[0]
	for _, next := range captures[1:] {
		gap := next.start - cur.end
		if cur.size() < MinLines && gap <= 1 {
			if next.end > cur.end {
				cur.end = next.end
			}
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	merged = append(merged, cur)

	return merged
}

// uncoveredRegions returns the line ranges not claimed by any capture.
func uncoveredRegions(captures []span, totalLines int) []span {
	var regions []span
	pos := 0
	for _, c := range captures {
		if c.start > pos {
			regions = append(regions, span{start: pos, end: c.start - 1})
		}
		if c.end+1 > pos {
			pos = c.end + 1
		}
	}
	if pos < totalLines {
		regions = append(regions, span{start: pos, end: totalLines - 1})
	}
	return regions
}

func sortSpans(spans []span) {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
}
