package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("x%d := %d", i, i)
	}
	return lines
}

func TestHeuristicSpans_SmallFileIsOneSpan(t *testing.T) {
	lines := codeLines(20)

	spans := heuristicSpans(lines, DefaultMaxLines)

	require.Len(t, spans, 1)
	assert.Equal(t, span{start: 0, end: 19}, spans[0])
}

func TestHeuristicSpans_BlankFileHasNoSpans(t *testing.T) {
	lines := []string{"", "   ", "\t", ""}

	assert.Nil(t, heuristicSpans(lines, DefaultMaxLines))
	assert.Nil(t, heuristicSpans(nil, DefaultMaxLines))
}

func TestHeuristicSpans_BreaksBeforeDefinition(t *testing.T) {
	// Given: a body longer than the ceiling with one definition boundary
	lines := codeLines(70)
	lines[12] = "func handler() {"

	// When: the file is split
	spans := heuristicSpans(lines, DefaultMaxLines)

	// Then: the definition opens its own span with no overlap
	require.Len(t, spans, 2)
	assert.Equal(t, span{start: 0, end: 11}, spans[0])
	assert.Equal(t, 12, spans[1].start, "a definition boundary is a clean break")
}

func TestHeuristicSpans_CeilingHitOverlaps(t *testing.T) {
	// Given: 30 uniform lines and a ceiling of 10
	lines := codeLines(30)

	spans := heuristicSpans(lines, 10)

	// Then: successive spans overlap by half the ceiling
	require.Len(t, spans, 5)
	for i, s := range spans {
		assert.Equal(t, 10, s.size())
		assert.Equal(t, i*5, s.start, "span %d should start half a ceiling later", i)
	}
}

func TestHeuristicSpans_SkipsBlankSpans(t *testing.T) {
	lines := make([]string, 70)
	for i := 12; i < len(lines); i++ {
		lines[i] = fmt.Sprintf("x%d := %d", i, i)
	}
	lines[12] = "func handler() {"

	spans := heuristicSpans(lines, DefaultMaxLines)

	require.Len(t, spans, 1, "a blank-only leading region produces no span")
	assert.Equal(t, 12, spans[0].start)
}

func TestHeuristicSpans_ZeroCeilingUsesDefault(t *testing.T) {
	lines := codeLines(DefaultMaxLines)

	spans := heuristicSpans(lines, 0)

	require.Len(t, spans, 1)
	assert.Equal(t, DefaultMaxLines, spans[0].size())
}

func TestIsDefinitionStart(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"func main() {", true},
		{"    def fetch(self):", true},
		{"\tclass Parser:", true},
		{"pub fn run() {", false},
		{"fn run() {", true},
		{"funcy := 1", false},
		{"x := compute()", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.line), func(t *testing.T) {
			assert.Equal(t, tt.want, isDefinitionStart(tt.line))
		})
	}
}

func TestMergeSmallCaptures(t *testing.T) {
	t.Run("adjacent small captures fold together", func(t *testing.T) {
		captures := []span{{0, 2}, {3, 5}, {6, 20}}

		merged := mergeSmallCaptures(captures)

		require.Len(t, merged, 1)
		assert.Equal(t, span{start: 0, end: 20}, merged[0])
	})

	t.Run("a gap keeps captures apart", func(t *testing.T) {
		captures := []span{{0, 2}, {10, 25}}

		merged := mergeSmallCaptures(captures)

		require.Len(t, merged, 2)
		assert.Equal(t, span{start: 0, end: 2}, merged[0])
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, mergeSmallCaptures(nil))
	})
}

func TestUncoveredRegions(t *testing.T) {
	captures := []span{{2, 5}, {9, 12}}

	regions := uncoveredRegions(captures, 20)

	require.Len(t, regions, 3)
	assert.Equal(t, span{start: 0, end: 1}, regions[0])
	assert.Equal(t, span{start: 6, end: 8}, regions[1])
	assert.Equal(t, span{start: 13, end: 19}, regions[2])
}

func TestUncoveredRegions_FullCoverage(t *testing.T) {
	captures := []span{{0, 9}}

	assert.Empty(t, uncoveredRegions(captures, 10))
}
