package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder generates embeddings using a hash-based approach.
// Works without model files (no network, no download) at reduced
// semantic quality. Used for offline mode and tests.
type StaticEmbedder struct {
	mu         sync.RWMutex
	closed     bool
	dimensions int
}

// programmingStopWords lists keywords so common across the indexed
// languages that hashing them would only add noise.
var programmingStopWords = map[string]bool{
	"func": true, "fn": true, "function": true, "def": true,
	"class": true, "struct": true, "impl": true, "interface": true,
	"type": true, "return": true, "import": true,
	"const": true, "var": true, "let": true, "pub": true,
	"int": true, "string": true, "bool": true, "void": true,
	"true": true, "false": true, "nil": true, "null": true,
	"this": true, "self": true, "new": true,
}

// Identifier tokens dominate the vector; character trigrams add
// partial-match recall.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticEmbedder creates a static embedder producing vectors of the
// same dimension as the model it substitutes for.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{dimensions: ModelDimensions}
}

// Embed generates the embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dimensions), nil
	}

	return normalizeVector(e.generateVector(trimmed)), nil
}

// generateVector creates a hash-based vector from text. Identifier
// tokens carry most of the weight; character trigrams fill in partial
// matches.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dimensions)

	tokens := filterStopWords(tokenize(text))
	for _, token := range tokens {
		vector[hashToIndex(token, e.dimensions)] += tokenWeight
	}

	normalized := normalizeForNgrams(text)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram, e.dimensions)] += ngramWeight
	}

	return vector
}

// tokenize lowercases the identifier words found in text, so camelCase,
// snake_case, and plain spellings of a name hash to the same buckets.
func tokenize(text string) []string {
	var tokens []string
	for _, match := range tokenRegex.FindAllString(text, -1) {
		for _, word := range splitCodeToken(match) {
			tokens = append(tokens, strings.ToLower(word))
		}
	}
	return tokens
}

// splitCodeToken breaks an identifier into its component words.
func splitCodeToken(token string) []string {
	if !strings.Contains(token, "_") {
		return splitCamelCase(token)
	}

	var words []string
	for _, piece := range strings.Split(token, "_") {
		if piece == "" {
			continue
		}
		words = append(words, splitCamelCase(piece)...)
	}
	return words
}

// splitCamelCase cuts an identifier at case boundaries. An uppercase run
// holds together until the rune that starts the next word, so HTTPServer
// yields HTTP and Server rather than one letter per word.
func splitCamelCase(s string) []string {
	runes := []rune(s)
	words := []string{}

	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		startsWord := unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]))
		if startsWord && i > start {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	if start < len(runes) {
		words = append(words, string(runes[start:]))
	}

	return words
}

// filterStopWords drops keyword tokens.
func filterStopWords(tokens []string) []string {
	var kept []string
	for _, tok := range tokens {
		if programmingStopWords[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}

// normalizeForNgrams reduces text to a bare lowercase letter-and-digit
// stream so trigrams cross token boundaries.
func normalizeForNgrams(text string) string {
	stripped := make([]rune, 0, len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			stripped = append(stripped, r)
		}
	}
	return string(stripped)
}

// extractNgrams slides an n-byte window across text.
func extractNgrams(text string, n int) []string {
	count := len(text) - n + 1
	if count <= 0 {
		return []string{}
	}

	ngrams := make([]string, count)
	for i := range ngrams {
		ngrams[i] = text[i : i+n]
	}
	return ngrams
}

// hashToIndex buckets a term into one of size vector positions.
func hashToIndex(term string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(term))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}

	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static"
}

// Available checks if the embedder is ready (always true until closed).
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

var _ Embedder = (*StaticEmbedder)(nil)
