package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndexConfig configures the HNSW graph.
type VectorIndexConfig struct {
	// Dimensions is the vector dimension.
	Dimensions int
	// M is the max connections per layer. 0 means 16.
	M int
	// EfSearch is the query-time search width. 0 means 20.
	EfSearch int
}

// VectorIndex is an in-memory HNSW graph over chunk IDs, persisted as
// a graph file plus a gob sidecar for the ID mappings.
type VectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// vectorIndexMeta is the persisted sidecar.
type vectorIndexMeta struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorIndexConfig
}

// NewVectorIndex creates an empty vector index.
func NewVectorIndex(cfg VectorIndexConfig) *VectorIndex {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &VectorIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add inserts vectors keyed by chunk ID. An existing ID is replaced.
// Replacement is lazy: the old node is orphaned in the graph rather
// than deleted, since coder/hnsw misbehaves when the last node is
// removed. Rebuild drops orphans.
func (x *VectorIndex) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, v := range vectors {
		if len(v) != x.config.Dimensions {
			return ErrDimensionMismatch{Expected: x.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if existingKey, exists := x.idMap[id]; exists {
			delete(x.keyMap, existingKey)
			delete(x.idMap, id)
		}

		key := x.nextKey
		x.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])

		x.graph.Add(hnsw.MakeNode(key, vec))
		x.idMap[id] = key
		x.keyMap[key] = id
	}

	return nil
}

// neighbor is one nearest-neighbor hit.
type neighbor struct {
	ID       string
	Distance float32
}

// Search returns up to k nearest chunk IDs with cosine distances.
// Orphaned nodes are filtered, so fewer than k hits can come back even
// from a larger graph.
func (x *VectorIndex) Search(query []float32, k int) ([]neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, fmt.Errorf("vector index is closed")
	}

	if len(query) != x.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: x.config.Dimensions, Got: len(query)}
	}

	if x.graph.Len() == 0 {
		return []neighbor{}, nil
	}

	nodes := x.graph.Search(query, k)

	results := make([]neighbor, 0, len(nodes))
	for _, node := range nodes {
		id, ok := x.keyMap[node.Key]
		if !ok {
			continue
		}
		results = append(results, neighbor{
			ID:       id,
			Distance: x.graph.Distance(query, node.Value),
		})
	}

	return results, nil
}

// Delete removes chunk IDs from the index. Lazy: graph nodes are
// orphaned, not removed.
func (x *VectorIndex) Delete(ids []string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return
	}

	for _, id := range ids {
		if key, exists := x.idMap[id]; exists {
			delete(x.keyMap, key)
			delete(x.idMap, id)
		}
	}
}

// Count returns the number of live vectors.
func (x *VectorIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return 0
	}
	return len(x.idMap)
}

// Orphans returns the number of lazily deleted graph nodes.
func (x *VectorIndex) Orphans() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return 0
	}
	return x.graph.Len() - len(x.idMap)
}

// Rebuild replaces the graph contents with the given vectors, dropping
// accumulated orphans.
func (x *VectorIndex) Rebuild(ids []string, vectors [][]float32) error {
	x.mu.Lock()

	if x.closed {
		x.mu.Unlock()
		return fmt.Errorf("vector index is closed")
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = x.config.M
	graph.EfSearch = x.config.EfSearch
	graph.Ml = 0.25

	x.graph = graph
	x.idMap = make(map[string]uint64, len(ids))
	x.keyMap = make(map[uint64]string, len(ids))
	x.nextKey = 0
	x.mu.Unlock()

	return x.Add(ids, vectors)
}

// Save persists the graph and sidecar atomically: write to a temp file,
// then rename over the target.
func (x *VectorIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create vector file: %w", err)
	}

	if err := x.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close vector file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename vector file: %w", err)
	}

	return x.saveMeta(path + ".meta")
}

func (x *VectorIndex) saveMeta(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create sidecar file: %w", err)
	}

	meta := vectorIndexMeta{
		IDMap:   x.idMap,
		NextKey: x.nextKey,
		Config:  x.config,
	}

	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close sidecar file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load restores the graph and sidecar written by Save.
func (x *VectorIndex) Load(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}

	if err := x.loadMeta(path + ".meta"); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open vector file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := x.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	return nil
}

func (x *VectorIndex) loadMeta(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open sidecar file: %w", err)
	}
	defer file.Close()

	var meta vectorIndexMeta
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("failed to decode sidecar: %w", err)
	}

	if meta.Config.Dimensions != x.config.Dimensions {
		return ErrDimensionMismatch{Expected: x.config.Dimensions, Got: meta.Config.Dimensions}
	}

	x.idMap = meta.IDMap
	x.keyMap = make(map[uint64]string, len(meta.IDMap))
	x.nextKey = meta.NextKey
	for id, key := range x.idMap {
		x.keyMap[key] = id
	}

	return nil
}

// Close releases the graph.
func (x *VectorIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	x.graph = nil
	return nil
}
