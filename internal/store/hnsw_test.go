package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 4

func unitVector(axis int) []float32 {
	v := make([]float32, testDims)
	v[axis] = 1
	return v
}

func newTestIndex(t *testing.T) *VectorIndex {
	t.Helper()
	x := NewVectorIndex(VectorIndexConfig{Dimensions: testDims})
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestVectorIndex_AddSearch(t *testing.T) {
	// Given: three orthogonal vectors
	x := newTestIndex(t)
	require.NoError(t, x.Add(
		[]string{"a.go#0", "b.go#0", "c.go#0"},
		[][]float32{unitVector(0), unitVector(1), unitVector(2)}))

	// When: searching near the first axis
	hits, err := x.Search(unitVector(0), 1)
	require.NoError(t, err)

	// Then: the matching vector is the nearest hit
	require.Len(t, hits, 1)
	assert.Equal(t, "a.go#0", hits[0].ID)
	assert.InDelta(t, 0.0, hits[0].Distance, 0.0001)
}

func TestVectorIndex_Add_RejectsWrongDimension(t *testing.T) {
	x := newTestIndex(t)

	err := x.Add([]string{"a.go#0"}, [][]float32{{1, 0}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestVectorIndex_Add_ReplacementOrphansOldNode(t *testing.T) {
	x := newTestIndex(t)
	require.NoError(t, x.Add([]string{"a.go#0"}, [][]float32{unitVector(0)}))
	require.NoError(t, x.Add([]string{"a.go#0"}, [][]float32{unitVector(1)}))

	assert.Equal(t, 1, x.Count())
	assert.Equal(t, 1, x.Orphans(), "the replaced node stays in the graph")

	hits, err := x.Search(unitVector(1), 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "a.go#0", hits[0].ID)
	assert.InDelta(t, 0.0, hits[0].Distance, 0.0001, "search resolves to the replacement vector")
}

func TestVectorIndex_Delete_IsLazy(t *testing.T) {
	x := newTestIndex(t)
	require.NoError(t, x.Add(
		[]string{"a.go#0", "b.go#0"},
		[][]float32{unitVector(0), unitVector(1)}))

	x.Delete([]string{"a.go#0"})

	assert.Equal(t, 1, x.Count())
	assert.Equal(t, 1, x.Orphans())

	hits, err := x.Search(unitVector(0), 2)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "a.go#0", h.ID, "deleted IDs never surface in results")
	}
}

func TestVectorIndex_Rebuild_DropsOrphans(t *testing.T) {
	x := newTestIndex(t)
	require.NoError(t, x.Add(
		[]string{"a.go#0", "b.go#0"},
		[][]float32{unitVector(0), unitVector(1)}))
	x.Delete([]string{"a.go#0"})
	require.Equal(t, 1, x.Orphans())

	require.NoError(t, x.Rebuild([]string{"b.go#0"}, [][]float32{unitVector(1)}))

	assert.Equal(t, 1, x.Count())
	assert.Equal(t, 0, x.Orphans())
}

func TestVectorIndex_SaveLoad(t *testing.T) {
	// Given: a populated index saved to disk
	path := filepath.Join(t.TempDir(), VectorFileName)
	x := newTestIndex(t)
	require.NoError(t, x.Add(
		[]string{"a.go#0", "b.go#0"},
		[][]float32{unitVector(0), unitVector(1)}))
	require.NoError(t, x.Save(path))
	assert.FileExists(t, path)
	assert.FileExists(t, path+".meta")

	// When: a fresh index loads the files
	loaded := newTestIndex(t)
	require.NoError(t, loaded.Load(path))

	// Then: contents and lookups survive the round trip
	assert.Equal(t, 2, loaded.Count())
	hits, err := loaded.Search(unitVector(1), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b.go#0", hits[0].ID)
}

func TestVectorIndex_Load_RejectsWrongDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), VectorFileName)
	x := newTestIndex(t)
	require.NoError(t, x.Add([]string{"a.go#0"}, [][]float32{unitVector(0)}))
	require.NoError(t, x.Save(path))

	other := NewVectorIndex(VectorIndexConfig{Dimensions: testDims * 2})
	defer func() { _ = other.Close() }()

	err := other.Load(path)
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestVectorIndex_Search_EmptyGraph(t *testing.T) {
	x := newTestIndex(t)

	hits, err := x.Search(unitVector(0), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorIndex_Closed(t *testing.T) {
	x := NewVectorIndex(VectorIndexConfig{Dimensions: testDims})
	require.NoError(t, x.Close())
	require.NoError(t, x.Close(), "double close is safe")

	_, err := x.Search(unitVector(0), 1)
	assert.Error(t, err)
	assert.Error(t, x.Add([]string{"a.go#0"}, [][]float32{unitVector(0)}))
	assert.Equal(t, 0, x.Count())
}
