package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	cerrors "github.com/Anabaai/code-search/internal/errors"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chunks (
	file_path   TEXT    NOT NULL,
	chunk_index INTEGER NOT NULL,
	content     TEXT    NOT NULL,
	line_start  INTEGER NOT NULL,
	line_end    INTEGER NOT NULL,
	mtime       INTEGER NOT NULL,
	vector      BLOB    NOT NULL,
	PRIMARY KEY (file_path, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Meta table keys.
const (
	metaKeySchemaVersion = "schema_version"
	metaKeyDimensions    = "dimensions"
	metaKeyModel         = "model"
)

// Store is the index persistence layer: chunk rows and vectors in
// SQLite, with an HNSW graph kept in memory for retrieval and saved
// alongside the database.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	vectors *VectorIndex
	dir     string
	dims    int
	closed  bool
	dirty   bool
}

// Open opens or creates the index under dir for the given embedding
// dimension and model name. An index written by an incompatible schema
// or dimension is a fatal error; the caller rebuilds.
func Open(ctx context.Context, dir string, dims int, model string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cerrors.StoreError("failed to create index directory", dir, err)
	}

	dbPath := filepath.Join(dir, DatabaseFileName)
	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cerrors.StoreError("failed to open index database", dir, err)
	}

	// Single writer, SQLite locks at the database level anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, cerrors.StoreError("failed to create schema", dir, err)
	}

	s := &Store{
		db:      db,
		vectors: NewVectorIndex(VectorIndexConfig{Dimensions: dims}),
		dir:     dir,
		dims:    dims,
	}

	if err := s.checkMeta(ctx, model); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.loadVectors(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// checkMeta validates schema version and dimensions, writing them on
// first open.
func (s *Store) checkMeta(ctx context.Context, model string) error {
	version, ok, err := s.getMeta(ctx, metaKeySchemaVersion)
	if err != nil {
		return cerrors.StoreError("failed to read index metadata", s.dir, err)
	}

	if !ok {
		for key, value := range map[string]string{
			metaKeySchemaVersion: strconv.Itoa(SchemaVersion),
			metaKeyDimensions:    strconv.Itoa(s.dims),
			metaKeyModel:         model,
		} {
			if _, err := s.db.ExecContext(ctx,
				`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
				return cerrors.StoreError("failed to write index metadata", s.dir, err)
			}
		}
		return nil
	}

	if version != strconv.Itoa(SchemaVersion) {
		return cerrors.New(cerrors.ErrCodeSchemaMismatch,
			fmt.Sprintf("index schema version %s, expected %d", version, SchemaVersion), nil).
			WithDetail("index_path", s.dir).
			WithSuggestion("delete the index directory and reindex")
	}

	dims, _, err := s.getMeta(ctx, metaKeyDimensions)
	if err != nil {
		return cerrors.StoreError("failed to read index metadata", s.dir, err)
	}
	if dims != strconv.Itoa(s.dims) {
		return cerrors.New(cerrors.ErrCodeSchemaMismatch,
			fmt.Sprintf("index built with %s-dimensional vectors, embedder produces %d", dims, s.dims), nil).
			WithDetail("index_path", s.dir).
			WithSuggestion("delete the index directory and reindex")
	}

	return nil
}

func (s *Store) getMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// loadVectors restores the HNSW graph from its file, or rebuilds it
// from the stored vector blobs when the file is missing or stale.
func (s *Store) loadVectors(ctx context.Context) error {
	vectorPath := filepath.Join(s.dir, VectorFileName)
	if _, err := os.Stat(vectorPath); err == nil {
		if err := s.vectors.Load(vectorPath); err == nil {
			return nil
		}
		// Fall through to rebuild; the database is the source of truth.
	}
	return s.rebuildVectors(ctx)
}

// rebuildVectors reconstructs the graph from the chunks table.
func (s *Store) rebuildVectors(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path, chunk_index, vector FROM chunks`)
	if err != nil {
		return cerrors.StoreError("failed to read stored vectors", s.dir, err)
	}
	defer rows.Close()

	var ids []string
	var vectors [][]float32
	for rows.Next() {
		var filePath string
		var index int
		var blob []byte
		if err := rows.Scan(&filePath, &index, &blob); err != nil {
			return cerrors.StoreError("failed to scan stored vector", s.dir, err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return cerrors.CorruptIndex(s.dir, err)
		}
		ids = append(ids, chunkID(filePath, index))
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return cerrors.StoreError("failed to read stored vectors", s.dir, err)
	}

	if err := s.vectors.Rebuild(ids, vectors); err != nil {
		return cerrors.CorruptIndex(s.dir, err)
	}
	s.dirty = len(ids) > 0
	return nil
}

// IndexedMetadata returns the mtime recorded for every indexed file.
func (s *Store) IndexedMetadata(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path, MAX(mtime) FROM chunks GROUP BY file_path`)
	if err != nil {
		return nil, cerrors.StoreError("failed to read indexed files", s.dir, err)
	}
	defer rows.Close()

	meta := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, cerrors.StoreError("failed to scan indexed file", s.dir, err)
		}
		meta[path] = mtime
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.StoreError("failed to read indexed files", s.dir, err)
	}
	return meta, nil
}

// chunkIDsForPath lists the stored chunk IDs for one file.
func (s *Store) chunkIDsForPath(ctx context.Context, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_index FROM chunks WHERE file_path = ?`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var index int
		if err := rows.Scan(&index); err != nil {
			return nil, err
		}
		ids = append(ids, chunkID(path, index))
	}
	return ids, rows.Err()
}

// DeletePaths removes all chunks for the given files.
func (s *Store) DeletePaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cerrors.StoreError("store is closed", s.dir, nil)
	}

	var staleIDs []string
	for _, path := range paths {
		ids, err := s.chunkIDsForPath(ctx, path)
		if err != nil {
			return cerrors.StoreError("failed to list chunks for deletion", s.dir, err)
		}
		staleIDs = append(staleIDs, ids...)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cerrors.StoreError("failed to begin transaction", s.dir, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks WHERE file_path = ?`)
	if err != nil {
		return cerrors.StoreError("failed to prepare delete", s.dir, err)
	}
	defer stmt.Close()

	for _, path := range paths {
		if _, err := stmt.ExecContext(ctx, path); err != nil {
			return cerrors.StoreError(fmt.Sprintf("failed to delete chunks for %s", path), s.dir, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cerrors.StoreError("failed to commit deletion", s.dir, err)
	}

	s.vectors.Delete(staleIDs)
	s.dirty = true
	return nil
}

// Upsert replaces all chunks for one file in a single transaction:
// delete the old rows, insert the new ones. A crash mid-upsert leaves
// either the old or the new chunks, never a mix.
func (s *Store) Upsert(ctx context.Context, path string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cerrors.StoreError("store is closed", s.dir, nil)
	}

	for _, r := range records {
		if len(r.Vector) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(r.Vector)}
		}
	}

	staleIDs, err := s.chunkIDsForPath(ctx, path)
	if err != nil {
		return cerrors.StoreError("failed to list existing chunks", s.dir, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cerrors.StoreError("failed to begin transaction", s.dir, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, path); err != nil {
		return cerrors.StoreError(fmt.Sprintf("failed to delete old chunks for %s", path), s.dir, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (file_path, chunk_index, content, line_start, line_end, mtime, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return cerrors.StoreError("failed to prepare insert", s.dir, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.FilePath, r.ChunkIndex, r.Content, r.LineStart, r.LineEnd, r.Mtime,
			encodeVector(r.Vector)); err != nil {
			return cerrors.StoreError(fmt.Sprintf("failed to insert chunk %s", r.ID()), s.dir, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cerrors.StoreError("failed to commit upsert", s.dir, err)
	}

	s.vectors.Delete(staleIDs)

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		ids[i] = r.ID()
		vectors[i] = r.Vector
	}
	if err := s.vectors.Add(ids, vectors); err != nil {
		return cerrors.StoreError("failed to index vectors", s.dir, err)
	}

	s.dirty = true
	return nil
}

// Search returns up to k nearest chunks to the query vector, scored as
// 1 minus cosine distance, clamped to [0, 1], in descending score order.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return []ScoredChunk{}, nil
	}

	neighbors, err := s.vectors.Search(query, k)
	if err != nil {
		return nil, cerrors.StoreError("vector search failed", s.dir, err)
	}
	if len(neighbors) == 0 {
		return []ScoredChunk{}, nil
	}

	byID := make(map[string]float32, len(neighbors))
	placeholders := make([]string, 0, len(neighbors))
	args := make([]any, 0, len(neighbors)*2)
	for _, n := range neighbors {
		path, index, ok := splitChunkID(n.ID)
		if !ok {
			continue
		}
		byID[n.ID] = n.Distance
		placeholders = append(placeholders, "(file_path = ? AND chunk_index = ?)")
		args = append(args, path, index)
	}
	if len(placeholders) == 0 {
		return []ScoredChunk{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path, chunk_index, content, line_start, line_end, mtime
		 FROM chunks WHERE `+strings.Join(placeholders, " OR "), args...)
	if err != nil {
		return nil, cerrors.StoreError("failed to fetch result chunks", s.dir, err)
	}
	defer rows.Close()

	results := make([]ScoredChunk, 0, len(neighbors))
	for rows.Next() {
		var c ScoredChunk
		if err := rows.Scan(&c.FilePath, &c.ChunkIndex, &c.Content, &c.LineStart, &c.LineEnd, &c.Mtime); err != nil {
			return nil, cerrors.StoreError("failed to scan result chunk", s.dir, err)
		}
		distance, ok := byID[chunkID(c.FilePath, c.ChunkIndex)]
		if !ok {
			continue
		}
		c.Distance = distance
		c.Score = clampScore(1.0 - float64(distance))
		results = append(results, c)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if err := rows.Err(); err != nil {
		return nil, cerrors.StoreError("failed to fetch result chunks", s.dir, err)
	}

	return results, nil
}

// splitChunkID reverses chunkID.
func splitChunkID(id string) (string, int, bool) {
	sep := strings.LastIndex(id, "#")
	if sep < 0 {
		return "", 0, false
	}
	index, err := strconv.Atoi(id[sep+1:])
	if err != nil {
		return "", 0, false
	}
	return id[:sep], index, true
}

// clampScore clamps a score to [0, 1].
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Stats reports index contents and on-disk size.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT file_path), COUNT(*) FROM chunks`).
		Scan(&stats.Files, &stats.Chunks); err != nil {
		return nil, cerrors.StoreError("failed to read index stats", s.dir, err)
	}

	for _, name := range []string{DatabaseFileName, VectorFileName, VectorFileName + ".meta"} {
		if info, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			stats.SizeBytes += info.Size()
		}
	}

	return &stats, nil
}

// Model returns the embedding model name the index was built with.
func (s *Store) Model(ctx context.Context) (string, error) {
	model, _, err := s.getMeta(ctx, metaKeyModel)
	if err != nil {
		return "", cerrors.StoreError("failed to read index metadata", s.dir, err)
	}
	return model, nil
}

// Cleanup reclaims space: VACUUM the database and rebuild the vector
// graph to drop lazily deleted nodes.
func (s *Store) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cerrors.StoreError("store is closed", s.dir, nil)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return cerrors.StoreError("vacuum failed", s.dir, err)
	}

	if s.vectors.Orphans() > 0 {
		if err := s.rebuildVectors(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Save persists the vector graph when it has changed since open.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.dirty {
		return nil
	}

	if err := s.vectors.Save(filepath.Join(s.dir, VectorFileName)); err != nil {
		return cerrors.StoreError("failed to save vector index", s.dir, err)
	}
	s.dirty = false
	return nil
}

// Close saves pending vector changes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	var saveErr error
	if s.dirty {
		saveErr = s.vectors.Save(filepath.Join(s.dir, VectorFileName))
	}
	s.closed = true
	s.mu.Unlock()

	s.vectors.Close()
	if err := s.db.Close(); err != nil {
		return cerrors.StoreError("failed to close index database", s.dir, err)
	}
	if saveErr != nil {
		return cerrors.StoreError("failed to save vector index", s.dir, saveErr)
	}
	return nil
}
