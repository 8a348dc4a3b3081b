package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestServerConfig_SilencesStderr(t *testing.T) {
	assert.True(t, DefaultConfig().WriteToStderr)
	assert.False(t, ServerConfig().WriteToStderr, "server mode must keep stdio clean")
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: file-only logging
	path := filepath.Join(t.TempDir(), "test.log")
	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	require.NoError(t, err)

	// When: a structured record is written
	logger.Info("index updated", slog.Int("files", 3))
	cleanup()

	// Then: the file holds one JSON line with the attributes
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &record))
	assert.Equal(t, "index updated", record["msg"])
	assert.EqualValues(t, 3, record["files"])
}

func TestSetup_LevelFiltersRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestRotatingWriter_RotatesAtSizeLimit(t *testing.T) {
	// Given: a writer with a tiny size limit
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	w, err := NewRotatingWriter(path, 0, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// When: two writes both exceed it
	_, err = w.Write([]byte("first entry\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second entry\n"))
	require.NoError(t, err)

	// Then: the first entry moved to the .1 file
	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Contains(t, string(rotated), "first entry")

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(current), "second entry")
}

func TestRotatingWriter_KeepsAtMostMaxFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	w, err := NewRotatingWriter(path, 0, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	for i := 0; i < 6; i++ {
		_, err = w.Write([]byte("entry\n"))
		require.NoError(t, err)
	}

	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestNewRotatingWriter_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "app.log")

	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	assert.FileExists(t, path)
}
