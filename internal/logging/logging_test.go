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
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "level %q", tt.input)
	}
}

func TestSetupWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shelfsearch.log")

	logger, cleanup, err := Setup(Config{
		Level:    "debug",
		FilePath: path,
	})
	require.NoError(t, err)

	logger.Info("query completed", slog.String("request_id", "r-1"), slog.Int("total", 42))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "query completed", entry["msg"])
	assert.Equal(t, "r-1", entry["request_id"])
	assert.EqualValues(t, 42, entry["total"])
}

func TestSetupLevelFiltersBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shelfsearch.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shelfsearch.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer w.Close()

	// Force the size over 1 MB to trigger a rotation.
	chunk := strings.Repeat("x", 64*1024)
	for i := 0; i < 20; i++ {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file should exist")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(1024*1024)+int64(len(chunk)))
}

func TestRotatingWriterPrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shelfsearch.log")

	// Pre-seed rotations at and beyond the retention bound.
	for _, suffix := range []string{".1", ".2", ".3"} {
		require.NoError(t, os.WriteFile(path+suffix, []byte("old"), 0o644))
	}

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer w.Close()

	chunk := strings.Repeat("x", 64*1024)
	for i := 0; i < 20; i++ {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}

	// The oldest file fell off the end; nothing beyond .3 survives.
	_, err = os.Stat(path + ".4")
	assert.True(t, os.IsNotExist(err))
}
