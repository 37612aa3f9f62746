package logging

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxFiles)
	assert.True(t, cfg.WriteToStderr)
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()
	assert.Equal(t, "debug", cfg.Level)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, LevelFromString(in))
	}
}

func TestSetup_WritesJSONLinesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docsearch.log")

	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("indexed collection", "collection", "gemini", "chunks", 42)
	cleanup()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	line := scanner.Text()
	assert.Contains(t, line, `"msg":"indexed collection"`)
	assert.Contains(t, line, `"collection":"gemini"`)
}

func TestRotatingWriter_RotatesPastMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	w, err := newRotatingWriter(path, 0, 2)
	require.NoError(t, err)
	require.Equal(t, int64(10*1024*1024), w.maxBytes)

	w, err = newRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	chunk := make([]byte, 1024*1024+1)
	_, err = w.Write(chunk)
	require.NoError(t, err)
	_, err = w.Write(chunk)
	require.NoError(t, err)

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "expected a rotated file to exist")
}
