package slogutil

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"", 0},
		{"invalid", 0},
		{"100", 100},
		{"100B", 100},
		{"100b", 100},
		{"1KB", 1024},
		{"10kb", 10240},
		{"1MB", 1024 * 1024},
		{" 10MB ", 10 * 1024 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"1.5MB", int64(1.5 * 1024 * 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSize(tt.input))
		})
	}
}

func readZstd(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()
	data, err := io.ReadAll(dec)
	require.NoError(t, err)
	return string(data)
}

func TestRotatingFile_NoRotationUnderLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	rf, err := OpenRotatingFile(path, 100, 2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := rf.Write([]byte("hello world\n"))
		require.NoError(t, err)
	}
	require.NoError(t, rf.Close())

	assert.FileExists(t, path)
	assert.NoFileExists(t, path+".1.zst")
}

func TestRotatingFile_RotatesIntoCompressedBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	rf, err := OpenRotatingFile(path, 50, 2)
	require.NoError(t, err)

	lines := []string{"first\n", "second\n", "third\n", "fourth\n"}
	for _, l := range lines {
		_, err := rf.Write([]byte(strings.Repeat("x", 30) + l))
		require.NoError(t, err)
	}
	require.NoError(t, rf.Close())

	live, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(live), "fourth\n"))

	// newest backup first, and only maxBackups kept
	assert.Contains(t, readZstd(t, path+".1.zst"), "third")
	assert.Contains(t, readZstd(t, path+".2.zst"), "second")
	assert.NoFileExists(t, path+".3.zst")
}

func TestRotatingFile_NoBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	rf, err := OpenRotatingFile(path, 10, 0)
	require.NoError(t, err)

	_, err = rf.Write([]byte("0123456789\n"))
	require.NoError(t, err)
	_, err = rf.Write([]byte("abc\n"))
	require.NoError(t, err)
	require.NoError(t, rf.Close())

	live, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc\n", string(live))
	assert.NoFileExists(t, path+".1.zst")
}

func TestNewFileLoggerWithRotation(t *testing.T) {
	dir := t.TempDir()

	logger, closer, err := NewFileLoggerWithRotation(filepath.Join(dir, "a.log"), "human", slog.LevelInfo, "1MB", 3)
	require.NoError(t, err)
	logger.Info("rotating")
	require.NoError(t, closer.Close())
	_, isRotating := closer.(*RotatingFile)
	assert.True(t, isRotating)

	path := filepath.Join(dir, "nested", "b.log")
	logger, closer, err = NewFileLoggerWithRotation(path, "json", slog.LevelInfo, "", 3)
	require.NoError(t, err)
	logger.Info("plain")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("{")))
}
