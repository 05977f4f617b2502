package logging

import (
	"fmt"
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
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestDefaultLogDir_HonorsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONVORAG_LOG_DIR", dir)

	assert.Equal(t, dir, DefaultLogDir())
	assert.Equal(t, filepath.Join(dir, "convorag.log"), DefaultLogPath())
}

func TestSetup_WritesJSONAtLevel(t *testing.T) {
	// Given: a file logger at warn level
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	require.NoError(t, err)

	// When: logging below and at the level
	logger.Info("hidden")
	logger.Warn("shown", slog.String("conversation_id", "c1"))
	cleanup()

	// Then: only the warning is written, as JSON
	entries, err := Tail(path, 0, "debug")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0].Message)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "c1", entries[0].Attrs["conversation_id"])
}

func TestSetupServerMode_FileOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONVORAG_LOG_DIR", dir)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cleanup, err := SetupServerMode("info")
	require.NoError(t, err)
	slog.Info("hello from server")
	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, "convorag.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from server")
}

func TestRotatingWriter_Rotates(t *testing.T) {
	// Given: a 1MB writer keeping 2 backups
	path := filepath.Join(t.TempDir(), "r.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// When: writing a bit over 3MB
	chunk := []byte(strings.Repeat("x", 512*1024))
	for i := 0; i < 7; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Then: the backups exist and the oldest beyond maxFiles does not
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "c.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("x"))
	assert.Error(t, err)
	assert.NoError(t, w.Close())
}

func TestTail_FiltersAndLimits(t *testing.T) {
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, fmt.Sprintf(`{"time":"2026-01-02T03:04:05Z","level":"INFO","msg":"m%d"}`, i))
	}
	lines = append(lines, "not json")
	lines = append(lines, `{"time":"2026-01-02T03:04:06Z","level":"ERROR","msg":"boom"}`)

	entries, err := tailReader(strings.NewReader(strings.Join(lines, "\n")), 3, slog.LevelInfo)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "m3", entries[0].Message)
	assert.Equal(t, "boom", entries[2].Message)

	errs, err := tailReader(strings.NewReader(strings.Join(lines, "\n")), 0, slog.LevelError)
	require.NoError(t, err)
	require.Len(t, errs, 1)
}

func TestFormat_Plain(t *testing.T) {
	e := Entry{
		Time:    "2026-01-02T03:04:05.123Z",
		Level:   "WARN",
		Message: "index reset",
		Attrs:   map[string]any{"user_id": "u1", "dims": float64(8)},
	}
	assert.Equal(t, "03:04:05 WARN  index reset dims=8 user_id=u1", Format(e, false))
}

func TestFindLogFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONVORAG_LOG_DIR", dir)

	_, err := FindLogFile("")
	assert.Error(t, err)

	_, err = FindLogFile(filepath.Join(dir, "missing.log"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(DefaultLogPath(), []byte("{}\n"), 0o644))
	got, err := FindLogFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLogPath(), got)
}
