package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{ up bool }

func (f fakeEmbedder) Available(context.Context) bool { return f.up }
func (f fakeEmbedder) ModelName() string              { return "nomic-embed-text" }
func (f fakeEmbedder) Dimensions() int                { return 768 }

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONStatusByName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "pool_dir", Status: StatusWarn})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"WARN"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name   string
		result CheckResult
		want   bool
	}{
		{"required pass", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail", CheckResult{Status: StatusFail}, false},
		{"required warn", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.IsCritical())
		})
	}
}

func TestSummaryStatus(t *testing.T) {
	c := New()
	assert.Equal(t, "ready", c.SummaryStatus([]CheckResult{{Status: StatusPass}}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{{Status: StatusPass}, {Status: StatusWarn}}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{{Status: StatusFail}}))
	assert.Equal(t, "failed", c.SummaryStatus([]CheckResult{{Status: StatusWarn}, {Status: StatusFail, Required: true}}))
}

func TestRunAll_HealthyWorkspace(t *testing.T) {
	// Given: a writable data dir, an existing pool and a reachable embedder
	root := t.TempDir()
	pool := filepath.Join(root, "pool")
	require.NoError(t, os.MkdirAll(pool, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pool, "a.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pool, ".hidden"), []byte("x"), 0o644))

	// When: running every check
	c := New()
	results := c.RunAll(context.Background(), Targets{
		DataDir:    filepath.Join(root, "data"),
		MessagesDB: filepath.Join(root, "db", "messages.db"),
		PoolDir:    pool,
		Embedder:   fakeEmbedder{up: true},
	})

	// Then: every check ran and none failed critically
	byName := make(map[string]CheckResult)
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"data_dir", "disk_space", "messages_dir", "file_descriptors", "pool_dir", "embedder"} {
		assert.Contains(t, byName, name)
	}
	assert.False(t, c.HasCriticalFailures(results))
	assert.Equal(t, StatusPass, byName["data_dir"].Status)
	assert.DirExists(t, filepath.Join(root, "data"))
	assert.Equal(t, "1 top-level files", byName["pool_dir"].Message)
	assert.Equal(t, "nomic-embed-text (768 dims)", byName["embedder"].Message)
}

func TestCheckPool_MissingIsWarning(t *testing.T) {
	r := New().CheckPool(filepath.Join(t.TempDir(), "nope"))

	assert.Equal(t, StatusWarn, r.Status)
	assert.False(t, r.IsCritical())
}

func TestCheckEmbedder_UnreachableIsWarning(t *testing.T) {
	r := New().CheckEmbedder(context.Background(), fakeEmbedder{})

	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Message, "unreachable")
}

func TestCheckWritable_FileInTheWay(t *testing.T) {
	// Given: a regular file where the directory should be
	root := t.TempDir()
	blocker := filepath.Join(root, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// When: checking it as a directory
	r := New().CheckWritable("data_dir", blocker)

	// Then: the required check fails
	assert.True(t, r.IsCritical())
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	c := New(WithOutput(&buf), WithVerbose(true))

	c.PrintResults([]CheckResult{
		{Name: "data_dir", Status: StatusPass, Message: "OK", Details: "/tmp/data", Required: true},
		{Name: "embedder", Status: StatusWarn, Message: "offline"},
	})

	out := buf.String()
	assert.Contains(t, out, "[PASS] data_dir: OK")
	assert.Contains(t, out, "      /tmp/data")
	assert.Contains(t, out, "Status: READY_WITH_WARNINGS")
	assert.Contains(t, out, "1 warning(s):\n  - embedder: offline")
	assert.NotContains(t, out, "error(s)")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "100.0 MB", formatBytes(MinDiskSpaceBytes))
	assert.Equal(t, "1.0 GB", formatBytes(LowDiskSpaceBytes))
	assert.Equal(t, "2048.0 TB", formatBytes(2<<50))
}

func TestRequiredFileDescriptors(t *testing.T) {
	assert.Equal(t, uint64(fdBaseline+fdPerIndex), RequiredFileDescriptors(0))
	assert.Equal(t, uint64(fdBaseline+5*fdPerIndex), RequiredFileDescriptors(5))
	assert.Greater(t, RequiredFileDescriptors(100), RequiredFileDescriptors(5))
}

func TestCheckDiskSpace_ReportsConversationUsage(t *testing.T) {
	// Given: a data dir holding 2 KB of artifacts
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "u", "c"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u", "c", "chunks.json"), make([]byte, 2048), 0o644))

	// When: checking space
	r := New().CheckDiskSpace(dir)

	// Then: usage is part of the message
	assert.Equal(t, "disk_space", r.Name)
	assert.Contains(t, r.Message, "conversations use 2.0 KB")
}

func TestCheckDiskSpace_MissingDirFails(t *testing.T) {
	r := New().CheckDiskSpace(filepath.Join(t.TempDir(), "absent"))

	assert.True(t, r.IsCritical())
}
