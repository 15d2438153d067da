package precheck

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climacast/recoverd/internal/backup"
	"github.com/climacast/recoverd/internal/vecindex"
)

func seedStore(t *testing.T) *backup.Store {
	t.Helper()
	dir := t.TempDir()

	config := map[string]string{"release": "v2.3.0"}
	rel := &backup.Release{
		Tag:             "v2.3.0",
		Image:           "climacast/forecast:v2.3.0",
		Replicas:        3,
		Config:          config,
		ConfigHash:      backup.ConfigHash(config),
		IndexSnapshot:   "indexes/v2.3.0.db",
		IndexDimensions: 8,
		CreatedAt:       "2026-08-20T11:30:00Z",
	}
	require.NoError(t, backup.WriteRelease(dir, "20260820T1130Z-v2.3.0.json", rel))
	require.NoError(t, backup.WritePointer(dir, "20260820T1130Z-v2.3.0.json"))

	path := filepath.Join(dir, "indexes", "v2.3.0.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	ix, err := vecindex.Open(path, rel.IndexDimensions)
	require.NoError(t, err)
	defer ix.Close()
	emb := make([]float32, rel.IndexDimensions)
	emb[0] = 1.0
	require.NoError(t, ix.Add(context.Background(), "doc-1", "hourly forecast", emb))

	return backup.NewStore(dir)
}

func TestRunnerAggregates(t *testing.T) {
	r := NewRunner()
	r.Add(CustomCheck{CheckName: "a", Fn: func(context.Context) CheckResult {
		return CheckResult{Name: "a", Passed: true, Message: "OK"}
	}})
	r.Add(CustomCheck{CheckName: "b", Fn: func(context.Context) CheckResult {
		return CheckResult{Name: "b", Passed: false, Message: "broken"}
	}})

	result := r.Run(context.Background())
	assert.False(t, result.AllPassed)
	require.Len(t, result.Results, 2)
	assert.Equal(t, []string{"a", "b"}, r.Checks())
}

func TestRunnerAllPassed(t *testing.T) {
	r := NewRunner()
	r.Add(WebhookCheck{URL: "https://hooks.climacast.io/T0/B0/tok"})

	result := r.Run(context.Background())
	assert.True(t, result.AllPassed)
}

func TestDirWritableCheck(t *testing.T) {
	c := DirWritableCheck{Desc: "locks", Dir: filepath.Join(t.TempDir(), "locks")}
	res := c.Run(context.Background())
	assert.True(t, res.Passed)

	// Probe file must not be left behind.
	entries, err := os.ReadDir(c.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDirWritableCheckReadOnly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.MkdirAll(dir, 0o555))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	res := DirWritableCheck{Desc: "reports", Dir: dir}.Run(context.Background())
	assert.False(t, res.Passed)
}

func TestBackupStoreCheckVerified(t *testing.T) {
	store := seedStore(t)
	res := BackupStoreCheck{Store: store}.Run(context.Background())
	assert.True(t, res.Passed)
	assert.Contains(t, res.Message, "v2.3.0")
}

func TestBackupStoreCheckEmpty(t *testing.T) {
	store := backup.NewStore(t.TempDir())
	res := BackupStoreCheck{Store: store}.Run(context.Background())
	assert.False(t, res.Passed)
}

func TestClusterCheck(t *testing.T) {
	ok := ClusterCheck{Probe: func(context.Context) error { return nil }}
	assert.True(t, ok.Run(context.Background()).Passed)

	down := ClusterCheck{Probe: func(context.Context) error { return errors.New("connection refused") }}
	res := down.Run(context.Background())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, "connection refused")

	unset := ClusterCheck{}
	assert.False(t, unset.Run(context.Background()).Passed)
}

func TestWebhookCheckUnset(t *testing.T) {
	res := WebhookCheck{}.Run(context.Background())
	assert.False(t, res.Passed)
}

func TestFormatRunResult(t *testing.T) {
	result := RunResult{
		AllPassed: false,
		Results: []CheckResult{
			{Name: "cluster:reachable", Passed: true, Message: "OK"},
			{Name: "backup:last-known-good", Passed: false, Message: "no release"},
		},
		Duration: "12ms",
	}
	out := FormatRunResult(result)
	assert.Contains(t, out, "[PASS] cluster:reachable")
	assert.Contains(t, out, "[FAIL] backup:last-known-good")
	assert.Contains(t, out, "SOME FAILED")
}
