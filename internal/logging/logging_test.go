package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewConsole(t *testing.T) {
	log, err := New(DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Info("hello")
}

func TestNewInvalidLevel(t *testing.T) {
	opts := DefaultOptions()
	opts.Level = "loud"
	_, err := New(opts)
	assert.Error(t, err)
}

func TestNewFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.log")
	opts := DefaultOptions()
	opts.FilePath = path

	log, err := New(opts)
	require.NoError(t, err)
	log.Info("cycle complete", zap.String("environment", "staging"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"cycle complete"`)
	assert.Contains(t, string(data), `"environment":"staging"`)
}

func TestFileLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.log")
	opts := DefaultOptions()
	opts.FilePath = path
	opts.Level = "warn"

	log, err := New(opts)
	require.NoError(t, err)
	log.Info("quiet")
	log.Warn("noisy")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "noisy")
}
