package vecindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 8

func buildFixture(t *testing.T, path string, docs int) {
	t.Helper()
	ix, err := Open(path, testDims)
	require.NoError(t, err)
	defer ix.Close()

	for i := 0; i < docs; i++ {
		emb := make([]float32, testDims)
		emb[i%testDims] = 1.0
		err := ix.Add(context.Background(), string(rune('a'+i)), "daily forecast", emb)
		require.NoError(t, err)
	}
}

func TestOpenCreatesArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.db")
	ix, err := Open(path, testDims)
	require.NoError(t, err)
	defer ix.Close()

	count, err := ix.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.FileExists(t, path)
}

func TestOpenRejectsBadDimensions(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.db"), 0)
	assert.Error(t, err)
}

func TestAddAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.db")
	buildFixture(t, path, 3)

	ix, err := Open(path, testDims)
	require.NoError(t, err)
	defer ix.Close()

	count, err := ix.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAddRejectsWrongWidth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.db")
	ix, err := Open(path, testDims)
	require.NoError(t, err)
	defer ix.Close()

	err = ix.Add(context.Background(), "doc", "t", make([]float32, testDims+1))
	assert.Error(t, err)
}

func TestVerifyHealthyArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.db")
	buildFixture(t, path, 2)

	assert.NoError(t, Verify(context.Background(), path, testDims))
}

func TestVerifyMissingArtifact(t *testing.T) {
	err := Verify(context.Background(), filepath.Join(t.TempDir(), "absent.db"), testDims)
	assert.Error(t, err)
}

func TestVerifyEmptyArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.db")
	ix, err := Open(path, testDims)
	require.NoError(t, err)
	ix.Close()

	err = Verify(context.Background(), path, testDims)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no vectors")
}

func TestVerifyCorruptedArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.db")
	buildFixture(t, path, 2)

	// Overwrite the header the way the corruption scenario does.
	require.NoError(t, os.WriteFile(path, []byte("CORRUPTED_INDEX_ARTIFACT"), 0o644))

	err := Verify(context.Background(), path, testDims)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a sqlite artifact")
}
