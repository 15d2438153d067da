package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaybeCreateAnchor(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)

	// No records yet: nothing to anchor.
	created, err := MaybeCreateAnchor(l)
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, l.Log(attemptEntry("rb-1", "success")))

	created, err = MaybeCreateAnchor(l)
	require.NoError(t, err)
	assert.True(t, created)

	anchors, err := LoadAnchors(dir)
	require.NoError(t, err)
	require.Len(t, anchors, 1)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), anchors[0].Date)
	assert.Equal(t, 1, anchors[0].RecordCount)
	assert.NotEmpty(t, anchors[0].ChainHash)

	// Unchanged chain tail: no duplicate anchor.
	created, err = MaybeCreateAnchor(l)
	require.NoError(t, err)
	assert.False(t, created)

	// The chain moved: same-day anchor is replaced, not appended.
	require.NoError(t, l.Log(attemptEntry("rb-2", "success")))
	created, err = MaybeCreateAnchor(l)
	require.NoError(t, err)
	assert.True(t, created)

	anchors, err = LoadAnchors(dir)
	require.NoError(t, err)
	require.Len(t, anchors, 1)
	assert.Equal(t, 2, anchors[0].RecordCount)
}

func TestLoadAnchorsMissingFile(t *testing.T) {
	anchors, err := LoadAnchors(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, anchors)
}
