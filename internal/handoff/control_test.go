package handoff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl", "grist.ctl")

	c, err := OpenOrCreate(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), c.GetGeneration())
	assert.Equal(t, "", c.GetArenaPath())

	require.NoError(t, c.SetArena("/tmp/grist.arena", 8192, 7))
	assert.Equal(t, uint64(7), c.GetGeneration())
	assert.Equal(t, "/tmp/grist.arena", c.GetArenaPath())
	require.NoError(t, c.Close())

	// Reopen: the mapping is shared, so state persists in the file.
	c2, err := OpenOrCreate(path)
	require.NoError(t, err)
	defer func() { _ = c2.Close() }()
	assert.Equal(t, uint64(7), c2.GetGeneration())
	assert.Equal(t, "/tmp/grist.arena", c2.GetArenaPath())
}

func TestControllerRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.ctl")
	junk := make([]byte, ControlSize)
	junk[0] = 0xff
	require.NoError(t, os.WriteFile(path, junk, 0o644))

	_, err := OpenOrCreate(path)
	assert.ErrorContains(t, err, "invalid magic")
}

func TestControllerRejectsLongPath(t *testing.T) {
	c, err := OpenOrCreate(filepath.Join(t.TempDir(), "grist.ctl"))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorContains(t, c.SetArena(string(long), 1, 1), "path too long")
}
