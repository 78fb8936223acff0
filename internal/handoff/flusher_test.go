package handoff

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grist/api"
)

func TestFlusherPublishFlushNow(t *testing.T) {
	dir := t.TempDir()
	arenaPath := filepath.Join(dir, "test.arena")
	require.NoError(t, CreateArena(arenaPath, 64*1024))

	ctrl, err := OpenOrCreate(filepath.Join(dir, "grist.ctl"))
	require.NoError(t, err)
	defer func() { _ = ctrl.Close() }()

	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<scheme>://x")
	g.Add("<scheme>", "http")

	flusher := NewFlusher(arenaPath, ctrl)
	require.NoError(t, flusher.Publish(g))
	require.NoError(t, flusher.FlushNow())

	payload, seq, err := ReadActive(arenaPath)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
	assert.Contains(t, string(payload), `"<scheme>"`)

	assert.Equal(t, uint64(1), ctrl.GetGeneration())
	assert.Equal(t, arenaPath, ctrl.GetArenaPath())
}

func TestFlusherCoalesce(t *testing.T) {
	arenaPath := filepath.Join(t.TempDir(), "test.arena")
	require.NoError(t, CreateArena(arenaPath, 1024))

	flusher := NewFlusher(arenaPath, nil)
	flusher.Start(50 * time.Millisecond)

	// Fire 10 rapid publishes (should coalesce into ~1-2 flushes)
	for i := 0; i < 10; i++ {
		flusher.SetPayload([]byte("payload"))
	}

	// Wait for at least one tick to fire
	time.Sleep(80 * time.Millisecond)

	_, seq, err := ReadActive(arenaPath)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq, "10 rapid publishes should coalesce into 1 flush")

	require.NoError(t, flusher.Close())
}

func TestFlusherCloseFlushesDirty(t *testing.T) {
	arenaPath := filepath.Join(t.TempDir(), "test.arena")
	require.NoError(t, CreateArena(arenaPath, 1024))

	flusher := NewFlusher(arenaPath, nil)
	flusher.SetPayload([]byte("final"))
	require.NoError(t, flusher.Close())

	payload, seq, err := ReadActive(arenaPath)
	require.NoError(t, err)
	assert.Equal(t, "final", string(payload))
	assert.Equal(t, uint64(1), seq)

	// Close is idempotent.
	require.NoError(t, flusher.Close())
}

func TestFlusherLastError(t *testing.T) {
	// Point at a missing arena so the coalesced flush fails.
	flusher := NewFlusher(filepath.Join(t.TempDir(), "absent.arena"), nil)
	flusher.Start(10 * time.Millisecond)
	flusher.RequestFlush()

	time.Sleep(40 * time.Millisecond)
	assert.Error(t, flusher.LastError())
	_ = flusher.Close()
}
