package handoff

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/export"
)

// Flusher writes grammar JSON into the double-buffered arena and flips
// the header so consumers see the new version.
//
// A flush copies the whole payload, so rapid publishes should go
// through Publish or RequestFlush (coalesced) instead of FlushNow
// (synchronous). The coalescing goroutine batches rapid updates into a
// single flush per tick interval, so N publishes within a tick produce
// 1 flush instead of N.
type Flusher struct {
	arenaPath string
	ctrl      *Controller

	// Coalescing state
	mu       sync.Mutex
	payload  []byte
	dirty    bool
	flushErr error // last flush error, readable via LastError()
	tick     *time.Ticker
	stopCh   chan struct{}
	stopped  bool
}

// NewFlusher creates a flusher that targets the given arena file and
// updates the control block on each flush. ctrl may be nil.
//
// Call Start() to begin the coalescing goroutine, and Close() to stop
// it and perform a final flush.
func NewFlusher(arenaPath string, ctrl *Controller) *Flusher {
	return &Flusher{
		arenaPath: arenaPath,
		ctrl:      ctrl,
		stopCh:    make(chan struct{}),
	}
}

// Publish stores the grammar as the next payload and marks the flusher
// dirty. The coalescing goroutine performs the actual flush.
func (f *Flusher) Publish(g *api.Grammar) error {
	f.SetPayload(export.JSONBytes(g))
	return nil
}

// SetPayload stores raw payload bytes and marks the flusher dirty.
func (f *Flusher) SetPayload(p []byte) {
	f.mu.Lock()
	f.payload = p
	f.dirty = true
	f.mu.Unlock()
}

// RequestFlush marks the flusher as dirty without changing the payload.
// Non-blocking, O(1).
func (f *Flusher) RequestFlush() {
	f.mu.Lock()
	f.dirty = true
	f.mu.Unlock()
}

// Start begins the coalescing goroutine that flushes at most once per
// interval when dirty. Safe to call multiple times (idempotent).
func (f *Flusher) Start(interval time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tick != nil {
		return // already started
	}
	f.tick = time.NewTicker(interval)
	go f.coalesceLoop()
}

func (f *Flusher) coalesceLoop() {
	for {
		select {
		case <-f.tick.C:
			f.mu.Lock()
			if f.dirty {
				f.dirty = false
				f.mu.Unlock()
				if err := f.flushInternal(); err != nil {
					f.mu.Lock()
					f.flushErr = err
					f.mu.Unlock()
					log.Printf("arena flush: %v", err)
				}
			} else {
				f.mu.Unlock()
			}
		case <-f.stopCh:
			return
		}
	}
}

// FlushNow performs a synchronous flush. Use for the final flush on
// shutdown or when the caller needs the arena up-to-date.
func (f *Flusher) FlushNow() error {
	f.mu.Lock()
	f.dirty = false
	f.mu.Unlock()
	return f.flushInternal()
}

// LastError returns the last error from the coalescing goroutine.
func (f *Flusher) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushErr
}

// Close stops the coalescing goroutine and performs a final synchronous
// flush if dirty.
func (f *Flusher) Close() error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	wasDirty := f.dirty
	f.dirty = false
	if f.tick != nil {
		f.tick.Stop()
		close(f.stopCh)
	}
	f.mu.Unlock()

	if wasDirty {
		return f.flushInternal()
	}
	return nil
}

// flushInternal writes the current payload to the inactive arena
// buffer, flips the active buffer index, and updates the control block
// generation.
func (f *Flusher) flushInternal() error {
	f.mu.Lock()
	payload := f.payload
	f.mu.Unlock()

	seq, err := FlushArena(f.arenaPath, payload)
	if err != nil {
		return err
	}

	if f.ctrl != nil {
		info, err := os.Stat(f.arenaPath)
		if err != nil {
			return fmt.Errorf("stat arena: %w", err)
		}
		if err := f.ctrl.SetArena(f.arenaPath, uint64(info.Size()), seq); err != nil {
			return fmt.Errorf("update control block: %w", err)
		}
	}
	return nil
}
