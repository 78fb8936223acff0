// Package gramfs projects a grammar as a read-mostly filesystem: one
// directory per nonterminal, one numbered file per alternative, and a
// virtual _grammar.json at the root. The projection implements
// billy.Filesystem so it can be served over NFS.
package gramfs

import (
	"sync"

	"github.com/agentic-research/grist/api"
)

// Source provides the grammar to project. Implementations must be
// safe for concurrent readers; the filesystem snapshots the grammar
// per operation.
type Source interface {
	Grammar() *api.Grammar
}

// SwapSource is a Source whose grammar can be replaced atomically, so
// re-mining swaps the served tree without remounting.
type SwapSource struct {
	mu sync.RWMutex
	g  *api.Grammar
}

func NewSwapSource(g *api.Grammar) *SwapSource {
	if g == nil {
		g = api.NewGrammar()
	}
	return &SwapSource{g: g}
}

// Grammar returns the current grammar.
func (s *SwapSource) Grammar() *api.Grammar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g
}

// Swap replaces the served grammar. In-flight operations keep the
// snapshot they started with.
func (s *SwapSource) Swap(g *api.Grammar) {
	if g == nil {
		g = api.NewGrammar()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.g = g
}

var _ Source = (*SwapSource)(nil)
