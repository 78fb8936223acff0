// Package synth turns one sample's observations into a context-free
// grammar and merges per-sample grammars into a corpus grammar.
package synth

import (
	"strings"

	"github.com/agentic-research/grist/api"
)

// minValueLen is the floor below which an observation is malformed and
// silently filtered, independent of the tracing policy's own minimum.
const minValueLen = 2

// Synthesizer builds a grammar from a sample and its observations.
//
// The replacement policy is deterministic: observations are processed
// in recorded order, rules are scanned in insertion order, alternatives
// in list order, and occurrences are replaced left to right without
// overlap. Equivalent observation sets arriving in different orders may
// still synthesize different grammars; every result derives the sample.
type Synthesizer struct {
	// Dedup collapses duplicate alternatives per nonterminal, the
	// set-valued shape produced by stack-scoped mining.
	Dedup bool
}

// Synthesize builds the grammar for one sample. The start symbol's
// sole initial alternative is the sample itself; each observation that
// matches somewhere introduces one nonterminal. Observations that are
// malformed, that match nothing, or that name an already-introduced
// nonterminal with a different value are dropped silently.
func (s *Synthesizer) Synthesize(sample string, observations []api.Observation) *api.Grammar {
	g := api.NewGrammar()
	if s.Dedup {
		g.AddUnique(api.StartSymbol, sample)
	} else {
		g.Add(api.StartSymbol, sample)
	}

	pending := make([]api.Observation, 0, len(observations))
	for _, ob := range observations {
		if len(ob.Value) < minValueLen || ob.Var == "" {
			continue
		}
		pending = append(pending, ob)
	}

	done := make([]bool, len(pending))
	for changed := true; changed; {
		changed = false
		for i, ob := range pending {
			if done[i] {
				continue
			}
			sym := api.Symbol(ob.Var)
			if _, ok := g.Rules[sym]; ok {
				// One value per nonterminal per sample: a second
				// binding of the same variable is dropped, otherwise
				// expanding the first alternative would no longer
				// reconstruct the sample.
				done[i] = true
				continue
			}
			if refOccurs(g, sym) {
				// The sample text already spells this symbol; a rule
				// would capture those spans and corrupt expansion.
				done[i] = true
				continue
			}
			if !s.introduce(g, sym, ob.Value) {
				continue // may match after a later rule adds text
			}
			done[i] = true
			changed = true
		}
	}
	return g
}

// introduce replaces every occurrence of value in the grammar's
// literal text with sym and, if anything was replaced, adds the rule
// sym -> value. Occurrences inside existing <references> are not
// touched; that text already belongs to another nonterminal.
func (s *Synthesizer) introduce(g *api.Grammar, sym, value string) bool {
	replaced := false
	for _, rsym := range g.Symbols() {
		alts := g.Rules[rsym]
		for i, alt := range alts {
			rewritten, n := replaceInLiterals(alt, value, sym)
			if n == 0 {
				continue
			}
			alts[i] = rewritten
			replaced = true
		}
	}
	if !replaced {
		return false
	}
	if s.Dedup {
		g.AddUnique(sym, value)
	} else {
		g.Add(sym, value)
	}
	return true
}

// refOccurs reports whether sym already appears as a reference in any
// alternative. With no rule behind it such a span is literal sample
// text and must stay that way.
func refOccurs(g *api.Grammar, sym string) bool {
	for _, rsym := range g.Symbols() {
		for _, alt := range g.Rules[rsym] {
			for _, p := range api.ScanAlternative(alt) {
				if p.Ref && p.Text == sym {
					return true
				}
			}
		}
	}
	return false
}

// replaceInLiterals substitutes sym for value within the literal parts
// of an alternative, leaving nonterminal references intact. Returns
// the rewritten alternative and the number of substitutions.
func replaceInLiterals(alt, value, sym string) (string, int) {
	parts := api.ScanAlternative(alt)
	var b strings.Builder
	n := 0
	for _, p := range parts {
		if p.Ref || !strings.Contains(p.Text, value) {
			b.WriteString(p.Text)
			continue
		}
		n += strings.Count(p.Text, value)
		b.WriteString(strings.ReplaceAll(p.Text, value, sym))
	}
	return b.String(), n
}
