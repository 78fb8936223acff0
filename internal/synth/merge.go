package synth

import "github.com/agentic-research/grist/api"

// Merge unions two grammars: for every nonterminal the merged
// alternatives are the set union of both inputs' alternatives, with an
// absent rule treated as empty. Duplicates collapse; first-seen order
// is preserved (a's rules and alternatives before b's). Merge is
// commutative up to ordering, associative, and idempotent. Neither
// input is modified; either may be nil.
func Merge(a, b *api.Grammar) *api.Grammar {
	out := api.NewGrammar()
	for _, g := range []*api.Grammar{a, b} {
		if g == nil {
			continue
		}
		if g.Start != "" {
			out.Start = g.Start
		}
		for _, sym := range g.Symbols() {
			for _, alt := range g.Rules[sym] {
				out.AddUnique(sym, alt)
			}
		}
	}
	return out
}

// MergeAll folds Merge over any number of grammars.
func MergeAll(gs ...*api.Grammar) *api.Grammar {
	out := api.NewGrammar()
	for _, g := range gs {
		out = Merge(out, g)
	}
	return out
}
