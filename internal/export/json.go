package export

import (
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/grist/api"
)

// JSONBytes renders a grammar as indented JSON with sorted keys, so
// diffs between grammar versions stay readable.
func JSONBytes(g *api.Grammar) []byte {
	rules := make(map[string]any, len(g.Rules))
	for sym, alts := range g.Rules {
		list := make([]any, len(alts))
		for i, alt := range alts {
			list[i] = alt
		}
		rules[sym] = list
	}
	doc := map[string]any{
		"start": g.Start,
		"rules": rules,
	}

	// HTMLUnsafe keeps "<" and ">" literal; without it ojg escapes
	// nonterminals as <scheme>.
	opts := ojg.Options{Sort: true, Indent: 2, HTMLUnsafe: true}
	return append([]byte(oj.JSON(doc, &opts)), '\n')
}

// WriteJSON writes the grammar JSON artifact atomically.
func WriteJSON(path string, g *api.Grammar) error {
	return writeAtomic(path, JSONBytes(g))
}
