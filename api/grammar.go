// Package api defines the wire types shared across grist: grammars,
// observations, and the nonterminal naming scheme.
package api

import (
	"sort"
	"strings"
)

// StartSymbol is the distinguished start nonterminal of every grammar.
const StartSymbol = "<start>"

// Observation is one (variable, value) pair recorded while a target
// processes a sample. Var may be scope-qualified ("parsehost.field").
type Observation struct {
	// Var is the variable identifier the value was bound to.
	Var string `json:"var"`
	// Value is the observed substring of the sample.
	Value string `json:"value"`
}

// Grammar maps nonterminal symbols to production alternatives. An
// alternative is a string mixing terminal text and <nonterminal>
// references. Rule scan order is insertion order; after decoding from
// JSON (where insertion order is lost) it falls back to sorted order.
type Grammar struct {
	// Start names the entry symbol, normally StartSymbol.
	Start string `json:"start"`
	// Rules holds the alternatives for each nonterminal.
	Rules map[string][]string `json:"rules"`

	order []string
}

// NewGrammar returns an empty grammar rooted at StartSymbol.
func NewGrammar() *Grammar {
	return &Grammar{
		Start: StartSymbol,
		Rules: make(map[string][]string),
	}
}

// Add appends alternatives to a symbol's rule, creating the rule if
// needed. Duplicates are kept; use AddUnique for set semantics.
func (g *Grammar) Add(symbol string, alts ...string) {
	if _, ok := g.Rules[symbol]; !ok {
		g.order = append(g.order, symbol)
	}
	g.Rules[symbol] = append(g.Rules[symbol], alts...)
}

// AddUnique appends an alternative only if the symbol does not already
// have it. Reports whether the alternative was added.
func (g *Grammar) AddUnique(symbol, alt string) bool {
	for _, have := range g.Rules[symbol] {
		if have == alt {
			return false
		}
	}
	g.Add(symbol, alt)
	return true
}

// Symbols returns the rule symbols in deterministic scan order:
// insertion order when known, sorted otherwise.
func (g *Grammar) Symbols() []string {
	if len(g.order) == len(g.Rules) {
		out := make([]string, len(g.order))
		copy(out, g.order)
		return out
	}
	out := make([]string, 0, len(g.Rules))
	for sym := range g.Rules {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of the grammar.
func (g *Grammar) Clone() *Grammar {
	out := NewGrammar()
	out.Start = g.Start
	for _, sym := range g.Symbols() {
		out.Add(sym, g.Rules[sym]...)
	}
	return out
}

// Symbol derives the nonterminal symbol for a variable identifier:
// lowercased, wrapped in angle brackets.
func Symbol(name string) string {
	return "<" + strings.ToLower(name) + ">"
}

// ScopedSymbol derives a scope-qualified nonterminal, used by the
// stack-aware tracing policies to keep same-named variables from
// different call contexts apart.
func ScopedSymbol(scope, name string) string {
	if scope == "" {
		return Symbol(name)
	}
	return "<" + strings.ToLower(scope) + "." + strings.ToLower(name) + ">"
}

// Part is one piece of a scanned alternative: either literal terminal
// text or a nonterminal reference.
type Part struct {
	Text string
	Ref  bool
}

// ScanAlternative splits an alternative into literal runs and
// nonterminal references. A reference is <name> where name consists of
// lowercase letters, digits, and the characters '.', '_', '-'. Angle
// brackets that do not form such a span stay literal text.
func ScanAlternative(alt string) []Part {
	var parts []Part
	lit := 0
	for i := 0; i < len(alt); {
		if alt[i] != '<' {
			i++
			continue
		}
		end := refEnd(alt, i)
		if end < 0 {
			i++
			continue
		}
		if i > lit {
			parts = append(parts, Part{Text: alt[lit:i]})
		}
		parts = append(parts, Part{Text: alt[i : end+1], Ref: true})
		i = end + 1
		lit = i
	}
	if lit < len(alt) {
		parts = append(parts, Part{Text: alt[lit:]})
	}
	return parts
}

// refEnd returns the index of the closing '>' for a reference starting
// at alt[i] == '<', or -1 if the span is not a well-formed reference.
func refEnd(alt string, i int) int {
	j := i + 1
	for ; j < len(alt); j++ {
		c := alt[j]
		if c == '>' {
			if j == i+1 {
				return -1 // empty <>
			}
			return j
		}
		if !refChar(c) {
			return -1
		}
	}
	return -1
}

func refChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-':
		return true
	}
	return false
}

// ExpandAlternative rewrites an alternative down to terminal text by
// substituting each defined reference with the expansion of its first
// alternative. References with no rule expand as their literal text.
// A reference already being expanded higher in the chain is left
// literal, which keeps cyclic rule sets from recursing forever.
func (g *Grammar) ExpandAlternative(alt string) string {
	return g.expand(alt, make(map[string]bool))
}

// ExpandStart expands the first alternative of the start symbol. For a
// grammar synthesized from one sample this reconstructs the sample.
func (g *Grammar) ExpandStart() string {
	alts := g.Rules[g.Start]
	if len(alts) == 0 {
		return ""
	}
	return g.ExpandAlternative(alts[0])
}

func (g *Grammar) expand(alt string, visiting map[string]bool) string {
	parts := ScanAlternative(alt)
	var b strings.Builder
	for _, p := range parts {
		if !p.Ref {
			b.WriteString(p.Text)
			continue
		}
		alts, ok := g.Rules[p.Text]
		if !ok || len(alts) == 0 || visiting[p.Text] {
			b.WriteString(p.Text)
			continue
		}
		visiting[p.Text] = true
		b.WriteString(g.expand(alts[0], visiting))
		delete(visiting, p.Text)
	}
	return b.String()
}
