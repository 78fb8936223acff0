package synth

import "github.com/agentic-research/grist/api"

// maxDeriveSteps caps the backtracking search. Mined grammars stay far
// below this; a grammar that exhausts the budget is reported as not
// derivable, which is the conservative answer for linting.
const maxDeriveSteps = 1 << 20

// Derivable reports whether the grammar derives s from its start
// symbol, trying every alternative with backtracking. References with
// no rule match their own literal spelling, mirroring how expansion
// treats them. Cyclic rule sets are handled; left-recursive paths are
// cut rather than followed forever.
func Derivable(g *api.Grammar, s string) bool {
	d := &deriver{
		g:        g,
		s:        s,
		proven:   make(map[memoKey]struct{}),
		visiting: make(map[memoKey]bool),
	}
	return d.symbol(g.Start, 0, len(s))
}

type memoKey struct {
	sym    string
	lo, hi int
}

type deriver struct {
	g        *api.Grammar
	s        string
	steps    int
	proven   map[memoKey]struct{}
	visiting map[memoKey]bool
}

// symbol reports whether sym derives s[lo:hi]. Only positive results
// are memoized: a negative under an active left-recursion cut is not a
// proof, and caching it would poison sibling paths.
func (d *deriver) symbol(sym string, lo, hi int) bool {
	key := memoKey{sym, lo, hi}
	if _, ok := d.proven[key]; ok {
		return true
	}
	if d.visiting[key] {
		return false
	}
	d.steps++
	if d.steps > maxDeriveSteps {
		return false
	}

	alts, ok := d.g.Rules[sym]
	if !ok {
		return d.s[lo:hi] == sym
	}

	d.visiting[key] = true
	derived := false
	for _, alt := range alts {
		if d.parts(api.ScanAlternative(alt), lo, hi) {
			derived = true
			break
		}
	}
	delete(d.visiting, key)

	if derived {
		d.proven[key] = struct{}{}
	}
	return derived
}

// parts matches a scanned alternative against s[lo:hi].
func (d *deriver) parts(parts []api.Part, lo, hi int) bool {
	d.steps++
	if d.steps > maxDeriveSteps {
		return false
	}
	if len(parts) == 0 {
		return lo == hi
	}
	p := parts[0]
	if !p.Ref {
		if hi-lo < len(p.Text) || d.s[lo:lo+len(p.Text)] != p.Text {
			return false
		}
		return d.parts(parts[1:], lo+len(p.Text), hi)
	}
	if len(parts) == 1 {
		return d.symbol(p.Text, lo, hi)
	}
	for k := lo; k <= hi; k++ {
		if d.symbol(p.Text, lo, k) && d.parts(parts[1:], k, hi) {
			return true
		}
	}
	return false
}
