// Package lint checks mined grammars for structural problems that
// expansion and derivation tolerate silently.
package lint

import (
	"fmt"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/synth"
)

// Severity separates findings that should fail a check run from
// advisory ones.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Diagnostic is one finding about a grammar.
type Diagnostic struct {
	Severity Severity
	Symbol   string // offending nonterminal, empty for sample findings
	Message  string
}

func (d Diagnostic) String() string {
	if d.Symbol == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Symbol, d.Message)
}

// Check runs the structural rules over a grammar.
func Check(g *api.Grammar) []Diagnostic {
	var diags []Diagnostic

	if _, ok := g.Rules[g.Start]; !ok {
		diags = append(diags, Diagnostic{
			Severity: Error,
			Symbol:   g.Start,
			Message:  "start symbol has no rule",
		})
	}

	// A <samples> rule projects onto the same directory a writable
	// filesystem export uses as its drop box.
	if _, ok := g.Rules[api.Symbol("samples")]; ok {
		diags = append(diags, Diagnostic{
			Severity: Warning,
			Symbol:   api.Symbol("samples"),
			Message:  "shadowed by the /samples/ drop box on writable exports",
		})
	}

	symbols := g.Symbols()
	for _, sym := range symbols {
		alts := g.Rules[sym]
		if len(alts) == 0 {
			diags = append(diags, Diagnostic{
				Severity: Error,
				Symbol:   sym,
				Message:  "rule has no alternatives",
			})
		}

		seen := make(map[string]bool, len(alts))
		for _, alt := range alts {
			if seen[alt] {
				diags = append(diags, Diagnostic{
					Severity: Warning,
					Symbol:   sym,
					Message:  fmt.Sprintf("duplicate alternative %q", alt),
				})
			}
			seen[alt] = true

			for _, part := range api.ScanAlternative(alt) {
				if !part.Ref {
					continue
				}
				if _, ok := g.Rules[part.Text]; !ok {
					diags = append(diags, Diagnostic{
						Severity: Warning,
						Symbol:   sym,
						Message:  fmt.Sprintf("reference to undefined %s expands as literal text", part.Text),
					})
				}
			}
		}
	}

	reachable := reach(g)
	for _, sym := range symbols {
		if !reachable[sym] {
			diags = append(diags, Diagnostic{
				Severity: Warning,
				Symbol:   sym,
				Message:  "unreachable from start",
			})
		}
	}

	return diags
}

// CheckSamples proves each sample derivable from the grammar's start
// symbol, reporting an error finding per underivable sample.
func CheckSamples(g *api.Grammar, samples []string) []Diagnostic {
	var diags []Diagnostic
	for _, s := range samples {
		if synth.Derivable(g, s) {
			continue
		}
		diags = append(diags, Diagnostic{
			Severity: Error,
			Message:  fmt.Sprintf("sample %q not derivable from %s", s, g.Start),
		})
	}
	return diags
}

// HasErrors reports whether any finding is Error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

func reach(g *api.Grammar) map[string]bool {
	reachable := map[string]bool{g.Start: true}
	queue := []string{g.Start}
	for len(queue) > 0 {
		sym := queue[0]
		queue = queue[1:]
		for _, alt := range g.Rules[sym] {
			for _, part := range api.ScanAlternative(alt) {
				if !part.Ref || reachable[part.Text] {
					continue
				}
				reachable[part.Text] = true
				queue = append(queue, part.Text)
			}
		}
	}
	return reachable
}
