package lint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grist/api"
)

func findDiag(diags []Diagnostic, symbol, fragment string) *Diagnostic {
	for i := range diags {
		if diags[i].Symbol != symbol {
			continue
		}
		if fragment == "" || strings.Contains(diags[i].Message, fragment) {
			return &diags[i]
		}
	}
	return nil
}

func TestCheckCleanGrammar(t *testing.T) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<scheme>://host")
	g.Add("<scheme>", "http", "https")

	diags := Check(g)
	assert.Empty(t, diags)
	assert.False(t, HasErrors(diags))
}

func TestCheckMissingStart(t *testing.T) {
	g := api.NewGrammar()
	g.Add("<orphan>", "text")

	diags := Check(g)
	d := findDiag(diags, api.StartSymbol, "no rule")
	require.NotNil(t, d)
	assert.Equal(t, Error, d.Severity)
	assert.True(t, HasErrors(diags))
}

func TestCheckEmptyRule(t *testing.T) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<hole>")
	g.Rules["<hole>"] = nil

	diags := Check(g)
	d := findDiag(diags, "<hole>", "no alternatives")
	require.NotNil(t, d)
	assert.Equal(t, Error, d.Severity)
}

func TestCheckUndefinedReference(t *testing.T) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<ghost>://x")

	diags := Check(g)
	d := findDiag(diags, api.StartSymbol, "<ghost>")
	require.NotNil(t, d)
	assert.Equal(t, Warning, d.Severity)
	assert.False(t, HasErrors(diags))
}

func TestCheckDuplicateAlternative(t *testing.T) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "a", "b", "a")

	diags := Check(g)
	d := findDiag(diags, api.StartSymbol, "duplicate")
	require.NotNil(t, d)
	assert.Equal(t, Warning, d.Severity)
}

func TestCheckUnreachable(t *testing.T) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<used>")
	g.Add("<used>", "x")
	g.Add("<dangling>", "y")

	diags := Check(g)
	assert.Nil(t, findDiag(diags, "<used>", "unreachable"))
	d := findDiag(diags, "<dangling>", "unreachable")
	require.NotNil(t, d)
	assert.Equal(t, Warning, d.Severity)
}

func TestCheckSamplesSymbolShadowed(t *testing.T) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<samples>")
	g.Add("<samples>", "a", "b")

	diags := Check(g)
	d := findDiag(diags, "<samples>", "drop box")
	require.NotNil(t, d)
	assert.Equal(t, Warning, d.Severity)
	assert.False(t, HasErrors(diags))
}

func TestCheckSamples(t *testing.T) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<scheme>://host")
	g.Add("<scheme>", "http", "https")

	diags := CheckSamples(g, []string{"http://host", "https://host"})
	assert.Empty(t, diags)

	diags = CheckSamples(g, []string{"http://host", "gopher://host"})
	require.Len(t, diags, 1)
	assert.Equal(t, Error, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "gopher://host")
	assert.True(t, HasErrors(diags))
}

func TestStringFormats(t *testing.T) {
	d := Diagnostic{Severity: Error, Symbol: "<x>", Message: "rule has no alternatives"}
	assert.Equal(t, "error: <x>: rule has no alternatives", d.String())

	d = Diagnostic{Severity: Warning, Message: "plain"}
	assert.Equal(t, "warning: plain", d.String())
}
