package export

import (
	"bytes"
	"fmt"
	"text/template"

	"mvdan.cc/gofumpt/format"

	"github.com/agentic-research/grist/api"
)

// GoConfig shapes the generated fuzz harness.
type GoConfig struct {
	// Package is the package clause of the generated file.
	Package string
	// Name completes the Fuzz<Name> function identifier.
	Name string
	// Samples seed the corpus ahead of the grammar's terminals.
	Samples []string
}

var harnessTmpl = template.Must(template.New("harness").Parse(`// Code generated by grist export go. DO NOT EDIT.

package {{.Package}}

import "testing"

// {{.Target}} is the function under test. Point it at the parser the
// grammar was mined from before running go test -fuzz.
var {{.Target}} = func(input string) error { return nil }

func Fuzz{{.Name}}(f *testing.F) {
	// Seed corpus
{{- range .Seeds}}
	f.Add({{printf "%q" .}})
{{- end}}

	f.Fuzz(func(t *testing.T, input string) {
		_ = {{.Target}}(input)
	})
}
`))

// GoSource renders a Go native-fuzzing harness seeded from samples and
// the grammar's terminal tokens, formatted with gofumpt. A harness
// that fails to format fails the export.
func GoSource(cfg GoConfig, g *api.Grammar) ([]byte, error) {
	if cfg.Package == "" {
		cfg.Package = "fuzz"
	}
	if cfg.Name == "" {
		cfg.Name = "Grammar"
	}

	seeds := make([]string, 0, len(cfg.Samples))
	seen := make(map[string]bool)
	for _, s := range cfg.Samples {
		if !seen[s] {
			seeds = append(seeds, s)
			seen[s] = true
		}
	}
	for _, tok := range Terminals(g) {
		if !seen[tok] {
			seeds = append(seeds, tok)
			seen[tok] = true
		}
	}

	data := struct {
		Package string
		Name    string
		Target  string
		Seeds   []string
	}{
		Package: cfg.Package,
		Name:    cfg.Name,
		Target:  "fuzzTarget" + cfg.Name,
		Seeds:   seeds,
	}

	var buf bytes.Buffer
	if err := harnessTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("export: render harness: %w", err)
	}

	formatted, err := format.Source(buf.Bytes(), format.Options{})
	if err != nil {
		return nil, fmt.Errorf("export: format harness: %w", err)
	}
	return formatted, nil
}

// WriteGo writes the fuzz harness artifact atomically.
func WriteGo(path string, cfg GoConfig, g *api.Grammar) error {
	src, err := GoSource(cfg, g)
	if err != nil {
		return err
	}
	return writeAtomic(path, src)
}
