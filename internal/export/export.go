// Package export renders mined grammars into artifacts other tools
// consume: grammar JSON, fuzzer token dictionaries, and Go
// native-fuzzing harnesses.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/agentic-research/grist/api"
)

// Load reads a grammar JSON file written by WriteJSON (or the mine
// command).
func Load(path string) (*api.Grammar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes grammar JSON.
func Parse(raw []byte) (*api.Grammar, error) {
	var g api.Grammar
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("export: parse grammar: %w", err)
	}
	if g.Start == "" {
		g.Start = api.StartSymbol
	}
	if g.Rules == nil {
		g.Rules = map[string][]string{}
	}
	return &g, nil
}

// Terminals collects the literal text runs of every alternative,
// deduplicated and sorted. These are the grammar's terminal tokens.
func Terminals(g *api.Grammar) []string {
	seen := make(map[string]bool)
	for _, sym := range g.Symbols() {
		for _, alt := range g.Rules[sym] {
			for _, part := range api.ScanAlternative(alt) {
				if part.Ref || part.Text == "" {
					continue
				}
				seen[part.Text] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// writeAtomic writes content to path via a temp file in the same
// directory and a rename, so readers never observe a partial artifact.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".grist-export-*")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("export: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("export: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("export: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("export: rename temp to %s: %w", path, err)
	}
	return nil
}
