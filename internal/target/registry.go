// Package target holds the built-in instrumented parsers the tracer
// can run, and the registry that resolves them by name for the CLI,
// profiles, and the MCP server.
package target

import (
	"sort"

	"github.com/agentic-research/grist/internal/trace"
)

// Entry is one registered target.
type Entry struct {
	// Name resolves the target on the command line and in profiles.
	Name string
	// Doc is a one-line description for help output.
	Doc string
	// Func is the instrumented parser itself.
	Func trace.Target
}

var registry = make(map[string]Entry)

// Register adds a target. Registering the same name twice is a
// programming error.
func Register(e Entry) {
	if _, ok := registry[e.Name]; ok {
		panic("target: duplicate registration of " + e.Name)
	}
	registry[e.Name] = e
}

// Lookup resolves a registered target by name.
func Lookup(name string) (Entry, bool) {
	e, ok := registry[name]
	return e, ok
}

// Names lists the registered target names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
