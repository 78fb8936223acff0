package target

import (
	"fmt"

	"github.com/agentic-research/grist/internal/trace"
)

func init() {
	Register(Entry{
		Name: "inikv",
		Doc:  "line-oriented key=value pairs with [section] headers",
		Func: parseINI,
	})
}

// parseINI walks an INI-shaped sample line by line. Section headers
// and entries are handled by separate helpers whose parameters are
// both named "field", which is exactly the collision the scope-
// qualified policies exist to keep apart.
func parseINI(input trace.Str, rec trace.Recorder) error {
	for n, line := range input.Split("\n") {
		line = line.TrimSpace()
		switch {
		case line.Len() == 0:
		case line.HasPrefix("#") || line.HasPrefix(";"):
			rec.Record("comment", line)
		case line.HasPrefix("["):
			if err := parseSection(line, rec); err != nil {
				return fmt.Errorf("inikv: line %d: %w", n+1, err)
			}
		default:
			if err := parseEntry(line, rec); err != nil {
				return fmt.Errorf("inikv: line %d: %w", n+1, err)
			}
		}
	}
	return nil
}

func parseSection(line trace.Str, rec trace.Recorder) error {
	rec.Enter("ParseSection", line)
	defer rec.Exit()

	if !line.HasSuffix("]") {
		return fmt.Errorf("unterminated section header %q", line.String())
	}
	field := line.TrimPrefix("[").TrimSuffix("]").TrimSpace()
	if field.Len() == 0 {
		return fmt.Errorf("empty section header")
	}
	rec.Record("field", field)
	return nil
}

func parseEntry(line trace.Str, rec trace.Recorder) error {
	rec.Enter("ParseEntry", line)
	defer rec.Exit()

	field, value, ok := line.Cut("=")
	if !ok {
		return fmt.Errorf("missing '=' in %q", line.String())
	}
	rec.Record("field", field.TrimSpace())
	rec.Record("value", value.TrimSpace())
	return nil
}
