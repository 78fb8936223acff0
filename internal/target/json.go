package target

import (
	"fmt"
	"sort"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/grist/internal/trace"
)

func init() {
	Register(Entry{
		Name: "json",
		Doc:  "JSON documents; string leaves become observations, JSONPath selectors narrow them",
		Func: JSON(nil),
	})
}

// JSON returns a target extracting observations from JSON samples.
// With selectors, each (variable, JSONPath) pair is evaluated against
// the parsed document and matching string results are recorded under
// the variable name. Without selectors every string leaf is recorded
// under its object key. Values are located back in the raw sample so
// the provenance policy sees true slices, not rebuilt strings; leaves
// whose decoded form differs from the raw bytes (escapes) are skipped.
func JSON(selectors map[string]string) trace.Target {
	if len(selectors) == 0 {
		return jsonLeaves
	}

	type selector struct {
		name string
		expr jp.Expr
	}
	names := make([]string, 0, len(selectors))
	for name := range selectors {
		names = append(names, name)
	}
	sort.Strings(names)

	sels := make([]selector, 0, len(names))
	var bad error
	for _, name := range names {
		expr, err := jp.ParseString(selectors[name])
		if err != nil {
			bad = fmt.Errorf("json: selector %s: %w", name, err)
			break
		}
		sels = append(sels, selector{name: name, expr: expr})
	}

	return func(input trace.Str, rec trace.Recorder) error {
		if bad != nil {
			return bad
		}
		doc, err := oj.Parse([]byte(input.String()))
		if err != nil {
			return fmt.Errorf("json: %w", err)
		}
		for _, sel := range sels {
			for _, res := range sel.expr.Get(doc) {
				s, ok := res.(string)
				if !ok {
					continue
				}
				if val, ok := input.Locate(s); ok {
					rec.Record(sel.name, val)
				}
			}
		}
		return nil
	}
}

func jsonLeaves(input trace.Str, rec trace.Recorder) error {
	doc, err := oj.Parse([]byte(input.String()))
	if err != nil {
		return fmt.Errorf("json: %w", err)
	}
	walkJSON("", doc, input, rec)
	return nil
}

// walkJSON records string leaves under the nearest enclosing object
// key. Object keys are visited in sorted order so repeated runs over
// the same sample observe in the same order.
func walkJSON(key string, v any, input trace.Str, rec trace.Recorder) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkJSON(k, t[k], input, rec)
		}
	case []any:
		for _, elem := range t {
			walkJSON(key, elem, input, rec)
		}
	case string:
		if key == "" {
			return
		}
		if val, ok := input.Locate(t); ok {
			rec.Record(key, val)
		}
	}
}
