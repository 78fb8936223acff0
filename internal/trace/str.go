// Package trace runs instrumented targets over sample inputs and
// collects (variable, value) observations under a selectable
// attribution policy. Instrumentation is injected per call through the
// Recorder interface; there is no process-global hook.
package trace

import "strings"

// origin is the immutable backing string a traced value was sliced
// from. Identity of the pointer, not equality of the text, is what
// links a derived value to its sample.
type origin struct {
	s string
}

// Str is a string that may carry provenance: a reference to the origin
// string it was sliced from and its byte offset within it. Values
// produced by slicing keep the origin; values produced any other way
// (concatenation, decoding, literals) are untraced.
type Str struct {
	s   string
	org *origin
	off int
}

// Root wraps a sample string as a fresh origin. Every substring sliced
// from the result traces back to it.
func Root(s string) Str {
	return Str{s: s, org: &origin{s: s}}
}

// Lit wraps a string with no provenance.
func Lit(s string) Str {
	return Str{s: s}
}

func (t Str) String() string { return t.s }

// Len returns the byte length.
func (t Str) Len() int { return len(t.s) }

// Traced reports whether the value carries provenance.
func (t Str) Traced() bool { return t.org != nil }

// Offset returns the byte offset within the origin string. Zero for
// untraced values.
func (t Str) Offset() int { return t.off }

// SameOrigin reports whether both values were sliced from the same
// origin instance.
func (t Str) SameOrigin(o Str) bool {
	return t.org != nil && t.org == o.org
}

// Slice returns t[i:j] with provenance preserved.
func (t Str) Slice(i, j int) Str {
	return Str{s: t.s[i:j], org: t.org, off: t.off + i}
}

// Index returns the index of the first occurrence of sub, or -1.
func (t Str) Index(sub string) int { return strings.Index(t.s, sub) }

// IndexByte returns the index of the first occurrence of c, or -1.
func (t Str) IndexByte(c byte) int { return strings.IndexByte(t.s, c) }

// Contains reports whether sub is within t.
func (t Str) Contains(sub string) bool { return strings.Contains(t.s, sub) }

// HasPrefix reports whether t begins with prefix.
func (t Str) HasPrefix(prefix string) bool { return strings.HasPrefix(t.s, prefix) }

// HasSuffix reports whether t ends with suffix.
func (t Str) HasSuffix(suffix string) bool { return strings.HasSuffix(t.s, suffix) }

// Cut slices t around the first occurrence of sep. Both halves keep
// provenance. If sep is absent, before is t and found is false.
func (t Str) Cut(sep string) (before, after Str, found bool) {
	i := t.Index(sep)
	if i < 0 {
		return t, t.Slice(t.Len(), t.Len()), false
	}
	return t.Slice(0, i), t.Slice(i+len(sep), t.Len()), true
}

// TrimPrefix returns t without the leading prefix, provenance kept.
func (t Str) TrimPrefix(prefix string) Str {
	if t.HasPrefix(prefix) {
		return t.Slice(len(prefix), t.Len())
	}
	return t
}

// TrimSuffix returns t without the trailing suffix, provenance kept.
func (t Str) TrimSuffix(suffix string) Str {
	if t.HasSuffix(suffix) {
		return t.Slice(0, t.Len()-len(suffix))
	}
	return t
}

// TrimSpace returns t with leading and trailing ASCII whitespace
// removed, provenance kept.
func (t Str) TrimSpace() Str {
	lo := 0
	for lo < len(t.s) && asciiSpace(t.s[lo]) {
		lo++
	}
	hi := len(t.s)
	for hi > lo && asciiSpace(t.s[hi-1]) {
		hi--
	}
	return t.Slice(lo, hi)
}

// Split slices t around each occurrence of sep, every piece keeping
// provenance. Mirrors strings.Split for non-empty separators.
func (t Str) Split(sep string) []Str {
	if sep == "" {
		return []Str{t}
	}
	var out []Str
	rest := t
	for {
		before, after, found := rest.Cut(sep)
		out = append(out, before)
		if !found {
			return out
		}
		rest = after
	}
}

// Locate finds the first occurrence of sub within t and returns it as
// a traced slice. Used to recover provenance for values that were
// reconstructed rather than sliced (for example decoded JSON leaves).
func (t Str) Locate(sub string) (Str, bool) {
	i := t.Index(sub)
	if i < 0 {
		return Lit(sub), false
	}
	return t.Slice(i, i+len(sub)), true
}

func asciiSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
