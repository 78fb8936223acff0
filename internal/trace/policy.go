package trace

import (
	"strings"

	"github.com/agentic-research/grist/api"
)

// obsKey dedups repeated identical observations while keeping the
// first-seen recording order.
type obsKey struct {
	name  string
	value string
}

type obsLog struct {
	seen map[obsKey]struct{}
	obs  []api.Observation
}

func (l *obsLog) reset() {
	l.seen = make(map[obsKey]struct{})
	l.obs = nil
}

func (l *obsLog) add(name, value string) {
	k := obsKey{name, value}
	if _, ok := l.seen[k]; ok {
		return
	}
	l.seen[k] = struct{}{}
	l.obs = append(l.obs, api.Observation{Var: name, Value: value})
}

func (l *obsLog) list() []api.Observation {
	out := make([]api.Observation, len(l.obs))
	copy(out, l.obs)
	return out
}

// Unscoped accepts any reported value that is a substring of the
// sample, regardless of where it came from. Cheapest and noisiest: a
// coincidental unrelated string that happens to occur in the sample is
// attributed anyway, so the minimum length is raised to 3.
type Unscoped struct {
	// MinLen is the minimum value length an observation needs.
	MinLen int

	sample string
	active bool
	log    obsLog
}

// NewUnscoped returns an unscoped policy with the default minimum
// value length of 3.
func NewUnscoped() *Unscoped {
	return &Unscoped{MinLen: 3}
}

func (u *Unscoped) begin(input Str) {
	u.sample = input.String()
	u.active = true
	u.log.reset()
}

func (u *Unscoped) release() { u.active = false }

func (u *Unscoped) observations() []api.Observation { return u.log.list() }

// Record accepts value if it is long enough and occurs in the sample.
func (u *Unscoped) Record(name string, value Str) {
	if !u.active {
		return
	}
	v := value.String()
	if len(v) < u.MinLen || !strings.Contains(u.sample, v) {
		return
	}
	u.log.add(name, v)
}

// Enter is a no-op: the unscoped policy ignores call structure.
func (u *Unscoped) Enter(string, ...Str) {}

// Exit is a no-op.
func (u *Unscoped) Exit() {}

// Scoped maintains a call stack of active input substrings. On Enter
// only the arguments textually contained in the enclosing frame's
// active set are pushed; a value is accepted only when the innermost
// frame's active set covers it. Observations are qualified by the
// innermost scope name, so same-named variables in different calls
// stay distinguishable.
type Scoped struct {
	// MinLen is the minimum value length an observation needs.
	MinLen int

	active bool
	stack  []textFrame
	log    obsLog
}

type textFrame struct {
	scope  string
	inputs []string
}

// NewScoped returns a stack-scoped policy with the default minimum
// value length of 2.
func NewScoped() *Scoped {
	return &Scoped{MinLen: 2}
}

func (s *Scoped) begin(input Str) {
	s.active = true
	s.stack = []textFrame{{inputs: []string{input.String()}}}
	s.log.reset()
}

func (s *Scoped) release() { s.active = false }

func (s *Scoped) observations() []api.Observation { return s.log.list() }

func (s *Scoped) Record(name string, value Str) {
	if !s.active {
		return
	}
	v := value.String()
	top := &s.stack[len(s.stack)-1]
	if len(v) < s.MinLen || !coveredBy(top.inputs, v) {
		return
	}
	s.log.add(qualify(top.scope, name), v)
}

func (s *Scoped) Enter(scope string, args ...Str) {
	if !s.active {
		return
	}
	top := &s.stack[len(s.stack)-1]
	var kept []string
	for _, arg := range args {
		if coveredBy(top.inputs, arg.String()) {
			kept = append(kept, arg.String())
		}
	}
	s.stack = append(s.stack, textFrame{scope: scope, inputs: kept})
}

func (s *Scoped) Exit() {
	if !s.active || len(s.stack) <= 1 {
		return
	}
	s.stack = s.stack[:len(s.stack)-1]
}

// Provenance accepts only values whose origin is the sample itself:
// membership is tested by origin identity and byte span, never by
// text. Equal-but-unrelated strings elsewhere in the target can not be
// misattributed. Observations are scope-qualified like Scoped.
type Provenance struct {
	// MinLen is the minimum value length an observation needs.
	MinLen int

	active bool
	root   *origin
	stack  []spanFrame
	log    obsLog
}

type span struct {
	off int
	end int
}

type spanFrame struct {
	scope string
	spans []span
}

// NewProvenance returns a provenance-tracked policy with the default
// minimum value length of 2.
func NewProvenance() *Provenance {
	return &Provenance{MinLen: 2}
}

func (p *Provenance) begin(input Str) {
	p.active = true
	p.root = input.org
	p.stack = []spanFrame{{spans: []span{{0, input.Len()}}}}
	p.log.reset()
}

func (p *Provenance) release() { p.active = false }

func (p *Provenance) observations() []api.Observation { return p.log.list() }

func (p *Provenance) Record(name string, value Str) {
	if !p.active {
		return
	}
	top := &p.stack[len(p.stack)-1]
	if value.Len() < p.MinLen || !p.inFrame(top, value) {
		return
	}
	p.log.add(qualify(top.scope, name), value.String())
}

func (p *Provenance) Enter(scope string, args ...Str) {
	if !p.active {
		return
	}
	top := &p.stack[len(p.stack)-1]
	var kept []span
	for _, arg := range args {
		if p.inFrame(top, arg) {
			kept = append(kept, span{arg.off, arg.off + arg.Len()})
		}
	}
	p.stack = append(p.stack, spanFrame{scope: scope, spans: kept})
}

func (p *Provenance) Exit() {
	if !p.active || len(p.stack) <= 1 {
		return
	}
	p.stack = p.stack[:len(p.stack)-1]
}

// inFrame reports whether value was sliced from the sample origin and
// its span lies inside one of the frame's active spans.
func (p *Provenance) inFrame(f *spanFrame, value Str) bool {
	if value.org == nil || value.org != p.root {
		return false
	}
	lo, hi := value.off, value.off+value.Len()
	for _, sp := range f.spans {
		if lo >= sp.off && hi <= sp.end {
			return true
		}
	}
	return false
}

func coveredBy(inputs []string, v string) bool {
	for _, in := range inputs {
		if strings.Contains(in, v) {
			return true
		}
	}
	return false
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// Compile-time interface checks.
var (
	_ Policy = (*Unscoped)(nil)
	_ Policy = (*Scoped)(nil)
	_ Policy = (*Provenance)(nil)
)
