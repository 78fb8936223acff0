// Package mine orchestrates the per-sample pipeline: trace the target
// over the sample, synthesize a grammar from the observations, and
// merge it into the accumulating result.
package mine

import (
	"fmt"
	"strings"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/profile"
	"github.com/agentic-research/grist/internal/synth"
	"github.com/agentic-research/grist/internal/target"
	"github.com/agentic-research/grist/internal/trace"
)

// Sink receives the accumulated grammar after every processed sample.
// Implementations must treat the grammar as read-only.
type Sink interface {
	Publish(g *api.Grammar) error
}

// Config describes one mining run.
type Config struct {
	// Target names a registered target.
	Target string
	// Policy is one of the profile.Policy* names. Empty selects
	// provenance.
	Policy string
	// MinLen overrides the policy's minimum value length when > 0.
	MinLen int
	// Selectors configures the json target; other targets reject it.
	Selectors map[string]string
	// Sink, when set, is notified after each sample.
	Sink Sink
}

// Outcome classifies what mining one sample produced.
type Outcome int

const (
	// Mined means the target succeeded and at least one observation
	// survived the policy.
	Mined Outcome = iota
	// NoObservations means the target succeeded but nothing was
	// recorded; the sample still joins the start rule.
	NoObservations
	// TargetFailed means the target rejected the sample.
	TargetFailed
)

func (o Outcome) String() string {
	switch o {
	case Mined:
		return "mined"
	case NoObservations:
		return "no-observations"
	case TargetFailed:
		return "target-failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result reports the outcome for one sample.
type Result struct {
	Sample       string
	Outcome      Outcome
	Observations int
	Err          error
}

// Engine runs samples through one target and accumulates the merged
// grammar. Not safe for concurrent use; samples are processed one at
// a time.
type Engine struct {
	fn     trace.Target
	policy trace.Policy
	syn    synth.Synthesizer
	sink   Sink
	merged *api.Grammar
}

// New builds an engine from a config, resolving the target and policy
// by name.
func New(cfg Config) (*Engine, error) {
	fn, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}

	var (
		p     trace.Policy
		dedup bool
	)
	switch cfg.Policy {
	case profile.PolicyUnscoped:
		u := trace.NewUnscoped()
		if cfg.MinLen > 0 {
			u.MinLen = cfg.MinLen
		}
		p = u
	case profile.PolicyScoped:
		s := trace.NewScoped()
		if cfg.MinLen > 0 {
			s.MinLen = cfg.MinLen
		}
		p, dedup = s, true
	case profile.PolicyProvenance, "":
		pv := trace.NewProvenance()
		if cfg.MinLen > 0 {
			pv.MinLen = cfg.MinLen
		}
		p, dedup = pv, true
	default:
		return nil, fmt.Errorf("mine: unknown policy %q", cfg.Policy)
	}

	return &Engine{
		fn:     fn,
		policy: p,
		syn:    synth.Synthesizer{Dedup: dedup},
		sink:   cfg.Sink,
	}, nil
}

func resolveTarget(cfg Config) (trace.Target, error) {
	if len(cfg.Selectors) > 0 {
		if cfg.Target != "json" {
			return nil, fmt.Errorf("mine: selectors require the json target, not %q", cfg.Target)
		}
		return target.JSON(cfg.Selectors), nil
	}
	e, ok := target.Lookup(cfg.Target)
	if !ok {
		return nil, fmt.Errorf("mine: unknown target %q (have %s)", cfg.Target, strings.Join(target.Names(), ", "))
	}
	return e.Func, nil
}

// MineSample processes one sample. Target failure is reported in the
// result, not returned, so batch runs keep going; the sample does not
// join the grammar in that case.
func (e *Engine) MineSample(sample string) Result {
	obs, err := trace.Run(sample, e.fn, e.policy)
	if err != nil {
		return Result{Sample: sample, Outcome: TargetFailed, Err: err}
	}

	g := e.syn.Synthesize(sample, obs)
	e.merged = synth.Merge(e.merged, g)

	res := Result{Sample: sample, Outcome: Mined, Observations: len(obs)}
	if len(obs) == 0 {
		res.Outcome = NoObservations
	}
	if e.sink != nil {
		if err := e.sink.Publish(e.Grammar()); err != nil {
			res.Err = fmt.Errorf("mine: publish: %w", err)
		}
	}
	return res
}

// MineAll processes samples in order.
func (e *Engine) MineAll(samples []string) []Result {
	out := make([]Result, 0, len(samples))
	for _, s := range samples {
		out = append(out, e.MineSample(s))
	}
	return out
}

// Grammar returns a copy of the accumulated grammar. Before any
// successful sample it is empty apart from the start symbol.
func (e *Engine) Grammar() *api.Grammar {
	if e.merged == nil {
		return api.NewGrammar()
	}
	return e.merged.Clone()
}

// Summarize tallies results per outcome.
func Summarize(results []Result) (mined, empty, failed int) {
	for _, r := range results {
		switch r.Outcome {
		case Mined:
			mined++
		case NoObservations:
			empty++
		case TargetFailed:
			failed++
		}
	}
	return mined, empty, failed
}
