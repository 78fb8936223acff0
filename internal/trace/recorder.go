package trace

import "github.com/agentic-research/grist/api"

// Recorder is the instrumentation interface a target reports through.
// Targets call Record for every named intermediate string they bind,
// and bracket helper calls with Enter/Exit so stack-aware policies can
// attribute values to the right frame. Recording outside an active Run
// is a no-op.
type Recorder interface {
	// Record reports that name was bound to value.
	Record(name string, value Str)
	// Enter opens a nested scope. Only args derived from the current
	// frame's input become the new frame's active set.
	Enter(scope string, args ...Str)
	// Exit closes the innermost scope opened by Enter.
	Exit()
}

// Target is an instrumented parser: it processes one sample and
// reports its intermediate values through the recorder.
type Target func(input Str, rec Recorder) error

// Policy is a Recorder that decides which reported values become
// observations. The lifecycle methods are driven by Run only.
type Policy interface {
	Recorder

	begin(input Str)
	release()
	observations() []api.Observation
}

// Run traces one execution of target over sample under the given
// policy. The policy is acquired for exactly this call and released on
// every exit path, including target failure or panic. A target error
// is returned unmodified, together with the observations collected up
// to the failure.
func Run(sample string, target Target, p Policy) ([]api.Observation, error) {
	input := Root(sample)
	p.begin(input)
	defer p.release()

	err := target(input, p)
	return p.observations(), err
}
