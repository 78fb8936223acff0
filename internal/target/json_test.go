package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/trace"
)

func TestJSONSelectors(t *testing.T) {
	sample := `{"user":{"name":"alice","age":3},"host":"example.org"}`
	fn := JSON(map[string]string{
		"name": "$.user.name",
		"host": "$.host",
	})

	obs, err := trace.Run(sample, fn, trace.NewProvenance())
	require.NoError(t, err)

	// Selectors run in sorted name order.
	assert.Equal(t, []api.Observation{
		{Var: "host", Value: "example.org"},
		{Var: "name", Value: "alice"},
	}, obs)
}

func TestJSONDefaultRecordsStringLeaves(t *testing.T) {
	sample := `{"b":"beta","a":"alpha","n":7,"list":["gamma"]}`

	obs, err := trace.Run(sample, JSON(nil), trace.NewProvenance())
	require.NoError(t, err)

	assert.Equal(t, []api.Observation{
		{Var: "a", Value: "alpha"},
		{Var: "b", Value: "beta"},
		{Var: "list", Value: "gamma"},
	}, obs)
}

func TestJSONEscapedLeafSkipped(t *testing.T) {
	// The decoded value differs from the raw bytes, so it can not be
	// located back in the sample; it is dropped, not an error.
	sample := `{"a":"x\ny","b":"plain"}`

	obs, err := trace.Run(sample, JSON(nil), trace.NewProvenance())
	require.NoError(t, err)
	assert.Equal(t, []api.Observation{{Var: "b", Value: "plain"}}, obs)
}

func TestJSONBadSample(t *testing.T) {
	_, err := trace.Run("not json at all", JSON(nil), trace.NewProvenance())
	assert.Error(t, err)
}

func TestJSONBadSelector(t *testing.T) {
	fn := JSON(map[string]string{"x": "$.a["})
	_, err := trace.Run(`{"a":1}`, fn, trace.NewProvenance())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector")
}
