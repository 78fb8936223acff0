package target

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesSortedAndComplete(t *testing.T) {
	names := Names()
	assert.True(t, sort.StringsAreSorted(names))
	for _, want := range []string{"url", "inikv", "json", "go", "python", "javascript", "typescript", "sql"} {
		assert.Contains(t, names, want)
	}
}

func TestLookup(t *testing.T) {
	e, ok := Lookup("url")
	require.True(t, ok)
	assert.Equal(t, "url", e.Name)
	assert.NotNil(t, e.Func)
	assert.NotEmpty(t, e.Doc)

	_, ok = Lookup("cobol")
	assert.False(t, ok)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(Entry{Name: "url"})
	})
}
