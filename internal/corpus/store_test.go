package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grist/api"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddSampleDeduplicates(t *testing.T) {
	s := openTestStore(t)

	id1, err := s.AddSample("url", "http://host/a")
	require.NoError(t, err)
	id2, err := s.AddSample("url", "http://host/b")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	again, err := s.AddSample("url", "http://host/a")
	require.NoError(t, err)
	assert.Equal(t, id1, again)

	n, err := s.CountSamples("url")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSamplesStreamInOrder(t *testing.T) {
	s := openTestStore(t)

	for _, body := range []string{"one", "two", "three"} {
		_, err := s.AddSample("t", body)
		require.NoError(t, err)
	}
	_, err := s.AddSample("other", "four")
	require.NoError(t, err)

	var got []string
	err = s.Samples("t", func(_ int64, body string) error {
		got = append(got, body)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)

	n, err := s.CountSamples("")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSampleLookup(t *testing.T) {
	s := openTestStore(t)

	id, err := s.AddSample("t", "body text")
	require.NoError(t, err)

	body, err := s.Sample(id)
	require.NoError(t, err)
	assert.Equal(t, "body text", body)

	_, err = s.Sample(id + 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGrammarRoundTrip(t *testing.T) {
	s := openTestStore(t)

	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<scheme>://host")
	g.Add("<scheme>", "http", "https")

	require.NoError(t, s.PutGrammar("urls", "url", g))

	got, target, err := s.GetGrammar("urls")
	require.NoError(t, err)
	assert.Equal(t, "url", target)
	assert.Equal(t, g.Start, got.Start)
	assert.Equal(t, g.Rules, got.Rules)

	names, err := s.GrammarNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"urls"}, names)

	_, _, err = s.GetGrammar("absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutGrammarReplaces(t *testing.T) {
	s := openTestStore(t)

	g1 := api.NewGrammar()
	g1.Add(api.StartSymbol, "a")
	require.NoError(t, s.PutGrammar("g", "url", g1))

	g2 := api.NewGrammar()
	g2.Add(api.StartSymbol, "b")
	require.NoError(t, s.PutGrammar("g", "url", g2))

	got, _, err := s.GetGrammar("g")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got.Rules[api.StartSymbol])
}

func TestBulkWriter(t *testing.T) {
	s := openTestStore(t)

	w, err := s.Bulk()
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, w.Add("t", string(rune('a'+i%26))+"-sample"))
	}
	require.NoError(t, w.Close())

	n, err := s.CountSamples("t")
	require.NoError(t, err)
	assert.Equal(t, 26, n, "duplicates collapse under INSERT OR IGNORE")
}

func TestSampleNReservoir(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 100; i++ {
		_, err := s.AddSample("t", "sample-"+string(rune('0'+i/10))+string(rune('0'+i%10)))
		require.NoError(t, err)
	}

	a, err := s.SampleN("t", 10, 42)
	require.NoError(t, err)
	require.Len(t, a, 10)

	b, err := s.SampleN("t", 10, 42)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed draws the same samples")

	all, err := s.SampleN("t", 1000, 1)
	require.NoError(t, err)
	assert.Len(t, all, 100)

	none, err := s.SampleN("t", 0, 1)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestReadSources(t *testing.T) {
	dir := t.TempDir()

	lines := filepath.Join(dir, "samples.txt")
	require.NoError(t, os.WriteFile(lines, []byte("alpha\n\nbeta\n"), 0o644))

	sub := filepath.Join(dir, "cases")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("from-b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.txt"), []byte("from-a"), 0o644))

	var got []string
	err := ReadSources([]string{lines, sub}, func(sample string) error {
		got = append(got, sample)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "from-a", "from-b"}, got)

	err = ReadSources([]string{filepath.Join(dir, "missing.txt")}, func(string) error { return nil })
	assert.Error(t, err)
}

func TestScanLines(t *testing.T) {
	var got []string
	err := scanLines(strings.NewReader("one\n\ntwo\nthree"), "test", func(sample string) error {
		got = append(got, sample)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)
}
