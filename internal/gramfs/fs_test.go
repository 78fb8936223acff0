package gramfs

import (
	"io"
	"os"
	"sort"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grist/api"
)

func testGrammar() *api.Grammar {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<scheme>://<host>/p")
	g.Add("<scheme>", "http", "https")
	g.Add("<host>", "example.org")
	return g
}

func newTestFS() *FS {
	return New(NewSwapSource(testGrammar()))
}

func readAll(t *testing.T, fs *FS, path string) string {
	t.Helper()
	f, err := fs.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func names(infos []os.FileInfo) []string {
	out := make([]string, 0, len(infos))
	for _, fi := range infos {
		out = append(out, fi.Name())
	}
	return out
}

func TestStatRoot(t *testing.T) {
	fs := newTestFS()

	info, err := fs.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "/", info.Name())
}

func TestReadDirRoot(t *testing.T) {
	fs := newTestFS()

	infos, err := fs.ReadDir("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"_grammar.json", "start", "scheme", "host"}, names(infos))

	for _, fi := range infos[1:] {
		assert.True(t, fi.IsDir(), fi.Name())
	}
	assert.False(t, infos[0].IsDir())
}

func TestReadDirSymbol(t *testing.T) {
	fs := newTestFS()

	infos, err := fs.ReadDir("/scheme")
	require.NoError(t, err)
	require.Equal(t, []string{"0", "1"}, names(infos))
	assert.Equal(t, int64(len("http")+1), infos[0].Size())
	assert.Equal(t, int64(len("https")+1), infos[1].Size())

	_, err = fs.ReadDir("/nosuch")
	assert.Error(t, err)
}

func TestOpenAlternative(t *testing.T) {
	fs := newTestFS()

	assert.Equal(t, "https\n", readAll(t, fs, "/scheme/1"))
	assert.Equal(t, "<scheme>://<host>/p\n", readAll(t, fs, "/start/0"))
}

func TestOpenGrammarJSON(t *testing.T) {
	fs := newTestFS()

	data := readAll(t, fs, "/_grammar.json")
	assert.Contains(t, data, `"<scheme>"`)
	assert.Contains(t, data, `"start"`)

	info, err := fs.Lstat("/_grammar.json")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size())
}

func TestOpenErrors(t *testing.T) {
	fs := newTestFS()

	_, err := fs.Open("/scheme/9")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = fs.Open("/nosuch/0")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = fs.Open("/scheme")
	assert.Error(t, err)

	_, err = fs.Lstat("/samples")
	assert.ErrorIs(t, err, os.ErrNotExist, "no drop box on read-only projections")
}

func TestReadOnlyOperations(t *testing.T) {
	fs := newTestFS()

	_, err := fs.Create("/samples/x")
	assert.ErrorIs(t, err, errReadOnly)

	_, err = fs.OpenFile("/samples/x", os.O_WRONLY|os.O_CREATE, 0o644)
	assert.ErrorIs(t, err, errReadOnly)

	assert.ErrorIs(t, fs.Remove("/scheme/0"), errReadOnly)
	assert.ErrorIs(t, fs.MkdirAll("/new", 0o755), errReadOnly)
	assert.ErrorIs(t, fs.Rename("/a", "/b"), errReadOnly)

	assert.Zero(t, fs.Capabilities()&billy.WriteCapability)
}

func TestHotSwap(t *testing.T) {
	src := NewSwapSource(testGrammar())
	fs := New(src)

	require.Equal(t, "http\n", readAll(t, fs, "/scheme/0"))

	next := api.NewGrammar()
	next.Add(api.StartSymbol, "<scheme>://x")
	next.Add("<scheme>", "ftp")
	src.Swap(next)

	assert.Equal(t, "ftp\n", readAll(t, fs, "/scheme/0"))

	_, err := fs.Lstat("/host")
	assert.ErrorIs(t, err, os.ErrNotExist)

	infos, err := fs.ReadDir("/scheme")
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestWriteBackCommitOnClose(t *testing.T) {
	fs := newTestFS()

	var gotName string
	var gotContent []byte
	fs.SetWriteBack(func(name string, content []byte) error {
		gotName = name
		gotContent = content
		return nil
	})

	cf, err := fs.Create("/samples/new.txt")
	require.NoError(t, err)
	require.NoError(t, cf.Close())

	infos, err := fs.ReadDir("/samples")
	require.NoError(t, err)
	assert.Equal(t, []string{"new.txt"}, names(infos))

	f, err := fs.OpenFile("/samples/new.txt", os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("http://drop/box"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, "new.txt", gotName)
	assert.Equal(t, "http://drop/box", string(gotContent))

	infos, err = fs.ReadDir("/samples")
	require.NoError(t, err)
	assert.Empty(t, infos, "committed samples leave the drop box")
}

func TestWriteBackThroughCreateHandle(t *testing.T) {
	fs := newTestFS()

	var gotName string
	var gotContent []byte
	fs.SetWriteBack(func(name string, content []byte) error {
		gotName = name
		gotContent = content
		return nil
	})

	f, err := fs.Create("/samples/direct.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("http://drop/direct"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, "direct.txt", gotName)
	assert.Equal(t, "http://drop/direct", string(gotContent))

	infos, err := fs.ReadDir("/samples")
	require.NoError(t, err)
	assert.Empty(t, infos, "committed samples leave the drop box")
}

func TestWriteBackTruncateOnlyDoesNotCommit(t *testing.T) {
	fs := newTestFS()

	calls := 0
	fs.SetWriteBack(func(string, []byte) error {
		calls++
		return nil
	})

	f, err := fs.OpenFile("/samples/x", os.O_WRONLY|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(0))
	require.NoError(t, f.Close())

	assert.Zero(t, calls, "truncate without write must not commit")
}

func TestRemovePendingSample(t *testing.T) {
	fs := newTestFS()
	fs.SetWriteBack(func(string, []byte) error { return nil })

	_, err := fs.Create("/samples/tmp")
	require.NoError(t, err)
	require.NoError(t, fs.Remove("/samples/tmp"))

	infos, err := fs.ReadDir("/samples")
	require.NoError(t, err)
	assert.Empty(t, infos)

	assert.ErrorIs(t, fs.Remove("/samples/tmp"), os.ErrNotExist)
	assert.ErrorIs(t, fs.Remove("/scheme/0"), os.ErrPermission)
}

func TestScopedSymbolDirectories(t *testing.T) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<parseauthority.host>:80")
	g.Add("<parseauthority.host>", "example.org")
	fs := New(NewSwapSource(g))

	infos, err := fs.ReadDir("/")
	require.NoError(t, err)
	got := names(infos)
	sort.Strings(got)
	assert.Contains(t, got, "parseauthority.host")

	assert.Equal(t, "example.org\n", readAll(t, fs, "/parseauthority.host/0"))
}
