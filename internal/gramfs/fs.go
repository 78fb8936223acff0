package gramfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/export"
)

var errReadOnly = fmt.Errorf("read-only filesystem")

const (
	grammarFileName = "_grammar.json"
	samplesDirName  = "samples"
)

// FS projects a grammar Source as a billy.Filesystem. Alternative
// files carry a trailing newline; the exact alternatives live in
// _grammar.json.
type FS struct {
	src       Source
	mountTime time.Time
	writable  bool
	writeBack WriteBackFunc

	// pending tracks sample files between CREATE and the commit on
	// Close, so NFS attribute lookups on freshly created files succeed.
	pmu     sync.Mutex
	pending map[string]int64
}

// New creates a read-only projection of src.
func New(src Source) *FS {
	return &FS{
		src:       src,
		mountTime: time.Now(),
		pending:   make(map[string]int64),
	}
}

// SetWriteBack enables the /samples/ drop box. The callback is invoked
// with the file name and content when a written sample file is closed.
func (fs *FS) SetWriteBack(fn WriteBackFunc) {
	fs.writable = true
	fs.writeBack = fn
}

func (fs *FS) notePending(name string) {
	fs.pmu.Lock()
	fs.pending[name] = 0
	fs.pmu.Unlock()
}

func (fs *FS) updatePending(name string, size int64) {
	fs.pmu.Lock()
	fs.pending[name] = size
	fs.pmu.Unlock()
}

func (fs *FS) dropPending(name string) {
	fs.pmu.Lock()
	delete(fs.pending, name)
	fs.pmu.Unlock()
}

func (fs *FS) pendingSize(name string) (int64, bool) {
	fs.pmu.Lock()
	defer fs.pmu.Unlock()
	size, ok := fs.pending[name]
	return size, ok
}

// --- billy.Basic ---

// Create opens a new sample file under /samples/. The handle is a
// full write handle: billy clients write and close it directly, while
// go-nfs closes it right away and sends the content through separate
// OpenFile calls from WRITE RPCs. Both paths commit on the close that
// follows a real Write.
func (fs *FS) Create(filename string) (billy.File, error) {
	if !fs.writable {
		return nil, errReadOnly
	}
	filename = cleanPath(filename)
	name, ok := sampleName(filename)
	if !ok {
		return nil, &os.PathError{Op: "create", Path: filename, Err: os.ErrPermission}
	}
	fs.notePending(name)
	return &sampleFile{fs: fs, name: name}, nil
}

func (fs *FS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *FS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)

	writing := flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0
	if writing {
		if !fs.writable {
			return nil, errReadOnly
		}
		name, ok := sampleName(filename)
		if !ok {
			return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrPermission}
		}
		fs.notePending(name)
		return &sampleFile{fs: fs, name: name}, nil
	}

	g := fs.src.Grammar()
	if filename == "/"+grammarFileName {
		return &bytesFile{name: grammarFileName, data: export.JSONBytes(g)}, nil
	}
	if fs.writable && filename == "/"+samplesDirName {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}

	// The drop box shadows a <samples> nonterminal only while write-back
	// is enabled.
	if name, ok := sampleName(filename); fs.writable && ok {
		if _, pending := fs.pendingSize(name); pending {
			return &bytesFile{name: name}, nil
		}
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}

	sym, idx, ok := altPath(filename)
	if !ok {
		if _, dirOK := symbolDir(g, filename); dirOK {
			return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
		}
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	alts, defined := g.Rules[sym]
	if !defined || idx >= len(alts) {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	return &bytesFile{name: strconv.Itoa(idx), data: altData(alts[idx])}, nil
}

func (fs *FS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *FS) Rename(oldpath, newpath string) error {
	return errReadOnly
}

func (fs *FS) Remove(filename string) error {
	if !fs.writable {
		return errReadOnly
	}
	filename = cleanPath(filename)
	if name, ok := sampleName(filename); ok {
		if _, pending := fs.pendingSize(name); pending {
			fs.dropPending(name)
			return nil
		}
		return &os.PathError{Op: "remove", Path: filename, Err: os.ErrNotExist}
	}
	return &os.PathError{Op: "remove", Path: filename, Err: os.ErrPermission}
}

func (fs *FS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *FS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *FS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)
	g := fs.src.Grammar()

	if path == "/" {
		return fs.readRoot(g), nil
	}

	if path == "/"+samplesDirName {
		if !fs.writable {
			return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
		}
		return fs.readSamples(), nil
	}

	sym, ok := symbolDir(g, path)
	if !ok {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
	}
	alts := g.Rules[sym]
	infos := make([]os.FileInfo, 0, len(alts))
	for i, alt := range alts {
		infos = append(infos, &staticFileInfo{
			name:    strconv.Itoa(i),
			size:    int64(len(altData(alt))),
			mode:    0o444,
			modTime: fs.mountTime,
		})
	}
	return infos, nil
}

func (fs *FS) readRoot(g *api.Grammar) []os.FileInfo {
	infos := []os.FileInfo{
		&staticFileInfo{
			name:    grammarFileName,
			size:    int64(len(export.JSONBytes(g))),
			mode:    0o444,
			modTime: fs.mountTime,
		},
	}
	if fs.writable {
		infos = append(infos, &staticFileInfo{
			name:    samplesDirName,
			mode:    os.ModeDir | 0o777,
			modTime: fs.mountTime,
		})
	}
	for _, sym := range g.Symbols() {
		infos = append(infos, &staticFileInfo{
			name:    dirName(sym),
			mode:    os.ModeDir | 0o555,
			modTime: fs.mountTime,
		})
	}
	return infos
}

func (fs *FS) readSamples() []os.FileInfo {
	fs.pmu.Lock()
	names := make([]string, 0, len(fs.pending))
	for name := range fs.pending {
		names = append(names, name)
	}
	fs.pmu.Unlock()
	sort.Strings(names)

	infos := make([]os.FileInfo, 0, len(names))
	for _, name := range names {
		size, _ := fs.pendingSize(name)
		infos = append(infos, &staticFileInfo{
			name:    name,
			size:    size,
			mode:    0o644,
			modTime: fs.mountTime,
		})
	}
	return infos
}

func (fs *FS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *FS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)
	g := fs.src.Grammar()

	if filename == "/" {
		return &staticFileInfo{name: "/", mode: os.ModeDir | 0o555, modTime: fs.mountTime}, nil
	}
	if filename == "/"+grammarFileName {
		return &staticFileInfo{
			name:    grammarFileName,
			size:    int64(len(export.JSONBytes(g))),
			mode:    0o444,
			modTime: fs.mountTime,
		}, nil
	}
	if fs.writable && filename == "/"+samplesDirName {
		return &staticFileInfo{name: samplesDirName, mode: os.ModeDir | 0o777, modTime: fs.mountTime}, nil
	}
	if name, ok := sampleName(filename); fs.writable && ok {
		if size, pending := fs.pendingSize(name); pending {
			return &staticFileInfo{name: name, size: size, mode: 0o644, modTime: fs.mountTime}, nil
		}
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}

	if sym, ok := symbolDir(g, filename); ok {
		return &staticFileInfo{name: dirName(sym), mode: os.ModeDir | 0o555, modTime: fs.mountTime}, nil
	}

	sym, idx, ok := altPath(filename)
	if ok {
		if alts, defined := g.Rules[sym]; defined && idx < len(alts) {
			return &staticFileInfo{
				name:    strconv.Itoa(idx),
				size:    int64(len(altData(alts[idx]))),
				mode:    0o444,
				modTime: fs.mountTime,
			}, nil
		}
	}
	return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
}

func (fs *FS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *FS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *FS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *FS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *FS) Capabilities() billy.Capability {
	caps := billy.ReadCapability | billy.SeekCapability
	if fs.writable {
		caps |= billy.WriteCapability
	}
	return caps
}

// --- internals ---

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

// dirName strips the angle brackets off a nonterminal for use as a
// directory name.
func dirName(sym string) string {
	return strings.TrimSuffix(strings.TrimPrefix(sym, "<"), ">")
}

// symbolDir resolves "/<dir>" to the nonterminal it projects, if the
// grammar defines it.
func symbolDir(g *api.Grammar, path string) (string, bool) {
	rest := strings.TrimPrefix(path, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	sym := "<" + rest + ">"
	_, ok := g.Rules[sym]
	return sym, ok
}

// altPath resolves "/<dir>/<idx>" to a nonterminal and alternative
// index.
func altPath(path string) (sym string, idx int, ok bool) {
	rest := strings.TrimPrefix(path, "/")
	dir, file, found := strings.Cut(rest, "/")
	if !found || dir == "" || strings.Contains(file, "/") {
		return "", 0, false
	}
	n, err := strconv.Atoi(file)
	if err != nil || n < 0 {
		return "", 0, false
	}
	return "<" + dir + ">", n, true
}

// sampleName resolves "/samples/<name>" to the bare sample file name.
func sampleName(path string) (string, bool) {
	rest, found := strings.CutPrefix(path, "/"+samplesDirName+"/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

func altData(alt string) []byte {
	return append([]byte(alt), '\n')
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*FS)(nil)
	_ billy.Capable    = (*FS)(nil)
)
