package fusefs

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/export"
	"github.com/agentic-research/grist/internal/gramfs"
)

const grammarFileName = "_grammar.json"

// GrammarFS implements the FUSE interface from cgofuse: a read-only
// projection with one directory per nonterminal, one numbered file per
// alternative, and a virtual _grammar.json at the root.
type GrammarFS struct {
	fuse.FileSystemBase
	src       gramfs.Source
	mountTime fuse.Timespec

	dmu     sync.Mutex
	nextFH  uint64
	openDir map[uint64][]string
}

func New(src gramfs.Source) *GrammarFS {
	return &GrammarFS{
		src:       src,
		mountTime: fuse.NewTimespec(time.Now()),
		openDir:   make(map[uint64][]string),
	}
}

type nodeKind int

const (
	nodeMissing nodeKind = iota
	nodeRoot
	nodeGrammarJSON
	nodeSymbolDir
	nodeAltFile
)

// resolve classifies path against the current grammar and returns the
// content for regular files.
func (gfs *GrammarFS) resolve(g *api.Grammar, path string) (nodeKind, []byte) {
	if path == "/" {
		return nodeRoot, nil
	}
	if path == "/"+grammarFileName {
		return nodeGrammarJSON, export.JSONBytes(g)
	}

	rest := strings.TrimPrefix(path, "/")
	dir, file, nested := strings.Cut(rest, "/")
	alts, defined := g.Rules["<"+dir+">"]
	if !defined {
		return nodeMissing, nil
	}
	if !nested {
		return nodeSymbolDir, nil
	}
	idx, err := strconv.Atoi(file)
	if err != nil || idx < 0 || idx >= len(alts) {
		return nodeMissing, nil
	}
	return nodeAltFile, append([]byte(alts[idx]), '\n')
}

// entries lists a directory's names, without the "." and ".." slots.
func entries(g *api.Grammar, path string) []string {
	if path == "/" {
		names := []string{grammarFileName}
		for _, sym := range g.Symbols() {
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(sym, "<"), ">"))
		}
		return names
	}
	alts := g.Rules["<"+strings.TrimPrefix(path, "/")+">"]
	names := make([]string, len(alts))
	for i := range alts {
		names[i] = strconv.Itoa(i)
	}
	return names
}

// Open checks if the path exists as an alternative file.
func (gfs *GrammarFS) Open(path string, flags int) (int, uint64) {
	kind, _ := gfs.resolve(gfs.src.Grammar(), path)
	switch kind {
	case nodeGrammarJSON, nodeAltFile:
		return 0, 0
	case nodeRoot, nodeSymbolDir:
		return -fuse.EISDIR, 0
	}
	return -fuse.ENOENT, 0
}

// Getattr (Stat)
func (gfs *GrammarFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	stat.Atim = gfs.mountTime
	stat.Mtim = gfs.mountTime
	stat.Ctim = gfs.mountTime
	stat.Birthtim = gfs.mountTime

	kind, content := gfs.resolve(gfs.src.Grammar(), path)
	switch kind {
	case nodeRoot, nodeSymbolDir:
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Nlink = 2
		return 0
	case nodeGrammarJSON, nodeAltFile:
		stat.Mode = fuse.S_IFREG | 0o444
		stat.Nlink = 1
		stat.Size = int64(len(content))
		return 0
	}
	return -fuse.ENOENT
}

// Opendir snapshots the directory listing for stable pagination while
// the grammar may be swapped underneath.
func (gfs *GrammarFS) Opendir(path string) (int, uint64) {
	g := gfs.src.Grammar()
	kind, _ := gfs.resolve(g, path)
	switch kind {
	case nodeGrammarJSON, nodeAltFile:
		return -fuse.ENOTDIR, 0
	case nodeMissing:
		return -fuse.ENOENT, 0
	}

	all := append([]string{".", ".."}, entries(g, path)...)
	gfs.dmu.Lock()
	gfs.nextFH++
	fh := gfs.nextFH
	gfs.openDir[fh] = all
	gfs.dmu.Unlock()
	return 0, fh
}

// Readdir (List directory). fill returning false means the kernel
// buffer is full; the next call resumes at ofst.
func (gfs *GrammarFS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	gfs.dmu.Lock()
	all, cached := gfs.openDir[fh]
	gfs.dmu.Unlock()

	if !cached {
		g := gfs.src.Grammar()
		kind, _ := gfs.resolve(g, path)
		if kind != nodeRoot && kind != nodeSymbolDir {
			return -fuse.ENOENT
		}
		all = append([]string{".", ".."}, entries(g, path)...)
	}

	for i := int(ofst); i >= 0 && i < len(all); i++ {
		if !fill(all[i], nil, int64(i+1)) {
			break
		}
	}
	return 0
}

func (gfs *GrammarFS) Releasedir(path string, fh uint64) int {
	gfs.dmu.Lock()
	delete(gfs.openDir, fh)
	gfs.dmu.Unlock()
	return 0
}

// Read (Cat file)
func (gfs *GrammarFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	kind, content := gfs.resolve(gfs.src.Grammar(), path)
	switch kind {
	case nodeRoot, nodeSymbolDir:
		return -fuse.EISDIR
	case nodeMissing:
		return -fuse.ENOENT
	}

	if ofst >= int64(len(content)) {
		return 0
	}
	end := ofst + int64(len(buff))
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return copy(buff, content[ofst:end])
}
