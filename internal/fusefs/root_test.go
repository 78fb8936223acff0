package fusefs

import (
	"testing"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/gramfs"
)

// newTestFS creates a GrammarFS over a small fixed grammar.
func newTestFS() (*GrammarFS, *gramfs.SwapSource) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<scheme>://<host>/p")
	g.Add("<scheme>", "http", "https")
	g.Add("<host>", "example.org")
	src := gramfs.NewSwapSource(g)
	return New(src), src
}

func TestGrammarFS_Open(t *testing.T) {
	gfs, _ := newTestFS()

	tests := []struct {
		name    string
		path    string
		wantErr int
	}{
		{name: "open alternative file", path: "/scheme/1", wantErr: 0},
		{name: "open grammar json", path: "/_grammar.json", wantErr: 0},
		{name: "open non-existent path", path: "/does-not-exist", wantErr: -fuse.ENOENT},
		{name: "open out-of-range alternative", path: "/scheme/9", wantErr: -fuse.ENOENT},
		{name: "open directory returns EISDIR", path: "/scheme", wantErr: -fuse.EISDIR},
		{name: "open root returns EISDIR", path: "/", wantErr: -fuse.EISDIR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errCode, fh := gfs.Open(tt.path, 0)
			if errCode != tt.wantErr {
				t.Errorf("Open() errCode = %v, want %v", errCode, tt.wantErr)
			}
			if fh != 0 {
				t.Errorf("Open() fh = %v, want 0", fh)
			}
		})
	}
}

func TestGrammarFS_Getattr(t *testing.T) {
	gfs, _ := newTestFS()

	tests := []struct {
		name      string
		path      string
		wantErr   int
		checkStat func(*testing.T, *fuse.Stat_t)
	}{
		{
			name:    "stat root directory",
			path:    "/",
			wantErr: 0,
			checkStat: func(t *testing.T, stat *fuse.Stat_t) {
				if stat.Mode&fuse.S_IFDIR == 0 {
					t.Error("root should be a directory")
				}
				if stat.Nlink != 2 {
					t.Errorf("root nlink = %v, want 2", stat.Nlink)
				}
			},
		},
		{
			name:    "stat symbol directory",
			path:    "/scheme",
			wantErr: 0,
			checkStat: func(t *testing.T, stat *fuse.Stat_t) {
				if stat.Mode&fuse.S_IFDIR == 0 {
					t.Error("scheme should be a directory")
				}
			},
		},
		{
			name:    "stat alternative file",
			path:    "/scheme/1",
			wantErr: 0,
			checkStat: func(t *testing.T, stat *fuse.Stat_t) {
				if stat.Mode&fuse.S_IFREG == 0 {
					t.Error("alternative should be a regular file")
				}
				if want := int64(len("https\n")); stat.Size != want {
					t.Errorf("alternative size = %v, want %v", stat.Size, want)
				}
			},
		},
		{
			name:    "stat grammar json",
			path:    "/_grammar.json",
			wantErr: 0,
			checkStat: func(t *testing.T, stat *fuse.Stat_t) {
				if stat.Mode&fuse.S_IFREG == 0 {
					t.Error("_grammar.json should be a regular file")
				}
				if stat.Size == 0 {
					t.Error("_grammar.json should not be empty")
				}
			},
		},
		{
			name:    "stat non-existent path",
			path:    "/does-not-exist",
			wantErr: -fuse.ENOENT,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stat fuse.Stat_t
			errCode := gfs.Getattr(tt.path, &stat, 0)
			if errCode != tt.wantErr {
				t.Errorf("Getattr() errCode = %v, want %v", errCode, tt.wantErr)
			}
			if errCode == 0 && tt.checkStat != nil {
				tt.checkStat(t, &stat)
			}
		})
	}
}

func TestGrammarFS_Readdir(t *testing.T) {
	gfs, _ := newTestFS()

	tests := []struct {
		name        string
		path        string
		wantErr     int
		wantEntries []string
	}{
		{
			name:        "readdir root lists grammar json and symbol dirs",
			path:        "/",
			wantErr:     0,
			wantEntries: []string{".", "..", "_grammar.json", "start", "scheme", "host"},
		},
		{
			name:        "readdir symbol dir lists numbered alternatives",
			path:        "/scheme",
			wantErr:     0,
			wantEntries: []string{".", "..", "0", "1"},
		},
		{
			name:    "readdir non-existent path",
			path:    "/does-not-exist",
			wantErr: -fuse.ENOENT,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []string
			fill := func(name string, stat *fuse.Stat_t, ofst int64) bool {
				entries = append(entries, name)
				return true
			}

			errCode := gfs.Readdir(tt.path, fill, 0, 0)
			if errCode != tt.wantErr {
				t.Errorf("Readdir() errCode = %v, want %v", errCode, tt.wantErr)
			}

			if errCode == 0 {
				if len(entries) != len(tt.wantEntries) {
					t.Fatalf("Readdir() entries = %v, want %v", entries, tt.wantEntries)
				}
				for i, want := range tt.wantEntries {
					if entries[i] != want {
						t.Errorf("Readdir() entry[%d] = %q, want %q", i, entries[i], want)
					}
				}
			}
		})
	}
}

func TestGrammarFS_Readdir_BufferFull(t *testing.T) {
	gfs, _ := newTestFS()

	// fill returning false means the buffer is full; the walk stops
	// after the first entry.
	var entries []string
	fill := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		entries = append(entries, name)
		return false
	}

	errCode := gfs.Readdir("/scheme", fill, 0, 0)
	if errCode != 0 {
		t.Fatalf("Readdir errCode = %v, want 0", errCode)
	}
	if len(entries) != 1 || entries[0] != "." {
		t.Fatalf("entries = %v, want [\".\"]", entries)
	}
}

func TestGrammarFS_Opendir_Errors(t *testing.T) {
	gfs, _ := newTestFS()

	errCode, _ := gfs.Opendir("/does-not-exist")
	if errCode != -fuse.ENOENT {
		t.Errorf("Opendir(nonexistent) = %v, want ENOENT", errCode)
	}

	errCode, _ = gfs.Opendir("/scheme/0")
	if errCode != -fuse.ENOTDIR {
		t.Errorf("Opendir(file) = %v, want ENOTDIR", errCode)
	}
}

func TestGrammarFS_Opendir_Readdir_Releasedir(t *testing.T) {
	gfs, _ := newTestFS()

	errCode, fh := gfs.Opendir("/scheme")
	if errCode != 0 {
		t.Fatalf("Opendir errCode = %v, want 0", errCode)
	}

	// First page: accept 2 entries then signal buffer full.
	var page1 []string
	count := 0
	fill1 := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		page1 = append(page1, name)
		count++
		return count < 2
	}

	errCode = gfs.Readdir("/scheme", fill1, 0, fh)
	if errCode != 0 {
		t.Fatalf("Readdir page1 errCode = %v, want 0", errCode)
	}
	if len(page1) != 2 || page1[0] != "." || page1[1] != ".." {
		t.Fatalf("page1 = %v, want [. ..]", page1)
	}

	// Second page: resume from offset 2.
	var page2 []string
	fill2 := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		page2 = append(page2, name)
		return true
	}

	errCode = gfs.Readdir("/scheme", fill2, 2, fh)
	if errCode != 0 {
		t.Fatalf("Readdir page2 errCode = %v, want 0", errCode)
	}
	want2 := []string{"0", "1"}
	if len(page2) != len(want2) {
		t.Fatalf("page2 = %v, want %v", page2, want2)
	}
	for i, w := range want2 {
		if page2[i] != w {
			t.Errorf("page2[%d] = %q, want %q", i, page2[i], w)
		}
	}

	errCode = gfs.Releasedir("/scheme", fh)
	if errCode != 0 {
		t.Fatalf("Releasedir errCode = %v, want 0", errCode)
	}
}

func TestGrammarFS_Read(t *testing.T) {
	gfs, _ := newTestFS()

	tests := []struct {
		name     string
		path     string
		offset   int64
		buffSize int
		wantN    int
		wantData string
	}{
		{
			name:     "read alternative from start",
			path:     "/scheme/0",
			offset:   0,
			buffSize: 100,
			wantN:    len("http\n"),
			wantData: "http\n",
		},
		{
			name:     "read with offset",
			path:     "/host/0",
			offset:   8,
			buffSize: 100,
			wantN:    len("org\n"),
			wantData: "org\n",
		},
		{
			name:     "read past end of file",
			path:     "/scheme/0",
			offset:   100,
			buffSize: 100,
			wantN:    0,
		},
		{
			name:     "read non-existent path",
			path:     "/does-not-exist",
			offset:   0,
			buffSize: 100,
			wantN:    -fuse.ENOENT,
		},
		{
			name:     "read a directory returns EISDIR",
			path:     "/scheme",
			offset:   0,
			buffSize: 100,
			wantN:    -fuse.EISDIR,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buff := make([]byte, tt.buffSize)
			n := gfs.Read(tt.path, buff, tt.offset, 0)

			if n != tt.wantN {
				t.Errorf("Read() n = %v, want %v", n, tt.wantN)
			}
			if n > 0 && tt.wantData != "" {
				if got := string(buff[:n]); got != tt.wantData {
					t.Errorf("Read() data = %q, want %q", got, tt.wantData)
				}
			}
		})
	}
}

func TestGrammarFS_HotSwap(t *testing.T) {
	gfs, src := newTestFS()

	next := api.NewGrammar()
	next.Add(api.StartSymbol, "<word>")
	next.Add("<word>", "swapped")
	src.Swap(next)

	buff := make([]byte, 32)
	n := gfs.Read("/word/0", buff, 0, 0)
	if got := string(buff[:n]); got != "swapped\n" {
		t.Errorf("Read after swap = %q, want %q", got, "swapped\n")
	}

	if errCode := gfs.Getattr("/scheme", &fuse.Stat_t{}, 0); errCode != -fuse.ENOENT {
		t.Errorf("Getattr(old dir) = %v, want ENOENT", errCode)
	}
}
