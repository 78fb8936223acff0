package gramfs

import (
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"
)

// WriteBackFunc is the callback triggered when a sample file written
// under /samples/ is closed. It receives the file name and the full
// content.
type WriteBackFunc func(name string, content []byte) error

// bytesFile implements billy.File backed by a static byte slice. Used
// for alternative files and the virtual _grammar.json.
type bytesFile struct {
	name string
	data []byte
	pos  int64
}

func (f *bytesFile) Name() string { return f.name }

func (f *bytesFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	if f.pos >= int64(len(f.data)) {
		return n, io.EOF
	}
	return n, nil
}

func (f *bytesFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *bytesFile) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = int64(len(f.data)) + offset
	}
	if newPos < 0 {
		newPos = 0
	}
	f.pos = newPos
	return f.pos, nil
}

func (f *bytesFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *bytesFile) Truncate(int64) error      { return errReadOnly }
func (f *bytesFile) Lock() error               { return nil }
func (f *bytesFile) Unlock() error             { return nil }
func (f *bytesFile) Close() error              { return nil }

// sampleFile implements billy.File with buffered writes and a commit
// on Close. NFS WRITE RPCs arrive as individual writes; the full
// content is handed to the write-back callback once, when the file is
// closed.
type sampleFile struct {
	fs      *FS
	name    string
	buf     []byte
	pos     int64
	written bool // true only when Write() has been called (not just Truncate)
}

func (f *sampleFile) Name() string { return f.name }

func (f *sampleFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	if f.pos >= int64(len(f.buf)) {
		return n, io.EOF
	}
	return n, nil
}

func (f *sampleFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *sampleFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	n := copy(f.buf[f.pos:], p)
	f.pos += int64(n)
	f.written = true
	f.fs.updatePending(f.name, int64(len(f.buf)))
	return n, nil
}

func (f *sampleFile) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = int64(len(f.buf)) + offset
	}
	if newPos < 0 {
		newPos = 0
	}
	f.pos = newPos
	return f.pos, nil
}

func (f *sampleFile) Truncate(size int64) error {
	if size < int64(len(f.buf)) {
		f.buf = f.buf[:size]
	} else if size > int64(len(f.buf)) {
		grown := make([]byte, size)
		copy(grown, f.buf)
		f.buf = grown
	}
	// Truncate alone does NOT mark written. NFS SETATTR(size=0)
	// causes a Truncate+Close cycle before the first WRITE; committing
	// there would hand an empty sample to the miner.
	return nil
}

// Close is the commit point. Only commit if Write() was actually
// called. An unwritten close must also leave the pending entry alone:
// go-nfs closes the Create handle immediately and GETATTRs the file
// before the WRITE RPCs open it again.
func (f *sampleFile) Close() error {
	if !f.written || f.fs.writeBack == nil {
		return nil
	}
	defer f.fs.dropPending(f.name)
	if err := f.fs.writeBack(f.name, f.buf); err != nil {
		return fmt.Errorf("write-back failed for %s: %w", f.name, err)
	}
	return nil
}

func (f *sampleFile) Lock() error   { return nil }
func (f *sampleFile) Unlock() error { return nil }

// Verify file types satisfy billy.File.
var (
	_ billy.File = (*bytesFile)(nil)
	_ billy.File = (*sampleFile)(nil)
)
