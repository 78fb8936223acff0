// Package handoff publishes the mined grammar to external consumers
// through a double-buffered arena file and a memory-mapped control
// block, so fuzzers can pick up grammar updates without any IPC.
package handoff

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	ArenaHeaderSize = 4096
	ArenaMagic      = 0x47525331

	arenaVersion     = 1
	arenaHeaderBytes = 32
)

// ArenaHeader is the fixed preamble of an arena file. The two payload
// lengths record how many bytes of each buffer hold grammar JSON.
type ArenaHeader struct {
	Magic        uint32
	Version      uint8
	ActiveBuffer uint8
	Padding      [2]byte
	Sequence     uint64
	PayloadLen   [2]uint64
}

// ReadArenaHeader reads the header from the front of the file.
func ReadArenaHeader(f *os.File) (*ArenaHeader, error) {
	buf := make([]byte, arenaHeaderBytes)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, err
	}

	h := &ArenaHeader{
		Magic:        binary.LittleEndian.Uint32(buf[0:4]),
		Version:      buf[4],
		ActiveBuffer: buf[5],
		Sequence:     binary.LittleEndian.Uint64(buf[8:16]),
	}
	h.PayloadLen[0] = binary.LittleEndian.Uint64(buf[16:24])
	h.PayloadLen[1] = binary.LittleEndian.Uint64(buf[24:32])
	return h, nil
}

// WriteArenaHeader writes the header to the front of the file.
func WriteArenaHeader(f *os.File, h *ArenaHeader) error {
	buf := make([]byte, arenaHeaderBytes)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.ActiveBuffer
	binary.LittleEndian.PutUint64(buf[8:16], h.Sequence)
	binary.LittleEndian.PutUint64(buf[16:24], h.PayloadLen[0])
	binary.LittleEndian.PutUint64(buf[24:32], h.PayloadLen[1])
	_, err := f.WriteAt(buf, 0)
	return err
}

// ActiveOffset returns the byte offset of the active buffer.
func (h *ArenaHeader) ActiveOffset(fileSize int64) (int64, error) {
	if h.Magic != ArenaMagic {
		return 0, fmt.Errorf("invalid arena magic: %x", h.Magic)
	}
	if h.Version != arenaVersion {
		return 0, fmt.Errorf("unsupported arena version: %d", h.Version)
	}
	if h.ActiveBuffer > 1 {
		return 0, fmt.Errorf("invalid active buffer index: %d", h.ActiveBuffer)
	}

	bufferSize := (fileSize - ArenaHeaderSize) / 2
	if bufferSize <= 0 {
		return 0, fmt.Errorf("invalid arena size: %d", fileSize)
	}
	return ArenaHeaderSize + int64(h.ActiveBuffer)*bufferSize, nil
}

// CreateArena creates an empty arena at path with two buffers of
// bufferSize bytes each. The first flush bumps the sequence to 1.
func CreateArena(path string, bufferSize int64) error {
	if bufferSize <= 0 {
		return fmt.Errorf("invalid buffer size: %d", bufferSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create arena: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := f.Truncate(ArenaHeaderSize + 2*bufferSize); err != nil {
		return fmt.Errorf("size arena: %w", err)
	}
	h := &ArenaHeader{Magic: ArenaMagic, Version: arenaVersion}
	if err := WriteArenaHeader(f, h); err != nil {
		return fmt.Errorf("write arena header: %w", err)
	}
	return f.Sync()
}

// FlushArena writes payload into the inactive buffer, flips the active
// buffer index and increments the sequence. Returns the new sequence.
func FlushArena(path string, payload []byte) (uint64, error) {
	af, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("open arena: %w", err)
	}
	defer func() { _ = af.Close() }()

	info, err := af.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat arena: %w", err)
	}
	header, err := ReadArenaHeader(af)
	if err != nil {
		return 0, fmt.Errorf("read arena header: %w", err)
	}
	if _, err := header.ActiveOffset(info.Size()); err != nil {
		return 0, err
	}

	bufferSize := (info.Size() - ArenaHeaderSize) / 2
	if int64(len(payload)) > bufferSize {
		return 0, fmt.Errorf("payload size %d exceeds arena buffer size %d", len(payload), bufferSize)
	}

	inactive := uint8(1) - header.ActiveBuffer
	inactiveOffset := ArenaHeaderSize + int64(inactive)*bufferSize
	if _, err := af.WriteAt(payload, inactiveOffset); err != nil {
		return 0, fmt.Errorf("write payload to inactive buffer: %w", err)
	}

	// Flip header: active_buffer ^= 1, sequence++
	header.ActiveBuffer = inactive
	header.PayloadLen[inactive] = uint64(len(payload))
	header.Sequence++
	if err := WriteArenaHeader(af, header); err != nil {
		return 0, fmt.Errorf("write arena header: %w", err)
	}
	if err := af.Sync(); err != nil {
		return 0, fmt.Errorf("sync arena: %w", err)
	}
	return header.Sequence, nil
}

// ReadActive returns the payload of the active buffer and the arena
// sequence it was read at. Consumers poll the control block generation
// and call this when it changes.
func ReadActive(path string) ([]byte, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	header, err := ReadArenaHeader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("read arena header: %w", err)
	}
	offset, err := header.ActiveOffset(info.Size())
	if err != nil {
		return nil, 0, err
	}

	bufferSize := (info.Size() - ArenaHeaderSize) / 2
	n := header.PayloadLen[header.ActiveBuffer]
	if n > uint64(bufferSize) {
		return nil, 0, fmt.Errorf("payload length %d exceeds buffer size %d", n, bufferSize)
	}

	payload := make([]byte, n)
	if _, err := f.ReadAt(payload, offset); err != nil {
		return nil, 0, fmt.Errorf("read active buffer: %w", err)
	}
	return payload, header.Sequence, nil
}
