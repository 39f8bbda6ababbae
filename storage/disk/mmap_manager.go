//go:build unix

package disk

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"stonedb/config"
	"stonedb/dberr"
	"stonedb/storage/page"
)

// MMapManager is a Manager backed by a memory-mapped file, grounded on
// 7thCode-BPTree's internal/mmap package and nyan233-sokv's internal/sys
// helpers: both wrap unix.Mmap/Munmap/Msync the same way. It trades the
// FileManager's ReadAt/WriteAt syscalls for direct memory copies, at the
// cost of having to remap whenever the file grows past its current mapping.
type MMapManager struct {
	mu         sync.Mutex
	file       *os.File
	data       []byte
	mappedSize int64
	nextPageID int64
}

// mmapGrowPages is how many pages the mapping is extended by whenever an
// allocation would run past the current mapping.
const mmapGrowPages = 256

// NewMMapManager opens (creating if absent) the backing file, extends it to
// at least one growth chunk, and maps it into memory.
func NewMMapManager(path string) (*MMapManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk: failed to open file %s: %w: %w", path, dberr.ErrIOError, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: failed to stat file %s: %w: %w", path, dberr.ErrIOError, err)
	}

	m := &MMapManager{file: f, nextPageID: info.Size() / config.PageSize}
	if err := m.growLocked(mmapGrowPages * config.PageSize); err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

// growLocked extends the backing file (if needed) and remaps it so at
// least minBytes are addressable. Must be called with m.mu held.
func (m *MMapManager) growLocked(minBytes int64) error {
	if m.mappedSize >= minBytes {
		return nil
	}

	newSize := m.mappedSize
	if newSize == 0 {
		newSize = mmapGrowPages * config.PageSize
	}
	for newSize < minBytes {
		newSize += mmapGrowPages * config.PageSize
	}

	if err := m.file.Truncate(newSize); err != nil {
		return fmt.Errorf("disk: failed to extend mmap file: %w: %w", dberr.ErrIOError, err)
	}

	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return fmt.Errorf("disk: failed to unmap during grow: %w: %w", dberr.ErrIOError, err)
		}
	}

	data, err := unix.Mmap(int(m.file.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("disk: failed to mmap: %w: %w", dberr.ErrIOError, err)
	}

	m.data = data
	m.mappedSize = newSize
	return nil
}

// ReadPage copies a page out of the mapping, verifying its checksum exactly
// as FileManager does.
func (m *MMapManager) ReadPage(id page.ID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(buf) != config.PageSize {
		return fmt.Errorf("disk: ReadPage buffer must be %d bytes, got %d", config.PageSize, len(buf))
	}

	offset := id * config.PageSize
	if offset+config.PageSize > m.mappedSize {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}

	copy(buf, m.data[offset:offset+config.PageSize])
	if allZero(buf) {
		return nil
	}
	if !page.VerifyChecksum(buf) {
		return fmt.Errorf("disk: reading page %d: %w: %w", id, dberr.ErrIOError, dberr.ErrChecksumMismatch)
	}
	return nil
}

// WritePage stamps a checksum and copies a page into the mapping, growing
// the mapping first if the page falls past its current extent.
func (m *MMapManager) WritePage(id page.ID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(buf) != config.PageSize {
		return fmt.Errorf("disk: WritePage buffer must be %d bytes, got %d", config.PageSize, len(buf))
	}

	offset := id * config.PageSize
	if err := m.growLocked(offset + config.PageSize); err != nil {
		return err
	}

	page.StampChecksum(buf)
	copy(m.data[offset:offset+config.PageSize], buf)
	return nil
}

// AllocatePage hands out the next monotonic page id.
func (m *MMapManager) AllocatePage() (page.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextPageID
	m.nextPageID++
	return id, nil
}

// DeallocatePage is a no-op placeholder, matching FileManager.
func (m *MMapManager) DeallocatePage(id page.ID) error { return nil }

// Shutdown flushes the mapping to disk (unix.Msync), unmaps, and closes.
func (m *MMapManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("disk: msync on shutdown: %w: %w", dberr.ErrIOError, err)
	}
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("disk: munmap on shutdown: %w: %w", dberr.ErrIOError, err)
	}
	m.data = nil
	if err := m.file.Close(); err != nil {
		return fmt.Errorf("disk: close on shutdown: %w: %w", dberr.ErrIOError, err)
	}
	m.file = nil
	return nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
