// Package disk provides the external collaborator the buffer pool fetches
// pages from and flushes pages to (spec.md §4.5: "Core assumes blocking
// I/O"). It owns no page-table or pin bookkeeping — that is the buffer
// pool's job.
package disk

import (
	"fmt"
	"os"
	"sync"

	"stonedb/config"
	"stonedb/dberr"
	"stonedb/storage/page"
)

// Manager is the external collaborator interface the buffer pool and the
// B+ tree depend on. One Manager backs one file: the one-index-per-file
// granularity the teacher's BPlusTree already assumes (a single fileID per
// tree), generalized to the core's single-file disk manager.
type Manager interface {
	ReadPage(id page.ID, buf []byte) error
	WritePage(id page.ID, buf []byte) error
	AllocatePage() (page.ID, error)
	DeallocatePage(id page.ID) error
	Shutdown() error
}

// FileManager is a Manager backed by a plain os.File, grounded on
// storage_engine/disk_manager's file-handle ReadAt/WriteAt approach.
type FileManager struct {
	mu         sync.RWMutex
	file       *os.File
	path       string
	nextPageID int64
}

// NewFileManager opens (creating if absent) the backing file and resumes
// page-id allocation from wherever the file's current size leaves off.
func NewFileManager(path string) (*FileManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk: failed to open file %s: %w: %w", path, dberr.ErrIOError, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: failed to stat file %s: %w: %w", path, dberr.ErrIOError, err)
	}
	return &FileManager{
		file:       f,
		path:       path,
		nextPageID: info.Size() / config.PageSize,
	}, nil
}

// ReadPage fills buf (which must be config.PageSize bytes) with the on-disk
// content of id, verifying the trailing checksum the disk manager stamps on
// every write. A page that was allocated but never written reads back as
// all zeros and is not checksum-checked (nothing has been stamped yet).
func (m *FileManager) ReadPage(id page.ID, buf []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(buf) != config.PageSize {
		return fmt.Errorf("disk: ReadPage buffer must be %d bytes, got %d", config.PageSize, len(buf))
	}

	offset := id * config.PageSize
	n, err := m.file.ReadAt(buf, offset)
	if err != nil && n == 0 {
		// Never written: treat as a freshly allocated, all-zero page.
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	if n < len(buf) {
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		return nil
	}

	if !page.VerifyChecksum(buf) {
		return fmt.Errorf("disk: reading page %d: %w: %w", id, dberr.ErrIOError, dberr.ErrChecksumMismatch)
	}
	return nil
}

// WritePage stamps a checksum into buf's trailer and writes it to disk.
func (m *FileManager) WritePage(id page.ID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(buf) != config.PageSize {
		return fmt.Errorf("disk: WritePage buffer must be %d bytes, got %d", config.PageSize, len(buf))
	}

	page.StampChecksum(buf)

	offset := id * config.PageSize
	if _, err := m.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("disk: failed to write page %d: %w: %w", id, dberr.ErrIOError, err)
	}
	return nil
}

// AllocatePage hands out the next monotonic page id. It does not write
// anything to disk — that happens the first time the buffer pool flushes
// the page.
func (m *FileManager) AllocatePage() (page.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextPageID
	m.nextPageID++
	return id, nil
}

// DeallocatePage is a no-op placeholder: a teaching-grade core has no
// free-page-list to reclaim ids into, matching the reference implementation
// this spec distills (its DeallocatePage is likewise empty pending a real
// free-space map).
func (m *FileManager) DeallocatePage(id page.ID) error { return nil }

// Shutdown flushes OS buffers and closes the file.
func (m *FileManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil {
		return nil
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("disk: sync on shutdown: %w: %w", dberr.ErrIOError, err)
	}
	if err := m.file.Close(); err != nil {
		return fmt.Errorf("disk: close on shutdown: %w: %w", dberr.ErrIOError, err)
	}
	m.file = nil
	return nil
}
