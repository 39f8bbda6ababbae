// Package page defines the fixed-size byte buffer that is the unit of
// storage and its checksum trailer; the tree's typed header/internal/leaf
// views over it live in storage/index/btree. Pages are not heap-allocated per id: the buffer pool owns an
// array of Page values (one per frame) and reuses them across page ids as
// frames are recycled.
package page

import (
	"sync"

	"stonedb/config"
)

// ID identifies a page. InvalidID marks the absence of a page.
type ID = int64

// InvalidID marks the absence of a page (an empty tree's root, or the end
// of a leaf sibling chain).
const InvalidID ID = config.InvalidPageID

// FrameID indexes a slot in the buffer pool's frame array.
type FrameID = int32

// ChecksumSize is the trailing byte count the disk manager reserves on
// every page for an xxhash checksum (see storage/disk). Tree-level page
// layouts (header/internal/leaf) are computed against UsableSize, not the
// full PageSize, so a corrupted checksum never corrupts a live slot.
const ChecksumSize = 8

// UsableSize is the portion of a page available to tree-level layouts.
const UsableSize = config.PageSize - ChecksumSize

// Page is one frame's content plus its pin count, dirty flag, and the
// reader/writer latch guarding content mutation. The pool mutex (not this
// struct) guards the pin count and dirty flag; the latch guards Data().
type Page struct {
	id       ID
	data     []byte
	pinCount int32
	dirty    bool
	latch    sync.RWMutex
}

// NewPage allocates a frame-resident Page with a zeroed, full-PageSize
// buffer. Called once per frame when the pool is constructed; frames are
// reused thereafter via ResetMemory.
func NewPage() *Page {
	return &Page{
		id:   InvalidID,
		data: make([]byte, config.PageSize),
	}
}

// ID returns the page id currently resident in this frame.
func (p *Page) ID() ID { return p.id }

// SetID installs a page id into this frame. Called by the buffer pool while
// holding its own mutex, never concurrently with Data() readers/writers.
func (p *Page) SetID(id ID) { p.id = id }

// Data returns the full PageSize buffer. Callers holding a Read or Write
// guard may read or mutate it; callers must not retain the slice past the
// guard's release.
func (p *Page) Data() []byte { return p.data }

// PinCount returns the current pin count. Must be read/written only while
// the buffer pool's mutex is held.
func (p *Page) PinCount() int32 { return p.pinCount }

// IncPinCount bumps the pin count by one.
func (p *Page) IncPinCount() { p.pinCount++ }

// DecPinCount decrements the pin count, returning false (a no-op) if it is
// already zero — pin count must never go negative.
func (p *Page) DecPinCount() bool {
	if p.pinCount == 0 {
		return false
	}
	p.pinCount--
	return true
}

// IsDirty reports whether the in-memory copy differs from the on-disk copy.
func (p *Page) IsDirty() bool { return p.dirty }

// SetDirty OR-merges a dirty flag into the frame: once true, a false does
// not clear it. Clearing only happens on a successful flush.
func (p *Page) SetDirty(dirty bool) {
	if dirty {
		p.dirty = true
	}
}

// ClearDirty resets the dirty flag after a successful flush.
func (p *Page) ClearDirty() { p.dirty = false }

// ResetMemory reinitializes the frame for reuse: zeroes the buffer, resets
// the pin count and dirty flag, and sets the id to invalid. Called by the
// buffer pool after a victim frame has been flushed (if needed) and its
// page-table entry erased.
func (p *Page) ResetMemory() {
	for i := range p.data {
		p.data[i] = 0
	}
	p.id = InvalidID
	p.pinCount = 0
	p.dirty = false
}

// RLatch/RUnlatch/WLatch/WUnlatch guard page content, orthogonal to the
// buffer pool's own mutex (spec: "page-content mutation uses the page's own
// r/w latch").
func (p *Page) RLatch()   { p.latch.RLock() }
func (p *Page) RUnlatch() { p.latch.RUnlock() }
func (p *Page) WLatch()   { p.latch.Lock() }
func (p *Page) WUnlatch() { p.latch.Unlock() }
