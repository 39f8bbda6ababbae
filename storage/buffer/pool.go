// Package buffer implements the buffer pool: the frame table that maps
// page ids to in-memory frames, the free list, and the glue between the
// LRU-K replacer and the disk manager (spec.md §4.2). It also defines the
// scoped page guards (spec.md §4.3) since their release protocol is the
// buffer pool's own UnpinPage.
package buffer

import (
	"fmt"
	"log"
	"sync"

	"github.com/dustin/go-humanize"

	"stonedb/config"
	"stonedb/dberr"
	"stonedb/storage/disk"
	"stonedb/storage/page"
	"stonedb/storage/replacer"
)

// Pool is the buffer pool manager. One mutex guards the page table, the
// free list, and every call into the replacer (spec.md §4.2(d)); page
// content itself is guarded by each Page's own r/w latch, never by this
// mutex.
type Pool struct {
	mu sync.Mutex

	frames   []*page.Page
	freeList []page.FrameID
	pageTbl  map[page.ID]page.FrameID

	replacer *replacer.LRUKReplacer
	disk     disk.Manager

	nextPageID page.ID
}

// NewPool constructs a pool of opts.PoolSize frames, all initially free,
// backed by dm for eviction writes and page reads.
func NewPool(opts config.Options, dm disk.Manager) *Pool {
	p := &Pool{
		frames:   make([]*page.Page, opts.PoolSize),
		freeList: make([]page.FrameID, 0, opts.PoolSize),
		pageTbl:  make(map[page.ID]page.FrameID, opts.PoolSize),
		replacer: replacer.NewLRUKReplacer(opts.PoolSize, opts.ReplacerK),
		disk:     dm,
	}
	for i := 0; i < opts.PoolSize; i++ {
		p.frames[i] = page.NewPage()
		p.freeList = append(p.freeList, page.FrameID(i))
	}
	return p
}

// acquireFrame implements the core protocol (spec.md §4.2): take from the
// free list first, else ask the replacer to evict, flushing the victim if
// dirty. Returns false if neither source has a frame to offer. Caller must
// hold p.mu.
func (p *Pool) acquireFrame() (page.FrameID, bool) {
	if n := len(p.freeList); n > 0 {
		fid := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return fid, true
	}

	fid, ok := p.replacer.Evict()
	if !ok {
		return 0, false
	}

	victim := p.frames[fid]
	if victim.IsDirty() {
		if err := p.disk.WritePage(victim.ID(), victim.Data()); err != nil {
			log.Printf("[BufferPool] EVICT flush of page=%d failed: %v", victim.ID(), err)
		}
	}
	delete(p.pageTbl, victim.ID())
	victim.ResetMemory()
	return fid, true
}

// NewPage allocates a fresh page id, installs it in a frame, and returns it
// pinned once with pin_count=1 and is_dirty=false.
func (p *Pool) NewPage() (page.ID, *page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.acquireFrame()
	if !ok {
		return page.InvalidID, nil, dberr.ErrNoFreeFrame
	}

	id, err := p.disk.AllocatePage()
	if err != nil {
		p.freeList = append(p.freeList, fid)
		return page.InvalidID, nil, fmt.Errorf("buffer: allocate page: %w", err)
	}

	pg := p.frames[fid]
	pg.SetID(id)
	pg.IncPinCount()
	p.pageTbl[id] = fid

	if err := p.replacer.RecordAccess(fid, replacer.AccessUnknown); err != nil {
		log.Printf("[BufferPool] NewPage: replacer RecordAccess: %v", err)
	}
	if err := p.replacer.SetEvictable(fid, false); err != nil {
		log.Printf("[BufferPool] NewPage: replacer SetEvictable: %v", err)
	}

	log.Printf("[BufferPool] NEW  pageID=%d frame=%d", id, fid)
	return id, pg, nil
}

// FetchPage returns the page for id, pinning it. If resident, this is a
// cache hit; otherwise a frame is acquired and the page is read from disk.
// Returns dberr.ErrNoFreeFrame if no frame is available either way.
func (p *Pool) FetchPage(id page.ID) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fid, ok := p.pageTbl[id]; ok {
		pg := p.frames[fid]
		pg.IncPinCount()
		if err := p.replacer.RecordAccess(fid, replacer.AccessUnknown); err != nil {
			log.Printf("[BufferPool] FetchPage: replacer RecordAccess: %v", err)
		}
		if err := p.replacer.SetEvictable(fid, false); err != nil {
			log.Printf("[BufferPool] FetchPage: replacer SetEvictable: %v", err)
		}
		log.Printf("[BufferPool] HIT  pageID=%d frame=%d pinCount=%d", id, fid, pg.PinCount())
		return pg, nil
	}

	fid, ok := p.acquireFrame()
	if !ok {
		return nil, dberr.ErrNoFreeFrame
	}

	pg := p.frames[fid]
	pg.SetID(id)
	if err := p.disk.ReadPage(id, pg.Data()); err != nil {
		// Roll back: return the frame to the free list, this page never
		// became resident.
		pg.ResetMemory()
		p.freeList = append(p.freeList, fid)
		return nil, fmt.Errorf("buffer: fetch page %d: %w", id, err)
	}

	pg.IncPinCount()
	p.pageTbl[id] = fid
	if err := p.replacer.RecordAccess(fid, replacer.AccessUnknown); err != nil {
		log.Printf("[BufferPool] FetchPage: replacer RecordAccess: %v", err)
	}
	if err := p.replacer.SetEvictable(fid, false); err != nil {
		log.Printf("[BufferPool] FetchPage: replacer SetEvictable: %v", err)
	}

	log.Printf("[BufferPool] MISS pageID=%d frame=%d — loaded from disk", id, fid)
	return pg, nil
}

// UnpinPage decrements a page's pin count, OR-merging isDirty into the
// frame's dirty flag. Returns false if the page is not resident or is
// already unpinned. Once the pin count reaches zero, the frame becomes
// evictable.
func (p *Pool) UnpinPage(id page.ID, isDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTbl[id]
	if !ok {
		return false
	}
	pg := p.frames[fid]
	if pg.PinCount() == 0 {
		return false
	}

	pg.DecPinCount()
	pg.SetDirty(isDirty)

	if pg.PinCount() == 0 {
		if err := p.replacer.SetEvictable(fid, true); err != nil {
			log.Printf("[BufferPool] UnpinPage: replacer SetEvictable: %v", err)
		}
	}
	return true
}

// FlushPage writes a resident page to disk unconditionally, clearing its
// dirty flag on success. Returns false if the page is not resident.
func (p *Pool) FlushPage(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(id)
}

func (p *Pool) flushLocked(id page.ID) bool {
	fid, ok := p.pageTbl[id]
	if !ok {
		return false
	}
	pg := p.frames[fid]
	if err := p.disk.WritePage(pg.ID(), pg.Data()); err != nil {
		log.Printf("[BufferPool] FLUSH pageID=%d failed: %v", id, err)
		return false
	}
	pg.ClearDirty()
	return true
}

// FlushAll flushes every resident page.
func (p *Pool) FlushAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.pageTbl)
	for id := range p.pageTbl {
		p.flushLocked(id)
	}
	log.Printf("[BufferPool] FlushAll — flushed %s pages", humanize.Comma(int64(n)))
}

// DeletePage removes a page from the pool entirely. Returns true if the
// page was not resident (nothing to do) or was successfully removed; false
// if it is still pinned. A dirty page is flushed before removal; the frame
// returns to the free list and the page id is released back to disk.
func (p *Pool) DeletePage(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTbl[id]
	if !ok {
		return true
	}
	pg := p.frames[fid]
	if pg.PinCount() > 0 {
		return false
	}

	if pg.IsDirty() {
		if !p.flushLocked(id) {
			return false
		}
	}

	delete(p.pageTbl, id)
	if err := p.replacer.Remove(fid); err != nil {
		log.Printf("[BufferPool] DeletePage: replacer Remove: %v", err)
	}
	p.freeList = append(p.freeList, fid)
	pg.ResetMemory()

	if err := p.disk.DeallocatePage(id); err != nil {
		log.Printf("[BufferPool] DeletePage: disk DeallocatePage: %v", err)
	}
	return true
}

// Size returns the number of frames in the pool (its configured capacity).
func (p *Pool) Size() int {
	return len(p.frames)
}

// ReplacerSize exposes the replacer's evictable count, used by tests
// asserting spec.md §8 invariant 3.
func (p *Pool) ReplacerSize() int {
	return p.replacer.Size()
}
