package buffer

import "stonedb/storage/page"

// BasicGuard holds exactly one pin on a page and releases it on Drop,
// scope exit (via `defer g.Drop()`), or move-assignment overwrite. It is
// the pin-only variant described in spec.md §4.3; Read/WriteGuard compose
// one internally and add a latch.
//
// Go has no destructors or move semantics, so "moved-from" is modeled
// explicitly: Assign releases the receiver's current resources, adopts the
// source's, and clears the source — the same contract the reference
// implementation's move-assignment operator enforces (spec.md §9's
// DESIGN NOTES), just spelled as a method call instead of `=`.
type BasicGuard struct {
	pool  *Pool
	pg    *page.Page
	dirty bool
}

// FetchPageBasic fetches id with a pin only (no latch). A failed fetch
// yields a zero-value guard whose Drop is a no-op.
func (p *Pool) FetchPageBasic(id page.ID) (BasicGuard, error) {
	pg, err := p.FetchPage(id)
	if err != nil {
		return BasicGuard{}, err
	}
	return BasicGuard{pool: p, pg: pg}, nil
}

// NewPageGuarded allocates a new page and returns it wrapped in a
// BasicGuard already holding its single pin.
func (p *Pool) NewPageGuarded() (page.ID, BasicGuard, error) {
	id, pg, err := p.NewPage()
	if err != nil {
		return page.InvalidID, BasicGuard{}, err
	}
	return id, BasicGuard{pool: p, pg: pg}, nil
}

// Page returns the underlying page, or nil for a null-equivalent guard.
func (g *BasicGuard) Page() *page.Page { return g.pg }

// PageID returns the guarded page's id, or page.InvalidID if the guard
// holds nothing.
func (g *BasicGuard) PageID() page.ID {
	if g.pg == nil {
		return page.InvalidID
	}
	return g.pg.ID()
}

// MarkDirty sets the guard's dirty bit, passed to UnpinPage on release.
func (g *BasicGuard) MarkDirty() { g.dirty = true }

// Drop is idempotent: it unpins the held page (if any) and clears the
// guard so a second call is a safe no-op.
func (g *BasicGuard) Drop() {
	if g.pool != nil && g.pg != nil {
		g.pool.UnpinPage(g.pg.ID(), g.dirty)
	}
	g.pool = nil
	g.pg = nil
	g.dirty = false
}

// Assign releases the receiver's current resources (if any), then adopts
// src's and clears src — the Go spelling of move-assignment.
func (g *BasicGuard) Assign(src *BasicGuard) {
	if g == src {
		return
	}
	g.Drop()
	g.pool, g.pg, g.dirty = src.pool, src.pg, src.dirty
	src.pool, src.pg, src.dirty = nil, nil, false
}

// ReadGuard holds a pin plus a reader latch. Drop releases the latch
// before the pin, so a thread waiting on the latch never observes a frame
// that is still pinned but no longer registered with the replacer (spec.md
// §9's corrected release order).
type ReadGuard struct {
	inner BasicGuard
}

// FetchPageRead fetches id, pins it, and acquires its reader latch.
func (p *Pool) FetchPageRead(id page.ID) (ReadGuard, error) {
	pg, err := p.FetchPage(id)
	if err != nil {
		return ReadGuard{}, err
	}
	pg.RLatch()
	return ReadGuard{inner: BasicGuard{pool: p, pg: pg}}, nil
}

// Page returns the underlying page, or nil for a null-equivalent guard.
func (g *ReadGuard) Page() *page.Page { return g.inner.pg }

// PageID returns the guarded page's id, or page.InvalidID if empty.
func (g *ReadGuard) PageID() page.ID { return g.inner.PageID() }

// Drop releases the reader latch, then unpins.
func (g *ReadGuard) Drop() {
	if g.inner.pg != nil {
		g.inner.pg.RUnlatch()
	}
	g.inner.Drop()
}

// Assign releases the receiver's resources before adopting src's.
func (g *ReadGuard) Assign(src *ReadGuard) {
	if g == src {
		return
	}
	g.Drop()
	g.inner.Assign(&src.inner)
}

// WriteGuard holds a pin plus a writer latch, and may mark the page dirty.
type WriteGuard struct {
	inner BasicGuard
}

// FetchPageWrite fetches id, pins it, and acquires its writer latch.
func (p *Pool) FetchPageWrite(id page.ID) (WriteGuard, error) {
	pg, err := p.FetchPage(id)
	if err != nil {
		return WriteGuard{}, err
	}
	pg.WLatch()
	return WriteGuard{inner: BasicGuard{pool: p, pg: pg}}, nil
}

// NewPageWriteGuarded allocates a new page and returns it wrapped in a
// WriteGuard already holding its single pin and writer latch. Safe to use
// on a brand-new page id: no other caller can know of it yet, so the latch
// can never be contended.
func (p *Pool) NewPageWriteGuarded() (page.ID, WriteGuard, error) {
	id, pg, err := p.NewPage()
	if err != nil {
		return page.InvalidID, WriteGuard{}, err
	}
	pg.WLatch()
	return id, WriteGuard{inner: BasicGuard{pool: p, pg: pg}}, nil
}

// Page returns the underlying page, or nil for a null-equivalent guard.
func (g *WriteGuard) Page() *page.Page { return g.inner.pg }

// PageID returns the guarded page's id, or page.InvalidID if empty.
func (g *WriteGuard) PageID() page.ID { return g.inner.PageID() }

// MarkDirty sets the guard's dirty bit, passed to UnpinPage on release.
func (g *WriteGuard) MarkDirty() { g.inner.MarkDirty() }

// Drop releases the writer latch, then unpins.
func (g *WriteGuard) Drop() {
	if g.inner.pg != nil {
		g.inner.pg.WUnlatch()
	}
	g.inner.Drop()
}

// Assign releases the receiver's resources before adopting src's.
func (g *WriteGuard) Assign(src *WriteGuard) {
	if g == src {
		return
	}
	g.Drop()
	g.inner.Assign(&src.inner)
}
