package btree

import "stonedb/storage/buffer"

// opContext is the explicit path stack a single Insert or Remove owns while
// write-latch crabbing down the tree. It replaces the reference
// implementation's Context — a deque of guards plus an optional header
// guard (spec.md §9's DESIGN NOTES) — with a plain growable slice: entries
// are appended as the operation descends and dropped from the tail up the
// instant a child is proven safe, or walked back up the instant a child
// underflows.
//
// Tree pages are never represented as heap-owning node objects with parent
// pointers; the only parent/child relationship that exists in memory is
// this stack of guards, addressed purely by page id.
type opContext struct {
	header *buffer.WriteGuard
	path   []buffer.WriteGuard
}

func newOpContext(header buffer.WriteGuard) *opContext {
	return &opContext{header: &header}
}

// push appends a newly write-latched page to the tail of the path — it
// becomes the new bottom-most ancestor.
func (c *opContext) push(g buffer.WriteGuard) {
	c.path = append(c.path, g)
}

// releaseAncestors drops the header guard (if still held) and every page on
// the path, because the page about to be pushed is known safe: no
// structural change can propagate past it. Safe to call when the path is already
// empty.
func (c *opContext) releaseAncestors() {
	if c.header != nil {
		c.header.Drop()
		c.header = nil
	}
	for i := range c.path {
		c.path[i].Drop()
	}
	c.path = c.path[:0]
}

// popParent removes and returns the bottom-most ancestor on the path, used
// while walking back up during delete to reach the parent of an underflowed
// child. ok is false once the path is exhausted, meaning the header (if
// still held) is the only thing left — i.e. the child in question is the
// root.
func (c *opContext) popParent() (g buffer.WriteGuard, ok bool) {
	if len(c.path) == 0 {
		return buffer.WriteGuard{}, false
	}
	g = c.path[len(c.path)-1]
	c.path = c.path[:len(c.path)-1]
	return g, true
}

// releaseAll drops everything still held, regardless of safety — used once
// an operation has fully completed or failed.
func (c *opContext) releaseAll() {
	c.releaseAncestors()
}
