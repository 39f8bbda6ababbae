package btree

import (
	"fmt"

	"stonedb/storage/buffer"
	"stonedb/storage/page"
)

// Iterator is a forward-only range scan over a tree's leaves, grounded on
// the teacher's SeekGE/Next/Close (storage_engine/access/indexfile_manager/bplustree/iterator.go)
// and adapted to a read-latched zero-copy LeafPage view plus an intra-leaf
// cursor instead of a heap Node. It holds exactly one leaf's read latch and
// pin at a time; Next() releases the current leaf's latch and pin before
// fetching the next leaf, Close() releases whatever it still holds.
type Iterator[K any] struct {
	tree  *BPlusTree[K]
	guard buffer.ReadGuard
	idx   int
	end   bool
}

// Begin returns an iterator positioned at the tree's first entry.
func (t *BPlusTree[K]) Begin() (*Iterator[K], error) {
	id, err := t.leftmostLeaf()
	if err != nil {
		return nil, err
	}
	if id == page.InvalidID {
		return t.End(), nil
	}
	guard, err := t.pool.FetchPageRead(id)
	if err != nil {
		return nil, fmt.Errorf("btree: fetch leaf %d: %w", id, err)
	}
	if t.leafView(guard.Page()).Size() == 0 {
		guard.Drop()
		return t.End(), nil
	}
	return &Iterator[K]{tree: t, guard: guard, idx: 0}, nil
}

// BeginAt returns an iterator positioned at the first entry with key ≥ k.
func (t *BPlusTree[K]) BeginAt(k K) (*Iterator[K], error) {
	header, err := t.pool.FetchPageRead(t.headerPageID)
	if err != nil {
		return nil, fmt.Errorf("btree: fetch header: %w", err)
	}
	rootID := readHeaderRoot(header.Page().Data())
	header.Drop()
	if rootID == page.InvalidID {
		return t.End(), nil
	}

	cur, err := t.pool.FetchPageRead(rootID)
	if err != nil {
		return nil, fmt.Errorf("btree: fetch root: %w", err)
	}
	for {
		data := t.usable(cur.Page())
		if readPageType(data) == pageTypeLeaf {
			break
		}
		internal := NewInternalPage(data, t.codec)
		childID := internal.ChildAt(internal.FindChildIndex(k, t.cmp))
		child, err := t.pool.FetchPageRead(childID)
		if err != nil {
			cur.Drop()
			return nil, fmt.Errorf("btree: fetch child %d: %w", childID, err)
		}
		cur.Drop()
		cur = child
	}

	view := t.leafView(cur.Page())
	idx := view.LowerBound(k, t.cmp)
	if idx < view.Size() {
		return &Iterator[K]{tree: t, guard: cur, idx: idx}, nil
	}

	nextID := view.NextPageID()
	cur.Drop()
	if nextID == page.InvalidID {
		return t.End(), nil
	}
	next, err := t.pool.FetchPageRead(nextID)
	if err != nil {
		return nil, fmt.Errorf("btree: fetch leaf %d: %w", nextID, err)
	}
	if t.leafView(next.Page()).Size() == 0 {
		next.Drop()
		return t.End(), nil
	}
	return &Iterator[K]{tree: t, guard: next, idx: 0}, nil
}

// End returns an already-exhausted iterator, the sentinel both a scan's
// terminal state and Equal's right-hand argument compare against.
func (t *BPlusTree[K]) End() *Iterator[K] {
	return &Iterator[K]{tree: t, end: true}
}

// IsEnd reports whether the iterator has been exhausted.
func (it *Iterator[K]) IsEnd() bool { return it.end }

// Next advances the iterator by one entry, crossing into the next leaf via
// its next_page_id link when the current leaf is exhausted.
func (it *Iterator[K]) Next() error {
	if it.end {
		return nil
	}
	view := it.tree.leafView(it.guard.Page())
	it.idx++
	if it.idx < view.Size() {
		return nil
	}

	nextID := view.NextPageID()
	it.guard.Drop()
	if nextID == page.InvalidID {
		it.guard = buffer.ReadGuard{}
		it.end = true
		return nil
	}
	guard, err := it.tree.pool.FetchPageRead(nextID)
	if err != nil {
		it.end = true
		return fmt.Errorf("btree: fetch leaf %d: %w", nextID, err)
	}
	it.guard = guard
	it.idx = 0
	return nil
}

// Key returns the key at the iterator's current position.
func (it *Iterator[K]) Key() K {
	return it.tree.leafView(it.guard.Page()).KeyAt(it.idx)
}

// Value returns the RID at the iterator's current position.
func (it *Iterator[K]) Value() RID {
	return it.tree.leafView(it.guard.Page()).RIDAt(it.idx)
}

// Equal reports whether it and other refer to the same position: both
// exhausted, or the same leaf page at the same intra-leaf index.
func (it *Iterator[K]) Equal(other *Iterator[K]) bool {
	if it.end || other.end {
		return it.end == other.end
	}
	return it.guard.PageID() == other.guard.PageID() && it.idx == other.idx
}

// Close releases the leaf latch and pin the iterator currently holds, if
// any. Safe to call more than once.
func (it *Iterator[K]) Close() {
	if !it.end {
		it.guard.Drop()
		it.end = true
	}
}
