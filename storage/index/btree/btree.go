package btree

import (
	"fmt"

	"stonedb/config"
	"stonedb/storage/buffer"
	"stonedb/storage/page"
)

// BPlusTree is a persistent ordered map K → RID (unique keys), backed by a
// buffer pool and latch-crabbing for concurrent access (spec.md §4.4). One
// header page holds the tree's root_page_id; it is fetched and write-latched
// on every structural operation (Insert, Remove) since either may replace
// the root, and read-latched on GetValue and iterator construction.
type BPlusTree[K any] struct {
	pool          *buffer.Pool
	headerPageID  page.ID
	codec         KeyCodec[K]
	cmp           Comparator[K]
	leafMaxSize   int
	internalMax   int
	leafMinSize   int
	internalMin   int
}

// New allocates a fresh header page (root initially invalid) and returns a
// tree backed by pool. leafMaxSize/internalMaxSize come from spec.md §6's
// configuration table; the page's physical slot capacity must accommodate
// one slot beyond each max size, since split defers until after a
// temporary overflow insert (spec.md §4.4 step 3).
func New[K any](pool *buffer.Pool, codec KeyCodec[K], cmp Comparator[K], leafMaxSize, internalMaxSize int) (*BPlusTree[K], error) {
	id, guard, err := pool.NewPageGuarded()
	if err != nil {
		return nil, fmt.Errorf("btree: allocate header page: %w", err)
	}
	if err := writeHeaderRoot(guard.Page().Data(), page.InvalidID); err != nil {
		guard.Drop()
		return nil, err
	}
	guard.MarkDirty()
	guard.Drop()

	return Open(pool, id, codec, cmp, leafMaxSize, internalMaxSize), nil
}

// Open wraps an existing header page (e.g. recovered from a prior run) as a
// tree. It performs no I/O itself; the header is read lazily by the first
// operation.
func Open[K any](pool *buffer.Pool, headerPageID page.ID, codec KeyCodec[K], cmp Comparator[K], leafMaxSize, internalMaxSize int) *BPlusTree[K] {
	return &BPlusTree[K]{
		pool:         pool,
		headerPageID: headerPageID,
		codec:        codec,
		cmp:          cmp,
		leafMaxSize:  leafMaxSize,
		internalMax:  internalMaxSize,
		leafMinSize:  config.MinSize(leafMaxSize),
		internalMin:  config.MinSize(internalMaxSize),
	}
}

// HeaderPageID returns the page id of this tree's header page, the one
// stable handle across root changes.
func (t *BPlusTree[K]) HeaderPageID() page.ID { return t.headerPageID }

func (t *BPlusTree[K]) usable(pg *page.Page) []byte { return pg.Data()[:page.UsableSize] }

func (t *BPlusTree[K]) internalView(pg *page.Page) *InternalPage[K] {
	return NewInternalPage(t.usable(pg), t.codec)
}

func (t *BPlusTree[K]) leafView(pg *page.Page) *LeafPage[K] {
	return NewLeafPage(t.usable(pg), t.codec)
}

// RootPageID returns the tree's current root page id, or page.InvalidID for
// an empty tree. Takes a read latch on the header page only.
func (t *BPlusTree[K]) RootPageID() (page.ID, error) {
	guard, err := t.pool.FetchPageRead(t.headerPageID)
	if err != nil {
		return page.InvalidID, fmt.Errorf("btree: fetch header: %w", err)
	}
	defer guard.Drop()
	return readHeaderRoot(guard.Page().Data()), nil
}

// GetValue performs a point query, descending with optimistic read-latch
// crabbing: the child's read latch is acquired before the parent's is
// released (spec.md §4.4's Search). Returns (rid, true, nil) on a hit,
// (zero, false, nil) on a miss.
func (t *BPlusTree[K]) GetValue(k K) (RID, bool, error) {
	header, err := t.pool.FetchPageRead(t.headerPageID)
	if err != nil {
		return RID{}, false, fmt.Errorf("btree: fetch header: %w", err)
	}

	rootID := readHeaderRoot(header.Page().Data())
	if rootID == page.InvalidID {
		header.Drop()
		return RID{}, false, nil
	}

	cur, err := t.pool.FetchPageRead(rootID)
	if err != nil {
		header.Drop()
		return RID{}, false, fmt.Errorf("btree: fetch root: %w", err)
	}
	header.Drop()

	for {
		data := t.usable(cur.Page())
		if readPageType(data) == pageTypeLeaf {
			leaf := NewLeafPage(data, t.codec)
			idx, found := leaf.Find(k, t.cmp)
			if !found {
				cur.Drop()
				return RID{}, false, nil
			}
			rid := leaf.RIDAt(idx)
			cur.Drop()
			return rid, true, nil
		}

		internal := NewInternalPage(data, t.codec)
		childID := internal.ChildAt(internal.FindChildIndex(k, t.cmp))
		child, err := t.pool.FetchPageRead(childID)
		if err != nil {
			cur.Drop()
			return RID{}, false, fmt.Errorf("btree: fetch child %d: %w", childID, err)
		}
		cur.Drop()
		cur = child
	}
}

// Height walks the leftmost path from the root and counts levels (a leaf
// alone is height 1). Returns 0 for an empty tree. Diagnostic only —
// spec.md's original reference printer was excluded from scope; this is the
// supplemented replacement (DESIGN.md).
func (t *BPlusTree[K]) Height() (int, error) {
	rootID, err := t.RootPageID()
	if err != nil {
		return 0, err
	}
	if rootID == page.InvalidID {
		return 0, nil
	}

	height := 0
	id := rootID
	for {
		guard, err := t.pool.FetchPageRead(id)
		if err != nil {
			return 0, fmt.Errorf("btree: fetch page %d: %w", id, err)
		}
		data := t.usable(guard.Page())
		height++
		if readPageType(data) == pageTypeLeaf {
			guard.Drop()
			return height, nil
		}
		internal := NewInternalPage(data, t.codec)
		next := internal.ChildAt(0)
		guard.Drop()
		id = next
	}
}

// LeafCount walks the leaf sibling chain from the leftmost leaf and counts
// leaves. Returns 0 for an empty tree.
func (t *BPlusTree[K]) LeafCount() (int, error) {
	id, err := t.leftmostLeaf()
	if err != nil {
		return 0, err
	}
	if id == page.InvalidID {
		return 0, nil
	}

	count := 0
	for id != page.InvalidID {
		guard, err := t.pool.FetchPageRead(id)
		if err != nil {
			return count, fmt.Errorf("btree: fetch leaf %d: %w", id, err)
		}
		leaf := t.leafView(guard.Page())
		next := leaf.NextPageID()
		guard.Drop()
		count++
		id = next
	}
	return count, nil
}

// leftmostLeaf descends from the root to find the leftmost leaf. Spec.md
// §9's Open Question: the reference implementation's Begin() assumes the
// leftmost leaf is always page id 1, true only immediately after
// construction. This tree always descends from the root instead.
func (t *BPlusTree[K]) leftmostLeaf() (page.ID, error) {
	rootID, err := t.RootPageID()
	if err != nil {
		return page.InvalidID, err
	}
	if rootID == page.InvalidID {
		return page.InvalidID, nil
	}

	id := rootID
	for {
		guard, err := t.pool.FetchPageRead(id)
		if err != nil {
			return page.InvalidID, fmt.Errorf("btree: fetch page %d: %w", id, err)
		}
		data := t.usable(guard.Page())
		if readPageType(data) == pageTypeLeaf {
			guard.Drop()
			return id, nil
		}
		internal := NewInternalPage(data, t.codec)
		next := internal.ChildAt(0)
		guard.Drop()
		id = next
	}
}

