package btree

import "stonedb/storage/page"

// InternalPage is a typed view over an internal node's raw page bytes
// (spec.md §6): a packed array of (key, child_page_id) slots where slot 0's
// key is reserved (unused) and child i is reachable by any key k with
// key[i] ≤ k < key[i+1]. Size() counts children/slots (one more than the
// number of real keys).
//
// Grounded on 7thCode-BPTree's bnode.InternalNode, generalized from that
// package's fixed uint64 key to KeyCodec[K], and from its "no reserved
// slot" convention to spec.md's slot-0-reserved convention.
type InternalPage[K any] struct {
	data  []byte
	codec KeyCodec[K]
}

// slotSize is a slot's on-disk width: one key plus a 4-byte child page id.
func (n *InternalPage[K]) slotSize() int { return n.codec.Size() + 4 }

func (n *InternalPage[K]) slotOffset(i int) int {
	return nodeHeaderSize + i*n.slotSize()
}

// NewInternalPage wraps data (expected to be page.UsableSize bytes) with the
// given key codec. Call Init on a freshly allocated page before use.
func NewInternalPage[K any](data []byte, codec KeyCodec[K]) *InternalPage[K] {
	return &InternalPage[K]{data: data, codec: codec}
}

// Init formats an empty internal page with the given slot capacity.
func (n *InternalPage[K]) Init(maxSize int) {
	writePageType(n.data, pageTypeInternal)
	writeSize(n.data, 0)
	writeMaxSize(n.data, maxSize)
	writeNextOnDisk(n.data, -1)
}

// Size returns the number of children (slots) currently in use.
func (n *InternalPage[K]) Size() int { return readSize(n.data) }

// MaxSize returns the configured slot capacity.
func (n *InternalPage[K]) MaxSize() int { return readMaxSize(n.data) }

func (n *InternalPage[K]) setSize(sz int) { writeSize(n.data, sz) }

// KeyAt returns the key for slot i. Slot 0's key is reserved; callers must
// not rely on its value.
func (n *InternalPage[K]) KeyAt(i int) K {
	off := n.slotOffset(i)
	return n.codec.Decode(n.data[off : off+n.codec.Size()])
}

func (n *InternalPage[K]) setKeyAt(i int, k K) {
	off := n.slotOffset(i)
	n.codec.Encode(n.data[off:off+n.codec.Size()], k)
}

// ChildAt returns the child page id stored at slot i.
func (n *InternalPage[K]) ChildAt(i int) page.ID {
	off := n.slotOffset(i) + n.codec.Size()
	return fromOnDiskPageID(getInt32(n.data[off : off+4]))
}

func (n *InternalPage[K]) setChildAt(i int, id page.ID) error {
	raw, err := toOnDiskPageID(id)
	if err != nil {
		return err
	}
	off := n.slotOffset(i) + n.codec.Size()
	putInt32(n.data[off:off+4], raw)
	return nil
}

// FindChildIndex applies spec.md §4.4's search-index rule: the largest slot
// i with key[i] ≤ k (slot 0's key is treated as −∞), so child i is followed.
func (n *InternalPage[K]) FindChildIndex(k K, cmp Comparator[K]) int {
	size := n.Size()
	// The scan starts at slot 1: slot 0 is always ≤ k by convention.
	idx := 0
	for i := 1; i < size; i++ {
		if cmp(n.KeyAt(i), k) <= 0 {
			idx = i
		} else {
			break
		}
	}
	return idx
}

// InitRoot formats this (freshly allocated) page as a brand-new root holding
// exactly two children separated by sepKey.
func (n *InternalPage[K]) InitRoot(maxSize int, left page.ID, sepKey K, right page.ID) error {
	n.Init(maxSize)
	n.setSize(2)
	if err := n.setChildAt(0, left); err != nil {
		return err
	}
	n.setKeyAt(1, sepKey)
	return n.setChildAt(1, right)
}

// InsertAt inserts a new (key, child) slot at position idx (0 ≤ idx ≤
// Size()), shifting existing slots at idx.. right by one. Grows Size() by
// one. The caller is responsible for checking capacity beforehand.
func (n *InternalPage[K]) InsertAt(idx int, key K, child page.ID) error {
	size := n.Size()
	for i := size; i > idx; i-- {
		n.setKeyAt(i, n.KeyAt(i-1))
		if err := n.setChildAt(i, n.ChildAt(i-1)); err != nil {
			return err
		}
	}
	n.setKeyAt(idx, key)
	if err := n.setChildAt(idx, child); err != nil {
		return err
	}
	n.setSize(size + 1)
	return nil
}

// RemoveAt removes the slot at idx (the key and its child pointer),
// shifting subsequent slots left by one. Shrinks Size() by one.
func (n *InternalPage[K]) RemoveAt(idx int) error {
	size := n.Size()
	for i := idx; i < size-1; i++ {
		n.setKeyAt(i, n.KeyAt(i+1))
		if err := n.setChildAt(i, n.ChildAt(i+1)); err != nil {
			return err
		}
	}
	n.setSize(size - 1)
	return nil
}

// SplitInto moves this page's upper half of slots into right (a freshly
// Init'd page with the same max size), returning the separator key to
// promote to the parent: the key at the first slot moved. That key is not
// copied into right; right's reserved slot 0 key is left unwritten.
func (n *InternalPage[K]) SplitInto(right *InternalPage[K]) K {
	size := n.Size()
	mid := size / 2

	sep := n.KeyAt(mid)
	for i := mid; i < size; i++ {
		child := n.ChildAt(i)
		right.setChildAt(i-mid, child)
		if i > mid {
			right.setKeyAt(i-mid, n.KeyAt(i))
		}
	}
	right.setSize(size - mid)
	n.setSize(mid)
	return sep
}

// IndexOfChild returns the slot index holding id, or (-1, false) if id is
// not one of this page's children.
func (n *InternalPage[K]) IndexOfChild(id page.ID) (int, bool) {
	for i, size := 0, n.Size(); i < size; i++ {
		if n.ChildAt(i) == id {
			return i, true
		}
	}
	return -1, false
}

// IsSafeForInsert reports whether this page can absorb one more child
// without exceeding capacity (spec.md's "safe (insert)" predicate).
func (n *InternalPage[K]) IsSafeForInsert() bool { return n.Size()+1 <= n.MaxSize() }

// IsSafeForDelete reports whether this page can lose one more child without
// dropping below minSize (spec.md's "safe (delete)" predicate; the caller
// applies the root exception).
func (n *InternalPage[K]) IsSafeForDelete(minSize int) bool { return n.Size()-1 >= minSize }
