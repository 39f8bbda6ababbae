package btree

import "stonedb/storage/page"

// LeafPage is a typed view over a leaf node's raw page bytes: a packed
// array of (key, rid) slots in ascending key order, plus the next_page_id
// header field linking leaves into a left-to-right chain (spec.md §6).
type LeafPage[K any] struct {
	data  []byte
	codec KeyCodec[K]
}

func (n *LeafPage[K]) slotSize() int { return n.codec.Size() + ridSize }

func (n *LeafPage[K]) slotOffset(i int) int {
	return nodeHeaderSize + i*n.slotSize()
}

// NewLeafPage wraps data with the given key codec. Call Init on a freshly
// allocated page before use.
func NewLeafPage[K any](data []byte, codec KeyCodec[K]) *LeafPage[K] {
	return &LeafPage[K]{data: data, codec: codec}
}

// Init formats an empty leaf page with the given slot capacity.
func (n *LeafPage[K]) Init(maxSize int) {
	writePageType(n.data, pageTypeLeaf)
	writeSize(n.data, 0)
	writeMaxSize(n.data, maxSize)
	writeNextOnDisk(n.data, -1)
}

// Size returns the number of (key, rid) entries currently in use.
func (n *LeafPage[K]) Size() int { return readSize(n.data) }

// MaxSize returns the configured slot capacity.
func (n *LeafPage[K]) MaxSize() int { return readMaxSize(n.data) }

func (n *LeafPage[K]) setSize(sz int) { writeSize(n.data, sz) }

// NextPageID returns the next leaf in the sibling chain, or page.InvalidID
// if this is the rightmost leaf.
func (n *LeafPage[K]) NextPageID() page.ID { return fromOnDiskPageID(readNextOnDisk(n.data)) }

// SetNextPageID links this leaf to the next one in the sibling chain.
func (n *LeafPage[K]) SetNextPageID(id page.ID) error {
	raw, err := toOnDiskPageID(id)
	if err != nil {
		return err
	}
	writeNextOnDisk(n.data, raw)
	return nil
}

// KeyAt returns the key at slot i (0 ≤ i < Size()).
func (n *LeafPage[K]) KeyAt(i int) K {
	off := n.slotOffset(i)
	return n.codec.Decode(n.data[off : off+n.codec.Size()])
}

func (n *LeafPage[K]) setKeyAt(i int, k K) {
	off := n.slotOffset(i)
	n.codec.Encode(n.data[off:off+n.codec.Size()], k)
}

// RIDAt returns the record id stored at slot i.
func (n *LeafPage[K]) RIDAt(i int) RID {
	off := n.slotOffset(i) + n.codec.Size()
	return decodeRID(n.data[off : off+ridSize])
}

func (n *LeafPage[K]) setRIDAt(i int, r RID) {
	off := n.slotOffset(i) + n.codec.Size()
	encodeRID(n.data[off:off+ridSize], r)
}

// Find returns the slot index of k via binary search, or (-1, false) if
// absent.
func (n *LeafPage[K]) Find(k K, cmp Comparator[K]) (int, bool) {
	lo, hi := 0, n.Size()-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		c := cmp(n.KeyAt(mid), k)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1, false
}

// LowerBound returns the first slot index whose key is ≥ k (Size() if none).
func (n *LeafPage[K]) LowerBound(k K, cmp Comparator[K]) int {
	lo, hi := 0, n.Size()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(n.KeyAt(mid), k) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// InsertAt inserts (key, rid) at slot idx, shifting subsequent slots right.
// Grows Size() by one; caller must check capacity beforehand.
func (n *LeafPage[K]) InsertAt(idx int, key K, rid RID) {
	size := n.Size()
	for i := size; i > idx; i-- {
		n.setKeyAt(i, n.KeyAt(i-1))
		n.setRIDAt(i, n.RIDAt(i-1))
	}
	n.setKeyAt(idx, key)
	n.setRIDAt(idx, rid)
	n.setSize(size + 1)
}

// RemoveAt removes the slot at idx, shifting subsequent slots left.
func (n *LeafPage[K]) RemoveAt(idx int) {
	size := n.Size()
	for i := idx; i < size-1; i++ {
		n.setKeyAt(i, n.KeyAt(i+1))
		n.setRIDAt(i, n.RIDAt(i+1))
	}
	n.setSize(size - 1)
}

// SplitInto moves the upper ⌈size/2⌉ entries into right (a freshly Init'd
// page), links this leaf to right via next_page_id (inheriting this leaf's
// old next pointer onto right), and returns right's first key: the
// separator to promote to the parent.
func (n *LeafPage[K]) SplitInto(right *LeafPage[K], rightID page.ID, oldNext page.ID) (K, error) {
	size := n.Size()
	mid := size / 2 // size == max_size+1 at split time; mid is the lower half boundary

	for i := mid; i < size; i++ {
		right.setKeyAt(i-mid, n.KeyAt(i))
		right.setRIDAt(i-mid, n.RIDAt(i))
	}
	right.setSize(size - mid)
	n.setSize(mid)

	if err := right.SetNextPageID(oldNext); err != nil {
		return right.KeyAt(0), err
	}
	if err := n.SetNextPageID(rightID); err != nil {
		return right.KeyAt(0), err
	}
	return right.KeyAt(0), nil
}

// IsSafeForInsert reports whether this leaf can absorb one more entry
// without exceeding capacity.
func (n *LeafPage[K]) IsSafeForInsert() bool { return n.Size()+1 <= n.MaxSize() }

// IsSafeForDelete reports whether this leaf can lose one more entry without
// dropping below minSize (the caller applies the root exception).
func (n *LeafPage[K]) IsSafeForDelete(minSize int) bool { return n.Size()-1 >= minSize }
