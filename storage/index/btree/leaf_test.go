package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stonedb/storage/page"
)

func TestLeafPageInsertFindRemove(t *testing.T) {
	data := make([]byte, page.UsableSize)
	leaf := NewLeafPage[int64](data, Int64Codec{})
	leaf.Init(4)

	leaf.InsertAt(0, 10, RID{PageID: 1, Slot: 0})
	leaf.InsertAt(1, 20, RID{PageID: 2, Slot: 0})
	leaf.InsertAt(0, 5, RID{PageID: 0, Slot: 0})
	assert.Equal(t, 3, leaf.Size())
	assert.Equal(t, []int64{5, 10, 20}, []int64{leaf.KeyAt(0), leaf.KeyAt(1), leaf.KeyAt(2)})

	idx, found := leaf.Find(10, CompareInt64)
	assert.True(t, found)
	assert.Equal(t, 1, idx)
	assert.Equal(t, RID{PageID: 1, Slot: 0}, leaf.RIDAt(idx))

	_, found = leaf.Find(11, CompareInt64)
	assert.False(t, found)
	assert.Equal(t, 2, leaf.LowerBound(11, CompareInt64))

	leaf.RemoveAt(1)
	assert.Equal(t, 2, leaf.Size())
	assert.Equal(t, int64(5), leaf.KeyAt(0))
	assert.Equal(t, int64(20), leaf.KeyAt(1))
}

func TestLeafPageSplitIntoMovesUpperHalf(t *testing.T) {
	leftData := make([]byte, page.UsableSize)
	rightData := make([]byte, page.UsableSize)
	left := NewLeafPage[int64](leftData, Int64Codec{})
	right := NewLeafPage[int64](rightData, Int64Codec{})
	left.Init(4)
	right.Init(4)
	_ = left.SetNextPageID(99)

	for i, k := range []int64{10, 20, 30, 40} {
		left.InsertAt(i, k, RID{PageID: int32(k), Slot: 0})
	}

	sep, err := left.SplitInto(right, 7, left.NextPageID())
	assert.NoError(t, err)
	assert.Equal(t, int64(30), sep)
	assert.Equal(t, 2, left.Size())
	assert.Equal(t, 2, right.Size())
	assert.Equal(t, int64(30), right.KeyAt(0))
	assert.Equal(t, int64(40), right.KeyAt(1))
	assert.Equal(t, page.ID(7), left.NextPageID())
	assert.Equal(t, page.ID(99), right.NextPageID())
}

func TestLeafPageSafetyPredicates(t *testing.T) {
	data := make([]byte, page.UsableSize)
	leaf := NewLeafPage[int64](data, Int64Codec{})
	leaf.Init(4)

	assert.True(t, leaf.IsSafeForInsert())
	for i, k := range []int64{1, 2, 3, 4} {
		leaf.InsertAt(i, k, RID{})
	}
	assert.False(t, leaf.IsSafeForInsert(), "leaf at max_size cannot absorb one more")

	assert.True(t, leaf.IsSafeForDelete(2))
	leaf.RemoveAt(0)
	leaf.RemoveAt(0)
	assert.False(t, leaf.IsSafeForDelete(2), "removing one more would drop below min_size 2")
}
