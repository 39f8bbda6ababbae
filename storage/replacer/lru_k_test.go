package replacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonedb/dberr"
)

// TestLRUKOrder mirrors spec.md §8 scenario 2: replacer(cap=3,k=2) with
// accesses 1,2,3,1,2 and all three made evictable should evict 3, then 1,
// then 2.
func TestLRUKOrder(t *testing.T) {
	r := NewLRUKReplacer(3, 2)

	for _, fid := range []FrameID{1, 2, 3, 1, 2} {
		require.NoError(t, r.RecordAccess(fid, AccessUnknown))
	}
	for _, fid := range []FrameID{1, 2, 3} {
		require.NoError(t, r.SetEvictable(fid, true))
	}
	require.Equal(t, 3, r.Size())

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(3), victim, "frame 3 has only one access: +inf k-distance")

	victim, ok = r.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(1), victim, "frame 1's k-distance is 5-1=4, larger than frame 2's 5-2=3")

	victim, ok = r.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(2), victim)

	_, ok = r.Evict()
	assert.False(t, ok, "nothing left to evict")
}

func TestSetEvictableUnknownFrame(t *testing.T) {
	r := NewLRUKReplacer(3, 2)
	err := r.SetEvictable(0, true)
	assert.ErrorIs(t, err, dberr.ErrInvalidFrame)
}

func TestRemoveNonEvictableFails(t *testing.T) {
	r := NewLRUKReplacer(2, 2)
	require.NoError(t, r.RecordAccess(0, AccessUnknown))
	// Not evictable yet (default false).
	err := r.Remove(0)
	assert.ErrorIs(t, err, dberr.ErrNonEvictable)
}

func TestRemoveUnknownFrameIsNoop(t *testing.T) {
	r := NewLRUKReplacer(2, 2)
	assert.NoError(t, r.Remove(5))
}

func TestEvictTieBreaksOnEarliestAccess(t *testing.T) {
	r := NewLRUKReplacer(32, 2) // k=2: one access each leaves both frames at +inf k-distance
	require.NoError(t, r.RecordAccess(10, AccessUnknown))
	require.NoError(t, r.RecordAccess(20, AccessUnknown))
	require.NoError(t, r.SetEvictable(10, true))
	require.NoError(t, r.SetEvictable(20, true))

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(10), victim, "earlier access time wins when k-distances tie")
}
