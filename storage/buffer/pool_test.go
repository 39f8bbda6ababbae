package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonedb/config"
	"stonedb/dberr"
	"stonedb/storage/disk"
	"stonedb/storage/page"
)

// fakeDisk is an in-memory disk.Manager used so buffer pool unit tests
// don't pay for real file I/O; storage/disk has its own tests exercising
// the real FileManager/MMapManager.
type fakeDisk struct {
	pages  map[page.ID][]byte
	nextID page.ID
}

func newFakeDisk() *fakeDisk {
	return &fakeDisk{pages: make(map[page.ID][]byte)}
}

func (d *fakeDisk) ReadPage(id page.ID, buf []byte) error {
	if data, ok := d.pages[id]; ok {
		copy(buf, data)
		return nil
	}
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (d *fakeDisk) WritePage(id page.ID, buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	d.pages[id] = cp
	return nil
}

func (d *fakeDisk) AllocatePage() (page.ID, error) {
	id := d.nextID
	d.nextID++
	return id, nil
}

func (d *fakeDisk) DeallocatePage(id page.ID) error { delete(d.pages, id); return nil }
func (d *fakeDisk) Shutdown() error                 { return nil }

// TestBufferResidency mirrors spec.md §8 scenario 1.
func TestBufferResidency(t *testing.T) {
	opts := config.Options{PoolSize: 3, ReplacerK: 2}
	pool := NewPool(opts, newFakeDisk())

	var ids []page.ID
	for i := 0; i < 3; i++ {
		id, pg, err := pool.NewPage()
		require.NoError(t, err)
		require.NotNil(t, pg)
		ids = append(ids, id)
	}
	assert.ElementsMatch(t, []page.ID{0, 1, 2}, ids)
	assert.Equal(t, 0, pool.ReplacerSize(), "all three pages are pinned, none evictable")

	_, _, err := pool.NewPage()
	assert.ErrorIs(t, err, dberr.ErrNoFreeFrame)

	assert.True(t, pool.UnpinPage(1, false))
	assert.Equal(t, 1, pool.ReplacerSize())

	id, pg, err := pool.NewPage()
	require.NoError(t, err)
	require.NotNil(t, pg)
	assert.Equal(t, page.ID(3), id, "page ids are allocated monotonically regardless of eviction")
	assert.Equal(t, 0, pool.ReplacerSize(), "the new page is pinned, frame holding old page 1 was reused")
}

func TestUnpinUnknownPageFails(t *testing.T) {
	pool := NewPool(config.Options{PoolSize: 2, ReplacerK: 2}, newFakeDisk())
	assert.False(t, pool.UnpinPage(42, false))
}

func TestUnpinAlreadyZeroFails(t *testing.T) {
	pool := NewPool(config.Options{PoolSize: 2, ReplacerK: 2}, newFakeDisk())
	id, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(id, false))
	assert.False(t, pool.UnpinPage(id, false), "pin count already zero")
}

func TestDeletePinnedPageFails(t *testing.T) {
	pool := NewPool(config.Options{PoolSize: 2, ReplacerK: 2}, newFakeDisk())
	id, _, err := pool.NewPage()
	require.NoError(t, err)
	assert.False(t, pool.DeletePage(id))
}

func TestDeleteReturnsFrameToFreeList(t *testing.T) {
	opts := config.Options{PoolSize: 1, ReplacerK: 2}
	pool := NewPool(opts, newFakeDisk())

	id, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(id, false))
	require.True(t, pool.DeletePage(id))

	// The single frame is free again.
	_, _, err = pool.NewPage()
	assert.NoError(t, err)
}

// TestFlushRoundTrip mirrors spec.md §8 scenario 3: write through a write
// guard, mark dirty, drop the guard (unpinning to zero), flush, then fetch
// again and see the write.
func TestFlushRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dm, err := disk.NewFileManager(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	defer dm.Shutdown()

	pool := NewPool(config.Options{PoolSize: 4, ReplacerK: 2}, dm)

	id, guard, err := pool.NewPageGuarded()
	require.NoError(t, err)
	copy(guard.Page().Data(), []byte("hello from the write guard"))
	guard.MarkDirty()
	guard.Drop()

	frame, ok := pool.pageTbl[id]
	require.True(t, ok)
	assert.Equal(t, int32(0), pool.frames[frame].PinCount(), "guard drop unpinned the page")

	require.True(t, pool.FlushPage(id))

	// Evict the page from the pool entirely so the next fetch can only be
	// satisfied by reading the flushed bytes back off disk.
	require.True(t, pool.DeletePage(id))
	_, stillResident := pool.pageTbl[id]
	require.False(t, stillResident)

	fetched, err := pool.FetchPage(id)
	require.NoError(t, err)
	assert.Equal(t, "hello from the write guard", string(fetched.Data()[:len("hello from the write guard")]))
	pool.UnpinPage(id, false)
}
