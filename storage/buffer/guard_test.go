package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonedb/config"
	"stonedb/storage/page"
)

func TestBasicGuardDropIsIdempotent(t *testing.T) {
	pool := NewPool(config.Options{PoolSize: 2, ReplacerK: 2}, newFakeDisk())
	id, guard, err := pool.NewPageGuarded()
	require.NoError(t, err)

	guard.Drop()
	assert.Equal(t, 1, pool.ReplacerSize(), "pin reached zero, frame is evictable")

	// A second Drop on an already-empty guard must not unpin again (which
	// would otherwise underflow the pin count or double-evictable a frame).
	guard.Drop()
	assert.Equal(t, 1, pool.ReplacerSize())
	assert.Nil(t, guard.Page())
	assert.Equal(t, page.InvalidID, guard.PageID())
	_ = id
}

func TestBasicGuardAssignTransfersOwnership(t *testing.T) {
	pool := NewPool(config.Options{PoolSize: 2, ReplacerK: 2}, newFakeDisk())
	_, first, err := pool.NewPageGuarded()
	require.NoError(t, err)
	secondID, second, err := pool.NewPageGuarded()
	require.NoError(t, err)

	// Assigning second into first must drop first's own pin (unpinning its
	// page) before adopting second's page; second is left empty.
	first.Assign(&second)

	assert.Equal(t, secondID, first.PageID())
	assert.Nil(t, second.Page())
	assert.Equal(t, page.InvalidID, second.PageID())

	// second.Drop() is now a safe no-op: it no longer owns anything.
	second.Drop()
	first.Drop()
}

func TestBasicGuardAssignToSelfIsNoop(t *testing.T) {
	pool := NewPool(config.Options{PoolSize: 1, ReplacerK: 2}, newFakeDisk())
	id, guard, err := pool.NewPageGuarded()
	require.NoError(t, err)

	guard.Assign(&guard)
	assert.Equal(t, id, guard.PageID())
	guard.Drop()
}

func TestReadGuardAssignTransfersOwnership(t *testing.T) {
	pool := NewPool(config.Options{PoolSize: 2, ReplacerK: 2}, newFakeDisk())
	firstID, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(firstID, false))
	secondID, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(secondID, false))

	first, err := pool.FetchPageRead(firstID)
	require.NoError(t, err)
	second, err := pool.FetchPageRead(secondID)
	require.NoError(t, err)

	// Assigning second into first must release first's own pin (unlatch then
	// unpin) before adopting second's page, not just unlatch it — otherwise
	// first's original page is pinned forever and never becomes evictable.
	first.Assign(&second)

	assert.Equal(t, 1, pool.ReplacerSize(), "first's old page released its pin and became evictable")
	assert.Equal(t, secondID, first.PageID())
	assert.Nil(t, second.Page())
	assert.Equal(t, page.InvalidID, second.PageID())

	second.Drop()
	first.Drop()
	assert.Equal(t, 2, pool.ReplacerSize())
}

func TestWriteGuardAssignTransfersOwnership(t *testing.T) {
	pool := NewPool(config.Options{PoolSize: 2, ReplacerK: 2}, newFakeDisk())
	firstID, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(firstID, false))
	secondID, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(secondID, false))

	first, err := pool.FetchPageWrite(firstID)
	require.NoError(t, err)
	second, err := pool.FetchPageWrite(secondID)
	require.NoError(t, err)

	// Same contract as ReadGuard: the receiver's old page must be unlatched
	// and unpinned, not just unlatched, before adopting the source's page.
	first.Assign(&second)

	assert.Equal(t, 1, pool.ReplacerSize(), "first's old page released its pin and became evictable")
	assert.Equal(t, secondID, first.PageID())
	assert.Nil(t, second.Page())
	assert.Equal(t, page.InvalidID, second.PageID())

	second.Drop()
	first.Drop()
	assert.Equal(t, 2, pool.ReplacerSize())

	// first's old page (firstID) must be writable again immediately: its
	// writer latch was released by the Assign, not left held forever.
	wg, err := pool.FetchPageWrite(firstID)
	require.NoError(t, err)
	wg.Drop()
}

func TestReadGuardReleasesLatchBeforeUnpin(t *testing.T) {
	pool := NewPool(config.Options{PoolSize: 1, ReplacerK: 2}, newFakeDisk())
	id, pg, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(id, false))
	_ = pg

	guard, err := pool.FetchPageRead(id)
	require.NoError(t, err)
	assert.Equal(t, id, guard.PageID())

	guard.Drop()
	// The page is unpinned and the latch released; a writer must be able to
	// acquire the write latch immediately without blocking.
	wg, err := pool.FetchPageWrite(id)
	require.NoError(t, err)
	wg.Drop()
}

func TestWriteGuardMarkDirtyPropagatesToPool(t *testing.T) {
	pool := NewPool(config.Options{PoolSize: 1, ReplacerK: 2}, newFakeDisk())
	id, _, err := pool.NewPageGuarded()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(id, false))

	guard, err := pool.FetchPageWrite(id)
	require.NoError(t, err)
	copy(guard.Page().Data(), []byte("dirty bytes"))
	guard.MarkDirty()
	guard.Drop()

	fid, ok := pool.pageTbl[id]
	require.True(t, ok)
	assert.True(t, pool.frames[fid].IsDirty())
}
