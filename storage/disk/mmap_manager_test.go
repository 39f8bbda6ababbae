//go:build unix

package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonedb/config"
	"stonedb/dberr"
	"stonedb/storage/page"
)

func TestMMapManagerWriteReadRoundTrip(t *testing.T) {
	m, err := NewMMapManager(filepath.Join(t.TempDir(), "mmap.db"))
	require.NoError(t, err)
	defer m.Shutdown()

	id, err := m.AllocatePage()
	require.NoError(t, err)

	buf := make([]byte, config.PageSize)
	copy(buf, []byte("hello from mmap"))
	require.NoError(t, m.WritePage(id, buf))

	out := make([]byte, config.PageSize)
	require.NoError(t, m.ReadPage(id, out))
	assert.Equal(t, "hello from mmap", string(out[:len("hello from mmap")]))
}

func TestMMapManagerGrowsPastInitialMapping(t *testing.T) {
	m, err := NewMMapManager(filepath.Join(t.TempDir(), "mmap.db"))
	require.NoError(t, err)
	defer m.Shutdown()

	// mmapGrowPages pages fit in the initial mapping; one page further
	// forces growLocked to extend and remap.
	farID := page.ID(mmapGrowPages + 5)
	buf := make([]byte, config.PageSize)
	copy(buf, []byte("past the first chunk"))
	require.NoError(t, m.WritePage(farID, buf))

	out := make([]byte, config.PageSize)
	require.NoError(t, m.ReadPage(farID, out))
	assert.Equal(t, "past the first chunk", string(out[:len("past the first chunk")]))
}

func TestMMapManagerOpenFailureWrapsIOError(t *testing.T) {
	// A directory can never be opened as a regular file, so this
	// deterministically exercises the real os.OpenFile failure path.
	dir := t.TempDir()
	_, err := NewMMapManager(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, dberr.ErrIOError)
}

func TestMMapManagerReadUnwrittenPageIsZero(t *testing.T) {
	m, err := NewMMapManager(filepath.Join(t.TempDir(), "mmap.db"))
	require.NoError(t, err)
	defer m.Shutdown()

	out := make([]byte, config.PageSize)
	for i := range out {
		out[i] = 0xFF
	}
	require.NoError(t, m.ReadPage(0, out))
	for _, b := range out {
		assert.Equal(t, byte(0), b)
	}
}
