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

func TestFileManagerWriteReadRoundTrip(t *testing.T) {
	m, err := NewFileManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer m.Shutdown()

	id, err := m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, page.ID(0), id)

	buf := make([]byte, config.PageSize)
	copy(buf, []byte("round trip payload"))
	require.NoError(t, m.WritePage(id, buf))

	out := make([]byte, config.PageSize)
	require.NoError(t, m.ReadPage(id, out))
	assert.Equal(t, "round trip payload", string(out[:len("round trip payload")]))
}

func TestFileManagerAllocatePageIsMonotonic(t *testing.T) {
	m, err := NewFileManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer m.Shutdown()

	for i := 0; i < 5; i++ {
		id, err := m.AllocatePage()
		require.NoError(t, err)
		assert.Equal(t, page.ID(i), id)
	}
}

func TestFileManagerReadUnwrittenPageIsZero(t *testing.T) {
	m, err := NewFileManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer m.Shutdown()

	id, err := m.AllocatePage()
	require.NoError(t, err)

	out := make([]byte, config.PageSize)
	for i := range out {
		out[i] = 0xAB
	}
	require.NoError(t, m.ReadPage(id, out))
	for _, b := range out {
		assert.Equal(t, byte(0), b)
	}
}

func TestFileManagerReadPageDetectsChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := NewFileManager(path)
	require.NoError(t, err)

	id, err := m.AllocatePage()
	require.NoError(t, err)

	buf := make([]byte, config.PageSize)
	copy(buf, []byte("will be corrupted"))
	require.NoError(t, m.WritePage(id, buf))
	require.NoError(t, m.Shutdown())

	// Reopen and flip a byte inside the stamped payload without restamping
	// the checksum, simulating on-disk corruption.
	m2, err := NewFileManager(path)
	require.NoError(t, err)
	defer m2.Shutdown()

	corrupt := make([]byte, config.PageSize)
	_, err = m2.file.ReadAt(corrupt, int64(id)*config.PageSize)
	require.NoError(t, err)
	corrupt[0] ^= 0xFF
	_, err = m2.file.WriteAt(corrupt, int64(id)*config.PageSize)
	require.NoError(t, err)

	out := make([]byte, config.PageSize)
	err = m2.ReadPage(id, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, dberr.ErrChecksumMismatch)
	assert.ErrorIs(t, err, dberr.ErrIOError, "a checksum mismatch is also a detectable instance of ErrIOError")
}

func TestFileManagerOpenFailureWrapsIOError(t *testing.T) {
	// A directory can never be opened as a regular file, so this
	// deterministically exercises the real os.OpenFile failure path.
	dir := t.TempDir()
	_, err := NewFileManager(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, dberr.ErrIOError)
}

func TestFileManagerResumesPageIDsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := NewFileManager(path)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		id, err := m.AllocatePage()
		require.NoError(t, err)
		buf := make([]byte, config.PageSize)
		require.NoError(t, m.WritePage(id, buf))
	}
	require.NoError(t, m.Shutdown())

	m2, err := NewFileManager(path)
	require.NoError(t, err)
	defer m2.Shutdown()

	id, err := m2.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, page.ID(3), id, "allocation resumes from the file's existing size")
}
