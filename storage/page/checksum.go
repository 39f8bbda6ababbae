package page

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// StampChecksum computes an xxhash64 digest over the usable portion of a
// full-PageSize buffer and writes it into the trailing ChecksumSize bytes.
// Called by the disk manager immediately before a page is written out.
func StampChecksum(data []byte) {
	sum := xxhash.Sum64(data[:UsableSize])
	binary.LittleEndian.PutUint64(data[UsableSize:UsableSize+ChecksumSize], sum)
}

// VerifyChecksum recomputes the digest over the usable portion and compares
// it against the trailer. Called by the disk manager right after a page is
// read back, so a bit-rotted or truncated page surfaces as dberr.ErrIOError
// instead of silently handing the tree corrupted slots.
func VerifyChecksum(data []byte) bool {
	if len(data) < UsableSize+ChecksumSize {
		return false
	}
	want := binary.LittleEndian.Uint64(data[UsableSize : UsableSize+ChecksumSize])
	got := xxhash.Sum64(data[:UsableSize])
	return want == got
}
