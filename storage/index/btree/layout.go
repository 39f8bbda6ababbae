package btree

import (
	"encoding/binary"
	"fmt"

	"stonedb/storage/page"
)

// pageType tags an index page as internal or leaf, per spec.md §6's
// "page_type | 4 | enum {INTERNAL=0, LEAF=1}".
type pageType uint32

const (
	pageTypeInternal pageType = 0
	pageTypeLeaf     pageType = 1
)

// nodeHeaderSize is the four fixed 4-byte header fields common to both
// internal and leaf pages: page_type, size, max_size, next_page_id (the
// last unused on internal pages).
const nodeHeaderSize = 16

// maxOnDiskPageID is the largest page id the tree's fixed 4-byte internal
// child pointers and leaf RIDs can address. Each B+ tree is backed by its
// own single-file disk.Manager (spec.md §4.5 names no file parameter), so
// its own page ids are local to that file and never approach this bound in
// a teaching-scale system.
const maxOnDiskPageID = 1<<31 - 1

// toOnDiskPageID narrows a buffer-pool page.ID (int64) to the int32 width
// spec.md §6's layout table reserves for internal child pointers and
// RID.PageID.
func toOnDiskPageID(id page.ID) (int32, error) {
	if id == page.InvalidID {
		return -1, nil
	}
	if id < 0 || id > maxOnDiskPageID {
		return 0, fmt.Errorf("btree: page id %d does not fit the tree's 4-byte on-disk id width", id)
	}
	return int32(id), nil
}

// fromOnDiskPageID widens a stored 4-byte id back to a page.ID, mapping -1
// to page.InvalidID.
func fromOnDiskPageID(raw int32) page.ID {
	if raw < 0 {
		return page.InvalidID
	}
	return page.ID(raw)
}

func readPageType(data []byte) pageType {
	return pageType(binary.BigEndian.Uint32(data[0:4]))
}

func writePageType(data []byte, t pageType) {
	binary.BigEndian.PutUint32(data[0:4], uint32(t))
}

func readSize(data []byte) int {
	return int(binary.BigEndian.Uint32(data[4:8]))
}

func writeSize(data []byte, n int) {
	binary.BigEndian.PutUint32(data[4:8], uint32(n))
}

func readMaxSize(data []byte) int {
	return int(binary.BigEndian.Uint32(data[8:12]))
}

func writeMaxSize(data []byte, n int) {
	binary.BigEndian.PutUint32(data[8:12], uint32(n))
}

func readNextOnDisk(data []byte) int32 {
	return int32(binary.BigEndian.Uint32(data[12:16]))
}

func writeNextOnDisk(data []byte, raw int32) {
	binary.BigEndian.PutUint32(data[12:16], uint32(raw))
}

// getInt32/putInt32 read and write a raw 4-byte on-disk page id (internal
// child pointer or RID.PageID component).
func getInt32(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b))
}

func putInt32(b []byte, v int32) {
	binary.BigEndian.PutUint32(b, uint32(v))
}

// IsLeafPage reports whether a raw page buffer holds a leaf node, usable by
// callers (e.g. diagnostics) that only have the bytes and no typed view.
func IsLeafPage(data []byte) bool {
	return readPageType(data) == pageTypeLeaf
}

// headerRootOffset is where the tree's header page stores its root page id
// (spec.md §6: "Header page: first 4 bytes = root_page_id").
const headerRootOffset = 0

func readHeaderRoot(data []byte) page.ID {
	return fromOnDiskPageID(int32(binary.BigEndian.Uint32(data[headerRootOffset : headerRootOffset+4])))
}

func writeHeaderRoot(data []byte, root page.ID) error {
	raw, err := toOnDiskPageID(root)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(data[headerRootOffset:headerRootOffset+4], uint32(raw))
	return nil
}
