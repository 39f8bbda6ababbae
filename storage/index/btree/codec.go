// Package btree implements the latch-crabbing concurrent B+ tree index
// (spec.md §4.4): an ordered map of fixed-width keys to record ids, built on
// top of storage/buffer's scoped guards. Node layouts are typed views over
// borrowed page buffers — never copied into heap node objects — grounded on
// 7thCode-BPTree's pkg/bptree2/bnode package, generalized here from that
// package's fixed uint64 key to an arbitrary fixed-width key type via Go
// generics (DESIGN.md's storage/index/btree entry).
package btree

// Comparator totally orders keys of type K. Implementations must be
// transitive, antisymmetric, and compatible with equality, matching
// spec.md §4.5's key comparator contract.
type Comparator[K any] func(a, b K) int

// KeyCodec encodes and decodes a fixed-width key to and from a page slot.
// Size is constant across the codec's lifetime: it determines the slot
// stride for both internal and leaf pages.
type KeyCodec[K any] interface {
	Size() int
	Encode(dst []byte, k K)
	Decode(src []byte) K
}

// Int64Codec encodes a signed 64-bit key in 8 bytes, big-endian so that
// byte-wise and integer ordering coincide (handy for debugging page dumps;
// the tree itself always compares via Comparator, never byte-wise).
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }

func (Int64Codec) Encode(dst []byte, k int64) {
	u := uint64(k) ^ (1 << 63)
	dst[0] = byte(u >> 56)
	dst[1] = byte(u >> 48)
	dst[2] = byte(u >> 40)
	dst[3] = byte(u >> 32)
	dst[4] = byte(u >> 24)
	dst[5] = byte(u >> 16)
	dst[6] = byte(u >> 8)
	dst[7] = byte(u)
}

func (Int64Codec) Decode(src []byte) int64 {
	u := uint64(src[0])<<56 | uint64(src[1])<<48 | uint64(src[2])<<40 | uint64(src[3])<<32 |
		uint64(src[4])<<24 | uint64(src[5])<<16 | uint64(src[6])<<8 | uint64(src[7])
	return int64(u ^ (1 << 63))
}

// CompareInt64 is the natural Comparator for Int64Codec keys.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Int32Codec encodes a signed 32-bit key in 4 bytes, same bias-and-big-endian
// trick as Int64Codec.
type Int32Codec struct{}

func (Int32Codec) Size() int { return 4 }

func (Int32Codec) Encode(dst []byte, k int32) {
	u := uint32(k) ^ (1 << 31)
	dst[0] = byte(u >> 24)
	dst[1] = byte(u >> 16)
	dst[2] = byte(u >> 8)
	dst[3] = byte(u)
}

func (Int32Codec) Decode(src []byte) int32 {
	u := uint32(src[0])<<24 | uint32(src[1])<<16 | uint32(src[2])<<8 | uint32(src[3])
	return int32(u ^ (1 << 31))
}

// CompareInt32 is the natural Comparator for Int32Codec keys.
func CompareInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
