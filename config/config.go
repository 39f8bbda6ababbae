// Package config groups the build-time and runtime knobs the storage core
// is constructed with. There is no CLI and no environment lookup here — the
// core is a library, and callers wire an Options value into the buffer pool
// and index constructors directly.
package config

// PageSize is the fixed byte size of every page in the system. It is a
// build-time constant, not a runtime option: page layouts (header offsets,
// slot counts) are computed against it.
const PageSize = 4096

// InvalidPageID marks the absence of a page, e.g. an empty tree's root or
// the last leaf in a sibling chain.
const InvalidPageID int64 = -1

// Options bundles the pool and index sizing knobs from spec.md's
// configuration table.
type Options struct {
	// PoolSize is the number of frames in the buffer pool.
	PoolSize int
	// ReplacerK is K in LRU-K.
	ReplacerK int
	// LeafMaxSize is the maximum number of entries a leaf page may hold.
	LeafMaxSize int
	// InternalMaxSize is the maximum number of entries an internal page may
	// hold (n children, n-1 real keys).
	InternalMaxSize int
}

// DefaultOptions mirrors the sizes the teacher's constructors hard-code
// (e.g. bplustree.NewBufferPool(10)), scaled up to sane library defaults.
func DefaultOptions() Options {
	return Options{
		PoolSize:        64,
		ReplacerK:       2,
		LeafMaxSize:     4,
		InternalMaxSize: 4,
	}
}

// MinSize returns ceil(maxSize/2), the minimum occupancy a non-root page
// must maintain after a delete.
func MinSize(maxSize int) int {
	return (maxSize + 1) / 2
}
