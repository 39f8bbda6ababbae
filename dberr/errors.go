// Package dberr names the recoverable and fatal error roles the storage
// core surfaces, per spec.md's error-handling taxonomy. Recoverable
// conditions are returned as these sentinels (or as a plain false/nil); only
// misuse and disk faults are meant to be fatal to the caller.
package dberr

import "errors"

var (
	// ErrNoFreeFrame means the buffer pool has no free frame and nothing
	// evictable: every resident page is pinned.
	ErrNoFreeFrame = errors.New("dberr: no free frame available")

	// ErrPageNotResident names the role of a page id that isn't currently in
	// the pool. The pool's UnpinPage and FlushPage report that case as a
	// false result rather than returning this error.
	ErrPageNotResident = errors.New("dberr: page not resident")

	// ErrStillPinned means DeletePage was asked to remove a pinned page.
	ErrStillPinned = errors.New("dberr: page still pinned")

	// ErrInvalidFrame means the replacer was asked to operate on a frame id
	// it never saw recorded.
	ErrInvalidFrame = errors.New("dberr: invalid frame id")

	// ErrNonEvictable means Remove was asked to drop a node that is pinned
	// (not in the evictable set).
	ErrNonEvictable = errors.New("dberr: frame is not evictable")

	// ErrDuplicateKey means Insert was asked to add a key that already
	// exists in the tree (unique-key violation).
	ErrDuplicateKey = errors.New("dberr: duplicate key")

	// ErrKeyNotFound means a point query or delete found no matching key.
	// Operations prefer returning this via a bool/empty result; it exists
	// for call sites that need an explicit error value.
	ErrKeyNotFound = errors.New("dberr: key not found")

	// ErrIOError wraps a disk read/write failure. It is fatal: the storage
	// core does not attempt to recover from it, only to unwind guards
	// cleanly before propagating.
	ErrIOError = errors.New("dberr: disk i/o error")

	// ErrChecksumMismatch means a page read back from disk does not match
	// its stored checksum — a specific, detectable instance of ErrIOError.
	ErrChecksumMismatch = errors.New("dberr: page checksum mismatch")
)
