// Package replacer implements the LRU-K frame replacement policy the
// buffer pool delegates eviction decisions to (spec.md §4.1), grounded on
// original_source/src/buffer/lru_k_replacer.cpp.
package replacer

import (
	"math"
	"sync"

	"stonedb/dberr"
)

// FrameID indexes a buffer pool frame. It is the replacer's own concern,
// independent of any particular buffer pool implementation.
type FrameID = int32

// AccessType hints at why a frame was touched (point lookup vs. sequential
// scan). The reference implementation accepts this on RecordAccess but
// never acts on it; stonedb keeps the parameter for interface fidelity
// (see DESIGN.md's Open Question decisions) without yet biasing eviction
// on it.
type AccessType int

const (
	AccessUnknown AccessType = iota
	AccessLookup
	AccessScan
)

// node is the per-frame replacer state: a bounded, oldest-first history of
// access timestamps and whether the frame currently belongs to the
// evictable set.
type node struct {
	history   []int64 // len <= k, oldest first
	evictable bool
}

// backwardKDistance returns current - history[0] once the node has seen at
// least k accesses (history[0] is then the k-th most recent), or +infinity
// if it has seen fewer than k.
func (n *node) backwardKDistance(current int64, k int) int64 {
	if len(n.history) < k {
		return math.MaxInt64
	}
	return current - n.history[0]
}

// LRUKReplacer picks an eviction victim by maximizing backward k-distance,
// breaking +infinity ties by earliest access time (classic LRU fallback).
type LRUKReplacer struct {
	mu               sync.Mutex
	replacerSize     int
	k                int
	currentTimestamp int64
	evictableCount   int
	nodes            map[FrameID]*node
}

// NewLRUKReplacer constructs a replacer tracking up to numFrames frames,
// each remembering its last k accesses.
func NewLRUKReplacer(numFrames, k int) *LRUKReplacer {
	return &LRUKReplacer{
		replacerSize: numFrames,
		k:            k,
		nodes:        make(map[FrameID]*node),
	}
}

// validFrame accepts frame ids 0 through replacerSize inclusive.
func (r *LRUKReplacer) validFrame(frameID FrameID) bool {
	return frameID >= 0 && int(frameID) <= r.replacerSize
}

// RecordAccess bumps the monotonic clock and appends a timestamp to the
// frame's history, creating the node (non-evictable by default) if this is
// its first access. Once history exceeds k entries the oldest is dropped.
func (r *LRUKReplacer) RecordAccess(frameID FrameID, accessType AccessType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validFrame(frameID) {
		return dberr.ErrInvalidFrame
	}

	r.currentTimestamp++

	n, ok := r.nodes[frameID]
	if !ok {
		n = &node{}
		r.nodes[frameID] = n
	}

	n.history = append(n.history, r.currentTimestamp)
	if len(n.history) > r.k {
		n.history = n.history[1:]
	}
	return nil
}

// SetEvictable flips a frame's evictable flag, adjusting the evictable
// count. It fails with ErrInvalidFrame if the frame has no recorded access.
func (r *LRUKReplacer) SetEvictable(frameID FrameID, evictable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validFrame(frameID) {
		return dberr.ErrInvalidFrame
	}
	n, ok := r.nodes[frameID]
	if !ok {
		return dberr.ErrInvalidFrame
	}

	if n.evictable && !evictable {
		r.evictableCount--
	} else if !n.evictable && evictable {
		r.evictableCount++
	}
	n.evictable = evictable
	return nil
}

// Evict scans the evictable set and returns the frame with the largest
// backward k-distance, ties broken by earliest access time. It removes the
// winning node and decrements the evictable count. The bool result is false
// if no frame is evictable.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var victim FrameID
	var maxDist int64 = -1
	var victimEarliest int64
	found := false

	for fid, n := range r.nodes {
		if !n.evictable {
			continue
		}
		dist := n.backwardKDistance(r.currentTimestamp, r.k)
		earliest := n.history[0]

		switch {
		case !found:
			victim, maxDist, victimEarliest, found = fid, dist, earliest, true
		case dist > maxDist:
			victim, maxDist, victimEarliest = fid, dist, earliest
		case dist == maxDist && earliest < victimEarliest:
			victim, victimEarliest = fid, earliest
		}
	}

	if !found {
		return 0, false
	}

	delete(r.nodes, victim)
	r.evictableCount--
	return victim, true
}

// Remove forcibly drops a node, failing with ErrNonEvictable if it is
// currently pinned (not evictable). Removing a frame that was never
// recorded is a no-op, matching the reference implementation.
func (r *LRUKReplacer) Remove(frameID FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frameID]
	if !ok {
		return nil
	}
	if !n.evictable {
		return dberr.ErrNonEvictable
	}

	delete(r.nodes, frameID)
	r.evictableCount--
	return nil
}

// Size returns the number of frames currently in the evictable set.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictableCount
}
