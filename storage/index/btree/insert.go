package btree

import (
	"fmt"

	"stonedb/dberr"
	"stonedb/storage/buffer"
	"stonedb/storage/page"
)

// Insert adds (k, v) to the tree. Returns dberr.ErrDuplicateKey if the key
// already exists — unique-key violation, spec.md §4.4's Insert step 1.
//
// Crabbing: the header's write latch is always taken first (either branch
// of the tree may need to replace the root); each child along the path is
// latched before its parent's latch set is released, the instant the child
// is proven safe for insert (size+1 ≤ max_size, spec.md's "safe (insert)").
//
// Invariant kept throughout this file: ctx.path never holds the guard a
// function is actively mutating — a guard is always popped off the path
// (or never pushed, for a brand-new page) before its dirty bit is set or it
// is dropped, so there is exactly one live copy of any guard being acted on.
func (t *BPlusTree[K]) Insert(k K, v RID) (bool, error) {
	header, err := t.pool.FetchPageWrite(t.headerPageID)
	if err != nil {
		return false, fmt.Errorf("btree: fetch header: %w", err)
	}
	ctx := newOpContext(header)

	rootID := readHeaderRoot(header.Page().Data())
	if rootID == page.InvalidID {
		return t.insertIntoEmptyTree(ctx, k, v)
	}

	root, err := t.pool.FetchPageWrite(rootID)
	if err != nil {
		ctx.releaseAll()
		return false, fmt.Errorf("btree: fetch root: %w", err)
	}
	if t.safeForInsert(root) {
		ctx.releaseAncestors()
	}
	ctx.push(root)
	cur := root

	for {
		data := t.usable(cur.Page())
		if readPageType(data) == pageTypeLeaf {
			leaf, _ := ctx.popParent()
			return t.insertIntoLeaf(ctx, leaf, k, v)
		}

		internal := t.internalView(cur.Page())
		childID := internal.ChildAt(internal.FindChildIndex(k, t.cmp))
		child, err := t.pool.FetchPageWrite(childID)
		if err != nil {
			ctx.releaseAll()
			return false, fmt.Errorf("btree: fetch child %d: %w", childID, err)
		}
		if t.safeForInsert(child) {
			ctx.releaseAncestors()
		}
		ctx.push(child)
		cur = child
	}
}

func (t *BPlusTree[K]) safeForInsert(g buffer.WriteGuard) bool {
	data := t.usable(g.Page())
	if readPageType(data) == pageTypeLeaf {
		return t.leafView(g.Page()).IsSafeForInsert()
	}
	return t.internalView(g.Page()).IsSafeForInsert()
}

func (t *BPlusTree[K]) insertIntoEmptyTree(ctx *opContext, k K, v RID) (bool, error) {
	leafID, leafGuard, err := t.pool.NewPageWriteGuarded()
	if err != nil {
		ctx.releaseAll()
		return false, fmt.Errorf("btree: allocate root leaf: %w", err)
	}
	leaf := t.leafView(leafGuard.Page())
	leaf.Init(t.leafMaxSize)
	leaf.InsertAt(0, k, v)
	leafGuard.MarkDirty()
	leafGuard.Drop()

	if err := writeHeaderRoot(ctx.header.Page().Data(), leafID); err != nil {
		ctx.releaseAll()
		return false, err
	}
	ctx.header.MarkDirty()
	ctx.releaseAll()
	return true, nil
}

// insertIntoLeaf receives sole ownership of leaf (already popped off
// ctx.path — not present anywhere else) and is responsible for dropping it
// on every return path, directly or via splitAndPropagate.
func (t *BPlusTree[K]) insertIntoLeaf(ctx *opContext, leaf buffer.WriteGuard, k K, v RID) (bool, error) {
	view := t.leafView(leaf.Page())
	if _, found := view.Find(k, t.cmp); found {
		leaf.Drop()
		ctx.releaseAll()
		return false, dberr.ErrDuplicateKey
	}

	idx := view.LowerBound(k, t.cmp)
	view.InsertAt(idx, k, v)
	leaf.MarkDirty()

	if view.Size() <= view.MaxSize() {
		leaf.Drop()
		ctx.releaseAll()
		return true, nil
	}
	return true, t.splitAndPropagate(ctx, leaf)
}

// splitAndPropagate splits overflowed (a leaf or internal page whose size
// now exceeds its max_size by exactly one slot) and recurses upward through
// any ancestor that overflows in turn, per spec.md §4.4 step 3. overflowed
// is solely owned by this call — it is not on ctx.path.
func (t *BPlusTree[K]) splitAndPropagate(ctx *opContext, overflowed buffer.WriteGuard) error {
	isLeafLevel := readPageType(t.usable(overflowed.Page())) == pageTypeLeaf

	var sepKey K
	var rightID page.ID

	if isLeafLevel {
		leftView := t.leafView(overflowed.Page())
		newRightID, rightGuard, err := t.pool.NewPageWriteGuarded()
		if err != nil {
			overflowed.Drop()
			ctx.releaseAll()
			return fmt.Errorf("btree: allocate right sibling: %w", err)
		}
		rightView := t.leafView(rightGuard.Page())
		rightView.Init(t.leafMaxSize)
		oldNext := leftView.NextPageID()
		sep, err := leftView.SplitInto(rightView, newRightID, oldNext)
		rightGuard.MarkDirty()
		rightGuard.Drop()
		if err != nil {
			overflowed.Drop()
			ctx.releaseAll()
			return err
		}
		sepKey, rightID = sep, newRightID
	} else {
		leftView := t.internalView(overflowed.Page())
		newRightID, rightGuard, err := t.pool.NewPageWriteGuarded()
		if err != nil {
			overflowed.Drop()
			ctx.releaseAll()
			return fmt.Errorf("btree: allocate right sibling: %w", err)
		}
		rightView := t.internalView(rightGuard.Page())
		rightView.Init(t.internalMax)
		sep := leftView.SplitInto(rightView)
		rightGuard.MarkDirty()
		rightGuard.Drop()
		sepKey, rightID = sep, newRightID
	}

	overflowed.MarkDirty()
	current := overflowed

	for {
		parent, ok := ctx.popParent()
		if !ok {
			return t.createNewRoot(ctx, current, sepKey, rightID)
		}

		parentView := t.internalView(parent.Page())
		idx, found := parentView.IndexOfChild(current.PageID())
		if !found {
			current.Drop()
			parent.Drop()
			ctx.releaseAll()
			return fmt.Errorf("btree: internal error: child %d not found in parent %d", current.PageID(), parent.PageID())
		}
		if err := parentView.InsertAt(idx+1, sepKey, rightID); err != nil {
			current.Drop()
			parent.Drop()
			ctx.releaseAll()
			return err
		}
		current.Drop()

		if parentView.Size() <= parentView.MaxSize() {
			parent.MarkDirty()
			parent.Drop()
			ctx.releaseAll()
			return nil
		}

		// Parent itself now overflows: split it and keep propagating with
		// parent playing the role of "current".
		newRightID, rightGuard, err := t.pool.NewPageWriteGuarded()
		if err != nil {
			parent.Drop()
			ctx.releaseAll()
			return fmt.Errorf("btree: allocate right sibling: %w", err)
		}
		rightView := t.internalView(rightGuard.Page())
		rightView.Init(t.internalMax)
		newSep := parentView.SplitInto(rightView)
		rightGuard.MarkDirty()
		rightGuard.Drop()

		parent.MarkDirty()
		current = parent
		sepKey = newSep
		rightID = newRightID
	}
}

// createNewRoot is reached when a split propagates past the tree's current
// root: current is the old root (the new root's left child), sepKey and
// rightID its freshly split-off right sibling.
func (t *BPlusTree[K]) createNewRoot(ctx *opContext, current buffer.WriteGuard, sepKey K, rightID page.ID) error {
	newRootID, newRootGuard, err := t.pool.NewPageWriteGuarded()
	if err != nil {
		current.Drop()
		ctx.releaseAll()
		return fmt.Errorf("btree: allocate new root: %w", err)
	}
	newRootView := t.internalView(newRootGuard.Page())
	if err := newRootView.InitRoot(t.internalMax, current.PageID(), sepKey, rightID); err != nil {
		newRootGuard.Drop()
		current.Drop()
		ctx.releaseAll()
		return err
	}
	newRootGuard.MarkDirty()
	newRootGuard.Drop()
	current.Drop()

	if err := writeHeaderRoot(ctx.header.Page().Data(), newRootID); err != nil {
		ctx.releaseAll()
		return err
	}
	ctx.header.MarkDirty()
	ctx.releaseAll()
	return nil
}
