package btree

import (
	"fmt"

	"stonedb/storage/buffer"
	"stonedb/storage/page"
)

// Remove deletes k from the tree. Returns (false, nil) if k is absent.
//
// Crabbing mirrors Insert: the header's write latch is taken first, each
// child is latched before the parent's latch set is released the instant
// the child is proven safe for delete (size−1 ≥ min_size, or the child is
// the root), per spec.md §4.4's delete crabbing rule.
//
// Underflow is resolved by redistributing from a sibling when one has
// spare capacity, else merging with a sibling, pulling the separator key
// down from the parent — spec.md §4.4 step 5, grounded on the teacher's
// deleteRecursive borrow/merge logic (storage_engine/access/indexfile_manager/bplustree/deletion.go)
// and adapted to zero-copy page views plus the explicit opContext path stack.
func (t *BPlusTree[K]) Remove(k K) (bool, error) {
	header, err := t.pool.FetchPageWrite(t.headerPageID)
	if err != nil {
		return false, fmt.Errorf("btree: fetch header: %w", err)
	}
	ctx := newOpContext(header)

	rootID := readHeaderRoot(header.Page().Data())
	if rootID == page.InvalidID {
		ctx.releaseAll()
		return false, nil
	}

	root, err := t.pool.FetchPageWrite(rootID)
	if err != nil {
		ctx.releaseAll()
		return false, fmt.Errorf("btree: fetch root: %w", err)
	}
	if t.safeForDelete(root, true) {
		ctx.releaseAncestors()
	}
	ctx.push(root)
	cur := root

	for {
		data := t.usable(cur.Page())
		if readPageType(data) == pageTypeLeaf {
			leaf, _ := ctx.popParent()
			return t.removeFromLeaf(ctx, leaf, k)
		}

		internal := t.internalView(cur.Page())
		childID := internal.ChildAt(internal.FindChildIndex(k, t.cmp))
		child, err := t.pool.FetchPageWrite(childID)
		if err != nil {
			ctx.releaseAll()
			return false, fmt.Errorf("btree: fetch child %d: %w", childID, err)
		}
		if t.safeForDelete(child, false) {
			ctx.releaseAncestors()
		}
		ctx.push(child)
		cur = child
	}
}

// safeForDelete reports whether g can lose one entry/child without needing
// to borrow or merge with a sibling. The root is exempt from the minSize
// floor for leaves, but a root leaf holding a single entry is not safe: the
// delete may empty it, which rewrites the header (an emptied leaf root just
// becomes an empty tree). An internal root uses a 2-children floor
// (dropping to 1 child is what triggers collapse, handled separately in
// collapseRoot).
func (t *BPlusTree[K]) safeForDelete(g buffer.WriteGuard, isRoot bool) bool {
	data := t.usable(g.Page())
	if readPageType(data) == pageTypeLeaf {
		if isRoot {
			return t.leafView(g.Page()).Size() > 1
		}
		return t.leafView(g.Page()).IsSafeForDelete(t.leafMinSize)
	}
	if isRoot {
		return t.internalView(g.Page()).Size()-1 >= 2
	}
	return t.internalView(g.Page()).IsSafeForDelete(t.internalMin)
}

// removeFromLeaf owns leaf solely (already popped off ctx.path).
func (t *BPlusTree[K]) removeFromLeaf(ctx *opContext, leaf buffer.WriteGuard, k K) (bool, error) {
	view := t.leafView(leaf.Page())
	idx, found := view.Find(k, t.cmp)
	if !found {
		leaf.Drop()
		ctx.releaseAll()
		return false, nil
	}
	view.RemoveAt(idx)
	leaf.MarkDirty()

	if len(ctx.path) == 0 {
		// Leaf is the root: no sibling to rebalance against. An emptied
		// root leaf collapses the tree to empty.
		if view.Size() == 0 {
			if err := writeHeaderRoot(ctx.header.Page().Data(), page.InvalidID); err != nil {
				leaf.Drop()
				ctx.releaseAll()
				return false, err
			}
			ctx.header.MarkDirty()
		}
		leaf.Drop()
		ctx.releaseAll()
		return true, nil
	}

	if view.Size() >= t.leafMinSize {
		leaf.Drop()
		ctx.releaseAll()
		return true, nil
	}
	return true, t.rebalance(ctx, leaf, true)
}

// rebalance resolves an underflow in child (already removed from ctx.path)
// by borrowing from a sibling or merging with one, walking up through
// ancestors as long as the merge causes the parent to underflow in turn.
func (t *BPlusTree[K]) rebalance(ctx *opContext, child buffer.WriteGuard, childIsLeaf bool) error {
	for {
		parent, ok := ctx.popParent()
		if !ok {
			return t.collapseRoot(ctx, child, childIsLeaf)
		}

		parentView := t.internalView(parent.Page())
		idx, found := parentView.IndexOfChild(child.PageID())
		if !found {
			child.Drop()
			parent.Drop()
			ctx.releaseAll()
			return fmt.Errorf("btree: internal error: child %d not found in parent %d", child.PageID(), parent.PageID())
		}

		if idx > 0 {
			leftID := parentView.ChildAt(idx - 1)
			left, err := t.pool.FetchPageWrite(leftID)
			if err != nil {
				child.Drop()
				parent.Drop()
				ctx.releaseAll()
				return fmt.Errorf("btree: fetch left sibling %d: %w", leftID, err)
			}
			if t.canLend(left, childIsLeaf) {
				t.borrowFromLeft(parentView, idx, left, child, childIsLeaf)
				left.MarkDirty()
				left.Drop()
				child.MarkDirty()
				child.Drop()
				parent.MarkDirty()
				parent.Drop()
				ctx.releaseAll()
				return nil
			}
			left.Drop()
		}

		if idx < parentView.Size()-1 {
			rightID := parentView.ChildAt(idx + 1)
			right, err := t.pool.FetchPageWrite(rightID)
			if err != nil {
				child.Drop()
				parent.Drop()
				ctx.releaseAll()
				return fmt.Errorf("btree: fetch right sibling %d: %w", rightID, err)
			}
			if t.canLend(right, childIsLeaf) {
				t.borrowFromRight(parentView, idx, child, right, childIsLeaf)
				right.MarkDirty()
				right.Drop()
				child.MarkDirty()
				child.Drop()
				parent.MarkDirty()
				parent.Drop()
				ctx.releaseAll()
				return nil
			}
			right.Drop()
		}

		// No sibling can lend: merge. Prefer merging child into its left
		// sibling; fall back to merging the right sibling into child.
		if idx > 0 {
			leftID := parentView.ChildAt(idx - 1)
			left, err := t.pool.FetchPageWrite(leftID)
			if err != nil {
				child.Drop()
				parent.Drop()
				ctx.releaseAll()
				return fmt.Errorf("btree: fetch left sibling %d: %w", leftID, err)
			}
			t.mergeIntoLeft(parentView, idx, left, child, childIsLeaf)
			left.MarkDirty()
			left.Drop()
			child.Drop()
			if err := parentView.RemoveAt(idx); err != nil {
				parent.Drop()
				ctx.releaseAll()
				return err
			}
		} else {
			rightID := parentView.ChildAt(idx + 1)
			right, err := t.pool.FetchPageWrite(rightID)
			if err != nil {
				child.Drop()
				parent.Drop()
				ctx.releaseAll()
				return fmt.Errorf("btree: fetch right sibling %d: %w", rightID, err)
			}
			t.mergeRightInto(parentView, idx, child, right, childIsLeaf)
			child.MarkDirty()
			child.Drop()
			right.Drop()
			if err := parentView.RemoveAt(idx + 1); err != nil {
				parent.Drop()
				ctx.releaseAll()
				return err
			}
		}

		if len(ctx.path) == 0 {
			// parent is the root: only an internal-root single-child
			// collapse remains to check, handled by collapseRoot.
			if t.withinMinSize(parent, true) {
				parent.MarkDirty()
				parent.Drop()
				ctx.releaseAll()
				return nil
			}
			return t.collapseRoot(ctx, parent, false)
		}

		if t.withinMinSize(parent, false) {
			parent.MarkDirty()
			parent.Drop()
			ctx.releaseAll()
			return nil
		}

		// Parent itself underflowed: keep propagating upward.
		parent.MarkDirty()
		child = parent
		childIsLeaf = false
	}
}

// collapseRoot is reached once propagation has walked all the way up to the
// root. Only an internal root dropping to a single child collapses (that
// child is promoted to root); an emptied root leaf is handled earlier, in
// removeFromLeaf.
func (t *BPlusTree[K]) collapseRoot(ctx *opContext, root buffer.WriteGuard, rootIsLeaf bool) error {
	if !rootIsLeaf {
		view := t.internalView(root.Page())
		if view.Size() == 1 {
			newRootID := view.ChildAt(0)
			if err := writeHeaderRoot(ctx.header.Page().Data(), newRootID); err != nil {
				root.Drop()
				ctx.releaseAll()
				return err
			}
			ctx.header.MarkDirty()
			root.Drop()
			ctx.releaseAll()
			return nil
		}
	}
	root.MarkDirty()
	root.Drop()
	ctx.releaseAll()
	return nil
}

// withinMinSize reports whether g currently satisfies its minimum-occupancy
// floor — used after a merge has already been applied, unlike safeForDelete
// which asks whether g would still satisfy it after a future removal.
func (t *BPlusTree[K]) withinMinSize(g buffer.WriteGuard, isRoot bool) bool {
	data := t.usable(g.Page())
	if readPageType(data) == pageTypeLeaf {
		if isRoot {
			return true
		}
		return t.leafView(g.Page()).Size() >= t.leafMinSize
	}
	if isRoot {
		return t.internalView(g.Page()).Size() >= 2
	}
	return t.internalView(g.Page()).Size() >= t.internalMin
}

func (t *BPlusTree[K]) canLend(sibling buffer.WriteGuard, isLeaf bool) bool {
	if isLeaf {
		return t.leafView(sibling.Page()).Size()-1 >= t.leafMinSize
	}
	return t.internalView(sibling.Page()).Size()-1 >= t.internalMin
}

// borrowFromLeft moves left's last entry/child into child's front, updating
// the parent separator at slot idx accordingly.
func (t *BPlusTree[K]) borrowFromLeft(parentView *InternalPage[K], idx int, left, child buffer.WriteGuard, childIsLeaf bool) {
	if childIsLeaf {
		leftView := t.leafView(left.Page())
		childView := t.leafView(child.Page())
		last := leftView.Size() - 1
		k, r := leftView.KeyAt(last), leftView.RIDAt(last)
		leftView.RemoveAt(last)
		childView.InsertAt(0, k, r)
		parentView.setKeyAt(idx, childView.KeyAt(0))
		return
	}

	leftView := t.internalView(left.Page())
	childView := t.internalView(child.Page())
	last := leftView.Size() - 1
	movedChild := leftView.ChildAt(last)
	movedKey := leftView.KeyAt(last)
	oldSep := parentView.KeyAt(idx)
	leftView.RemoveAt(last)

	var zero K
	childView.InsertAt(0, zero, movedChild)
	childView.setKeyAt(1, oldSep)
	parentView.setKeyAt(idx, movedKey)
}

// borrowFromRight moves right's first entry/child into child's end,
// updating the parent separator at slot idx+1 accordingly.
func (t *BPlusTree[K]) borrowFromRight(parentView *InternalPage[K], idx int, child, right buffer.WriteGuard, childIsLeaf bool) {
	if childIsLeaf {
		childView := t.leafView(child.Page())
		rightView := t.leafView(right.Page())
		k, r := rightView.KeyAt(0), rightView.RIDAt(0)
		rightView.RemoveAt(0)
		childView.InsertAt(childView.Size(), k, r)
		parentView.setKeyAt(idx+1, rightView.KeyAt(0))
		return
	}

	childView := t.internalView(child.Page())
	rightView := t.internalView(right.Page())
	movedChild := rightView.ChildAt(0)
	movedKey := rightView.KeyAt(1)
	oldSep := parentView.KeyAt(idx + 1)
	rightView.RemoveAt(0)

	childView.InsertAt(childView.Size(), oldSep, movedChild)
	parentView.setKeyAt(idx+1, movedKey)
}

// mergeIntoLeft absorbs child's entries/children into left (child's left
// sibling). Caller removes child's now-stale slot from the parent.
func (t *BPlusTree[K]) mergeIntoLeft(parentView *InternalPage[K], idx int, left, child buffer.WriteGuard, childIsLeaf bool) {
	if childIsLeaf {
		leftView := t.leafView(left.Page())
		childView := t.leafView(child.Page())
		base := leftView.Size()
		for i := 0; i < childView.Size(); i++ {
			leftView.InsertAt(base+i, childView.KeyAt(i), childView.RIDAt(i))
		}
		_ = leftView.SetNextPageID(childView.NextPageID())
		return
	}

	leftView := t.internalView(left.Page())
	childView := t.internalView(child.Page())
	sep := parentView.KeyAt(idx)
	base := leftView.Size()
	leftView.InsertAt(base, sep, childView.ChildAt(0))
	for i := 1; i < childView.Size(); i++ {
		leftView.InsertAt(base+i, childView.KeyAt(i), childView.ChildAt(i))
	}
}

// mergeRightInto absorbs right (child's right sibling) into child. Caller
// removes right's now-stale slot from the parent.
func (t *BPlusTree[K]) mergeRightInto(parentView *InternalPage[K], idx int, child, right buffer.WriteGuard, childIsLeaf bool) {
	if childIsLeaf {
		childView := t.leafView(child.Page())
		rightView := t.leafView(right.Page())
		base := childView.Size()
		for i := 0; i < rightView.Size(); i++ {
			childView.InsertAt(base+i, rightView.KeyAt(i), rightView.RIDAt(i))
		}
		_ = childView.SetNextPageID(rightView.NextPageID())
		return
	}

	childView := t.internalView(child.Page())
	rightView := t.internalView(right.Page())
	sep := parentView.KeyAt(idx + 1)
	base := childView.Size()
	childView.InsertAt(base, sep, rightView.ChildAt(0))
	for i := 1; i < rightView.Size(); i++ {
		childView.InsertAt(base+i, rightView.KeyAt(i), rightView.ChildAt(i))
	}
}
