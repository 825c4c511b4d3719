package treap

import "github.com/coreseekdev/ternarytreap/pkg/runepool"

// node is a single tree node: an edge-label handle, up to three BST/mid
// children, a weak parent back-link, a treap priority, and the key-end
// payload described in spec §3.
//
// Heap order (spec invariant 2) is maintained only between a node and
// its left/right children — each mid-link starts an independent BST+treap
// keyed on the next rune, so rotations never cross a mid boundary.
type node[V any] struct {
	label    runepool.Handle
	priority uint32

	left, mid, right *node[V]
	parent           *node[V] // weak: root-ward traversal only, never owns

	isKeyEnd bool
	values   ValueCollection[V] // nil: not a key-end, or key-end with the empty sentinel
	marked   bool

	descCount int // key-end nodes strictly below this node
}

func newNode[V any](h runepool.Handle, priority uint32) *node[V] {
	return &node[V]{label: h, priority: priority}
}

// setAsKeyEnd marks n as a key-end if it is not already one. Returns true
// on transition (spec §4.3).
func (n *node[V]) setAsKeyEnd() bool {
	if n.isKeyEnd {
		return false
	}
	n.isKeyEnd = true
	return true
}

// clearKeyEnd removes key-end status and discards any values.
func (n *node[V]) clearKeyEnd() {
	n.isKeyEnd = false
	n.values = nil
}

// setValues replaces the values collection with a shallow copy of vs,
// or the empty sentinel if vs is empty. Precondition: n.isKeyEnd.
func (n *node[V]) setValues(vs []V, factory CollectionFactory[V]) {
	if len(vs) == 0 {
		n.values = nil
		return
	}
	c := factory()
	for _, v := range vs {
		c.Add(v)
	}
	n.values = c
}

// addValue lazily promotes the empty sentinel to a real collection, then
// adds v, reporting whether the collection's content changed.
func (n *node[V]) addValue(v V, factory CollectionFactory[V]) bool {
	if n.values == nil {
		n.values = factory()
	}
	return n.values.Add(v)
}

// removeValue removes one occurrence of v, reporting whether found.
func (n *node[V]) removeValue(v V) bool {
	if n.values == nil {
		return false
	}
	return n.values.Remove(v)
}

// removeValues empties the collection and returns its prior contents.
// The node remains a key-end with the empty sentinel (spec §4.5).
func (n *node[V]) removeValues() []V {
	if n.values == nil {
		return nil
	}
	prior := n.values.Values()
	n.values = nil
	return prior
}

// lookupValue returns the stored element equal to v (identity-preserving)
// or false.
func (n *node[V]) lookupValue(v V) (V, bool) {
	if n.values == nil {
		var zero V
		return zero, false
	}
	return n.values.Lookup(v)
}

// valueList returns the node's values in collection order, or nil if the
// node is not a key-end or carries the empty sentinel.
func (n *node[V]) valueList() []V {
	if n.values == nil {
		return nil
	}
	return n.values.Values()
}

// setLabel re-allocates n's edge label through pool, freeing the old one.
func (n *node[V]) setLabel(seq []rune, pool *runepool.Pool) {
	old := n.label
	n.label = pool.Allocate(seq)
	pool.Free(old)
}

// keyEndSubtreeCount returns the number of key-end nodes in n's whole
// subtree (n included), or 0 for a nil node.
func keyEndSubtreeCount[V any](n *node[V]) int {
	if n == nil {
		return 0
	}
	cnt := n.descCount
	if n.isKeyEnd {
		cnt++
	}
	return cnt
}

// updateDescendantCounts recomputes n.descCount from its three children
// (spec invariant 5).
func (n *node[V]) updateDescendantCounts() {
	n.descCount = keyEndSubtreeCount(n.left) + keyEndSubtreeCount(n.mid) + keyEndSubtreeCount(n.right)
}

// mergeMid absorbs n's mid child into n when it is safe to do so (spec
// §4.3): n must not be a key-end, and the mid child must have neither a
// left nor a right child. The concatenated label is re-interned; the
// absorbed mid's key-end status, values, and own mid child move to n.
func (n *node[V]) mergeMid(pool *runepool.Pool) {
	mid := n.mid
	if mid == nil || n.isKeyEnd || mid.left != nil || mid.right != nil {
		return
	}

	combined := append(append([]rune{}, pool.Get(n.label)...), pool.Get(mid.label)...)
	n.setLabel(combined, pool)

	n.isKeyEnd = mid.isKeyEnd
	n.values = mid.values
	n.marked = n.marked || mid.marked

	n.mid = mid.mid
	if n.mid != nil {
		n.mid.parent = n
	}

	pool.Free(mid.label)
}

// rotateLeft performs a standard BST left rotation on (n, n.right),
// returning the new local subtree root. Priority is a label on the node,
// never swapped by a plain rotation (spec §4.3).
func (n *node[V]) rotateLeft() *node[V] {
	r := n.right
	n.right = r.left
	if n.right != nil {
		n.right.parent = n
	}
	r.left = n

	r.parent = n.parent
	n.parent = r

	n.updateDescendantCounts()
	r.updateDescendantCounts()
	return r
}

// rotateRight performs a standard BST right rotation on (n, n.left).
func (n *node[V]) rotateRight() *node[V] {
	l := n.left
	n.left = l.right
	if n.left != nil {
		n.left.parent = n
	}
	l.right = n

	l.parent = n.parent
	n.parent = l

	n.updateDescendantCounts()
	l.updateDescendantCounts()
	return l
}

// rotateIfNeeded rotates n toward whichever of its left/right children
// has a higher priority, restoring heap order at this position. Returns
// the (possibly new) local subtree root. Called once per ancestor during
// the bottom-up fixup walk in Insert/Remove, which is what re-establishes
// heap order across multiple levels (spec §4.3, §4.4 step 5).
func (n *node[V]) rotateIfNeeded() *node[V] {
	if n.left != nil && n.left.priority > n.priority {
		return n.rotateRight()
	}
	if n.right != nil && n.right.priority > n.priority {
		return n.rotateLeft()
	}
	return n
}
