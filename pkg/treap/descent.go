package treap

import "github.com/coreseekdev/ternarytreap/pkg/runepool"

// descentResult is the outcome of a closestPrefixDescent: the deepest node
// reached while matching q character by character, plus enough bookkeeping
// for the caller to decide whether that node is an exact match, a stored
// prefix of q, or the anchor for a fuzzy search continuing past it.
type descentResult[V any] struct {
	// prefix is the concatenation of every mid-chain ancestor's label
	// strictly above closest, i.e. the runes of q already consumed by
	// descending through mid-links. Left/right BST steps consume no
	// characters of their own (they compare against the same character
	// position closest does), so they never contribute to prefix.
	prefix []rune
	// closest is the deepest node reached; nil only when the tree is
	// empty.
	closest *node[V]
	// qIdx is how many runes of q were consumed to reach closest.
	qIdx int
	// nodeIdx is the matched length within closest's own label (index of
	// the last rune of closest's label that matched, or -1 if none of
	// closest's label was reached, e.g. descent stopped on arrival via
	// left/right before trying closest's label at all).
	nodeIdx int
	// isFullMatch reports whether descent consumed the entirety of q
	// (qIdx == len(q)), as opposed to running out of tree (hitting a nil
	// child) with runes of q still unconsumed.
	isFullMatch bool
}

// closestPrefixDescent walks q through root, following BST comparisons on
// the first rune of a node's label and mid-links on subsequent runes,
// exactly as insertion does (spec §4.4 step 1) but without ever creating
// nodes. It is the shared read-only primitive behind Get, Contains, Remove,
// MarkKey, SuggestionByPrefix, and the search iterator's anchor.
func closestPrefixDescent[V any](root *node[V], q []rune, pool *runepool.Pool) descentResult[V] {
	if root == nil {
		return descentResult[V]{nodeIdx: -1}
	}

	var prefix []rune
	cur := root
	var lastVisited *node[V]
	i := 0
	nodeIdx := -1

	for cur != nil {
		lastVisited = cur
		label := pool.Get(cur.label)

		if i >= len(q) {
			nodeIdx = -1
			break
		}

		if q[i] < label[0] {
			nodeIdx = -1
			cur = cur.left
			continue
		}
		if q[i] > label[0] {
			nodeIdx = -1
			cur = cur.right
			continue
		}

		j := 0
		for j < len(label) && i < len(q) && label[j] == q[i] {
			j++
			i++
		}
		nodeIdx = j - 1

		if j < len(label) {
			// q ran out (or disagreed) strictly inside this label.
			break
		}
		if i == len(q) {
			// consumed q exactly at this node's label boundary.
			break
		}
		// label fully matched, q has more: descend via mid, accumulating
		// this node's label into prefix.
		prefix = append(prefix, label...)
		if cur.mid == nil {
			lastVisited = cur
			break
		}
		cur = cur.mid
	}

	return descentResult[V]{
		prefix:      prefix,
		closest:     lastVisited,
		qIdx:        i,
		nodeIdx:     nodeIdx,
		isFullMatch: i == len(q),
	}
}

// matchedKeyNode returns the node that exactly stores q as a key, or nil.
// isFullMatch alone is not sufficient: q may land strictly inside a longer
// compressed label (nodeIdx < label length - 1) without that label's node
// being a stored key at all.
func matchedKeyNode[V any](res descentResult[V], pool *runepool.Pool) *node[V] {
	if res.closest == nil || !res.isFullMatch {
		return nil
	}
	label := pool.Get(res.closest.label)
	if res.nodeIdx != len(label)-1 {
		return nil
	}
	if !res.closest.isKeyEnd {
		return nil
	}
	return res.closest
}
