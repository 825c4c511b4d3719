// Package treap implements the self-balancing ternary-search-tree/treap
// hybrid described by the specification: an ordered multimap from string
// keys to a value collection whose shape (set or list) is fixed per
// tree. See node.go for the per-node operations, descent.go for the
// closest-prefix descent shared by every read path, and iterator.go for
// the fuzzy prefix-search iterator.
package treap

import (
	"math/rand"

	"github.com/coreseekdev/ternarytreap/pkg/keymap"
	"github.com/coreseekdev/ternarytreap/pkg/runepool"
)

// defaultVersionCeiling bounds the monotonic version counters before they
// wrap to 1 (spec §9 "saturate... to keep them fixed-width").
const defaultVersionCeiling = 1<<32 - 1

// Options configures a new Tree.
type Options[V any] struct {
	// Mapping is the active KeyMapping; defaults to keymap.Identity.
	Mapping keymap.Mapping
	// NewCollection builds the value collection for a newly key-ended
	// node; required (treap.NewSetCollection / treap.NewListCollection).
	NewCollection CollectionFactory[V]
	// Seed seeds the tree's private PRNG for deterministic priorities in
	// tests; zero means "seed from a fresh, unseeded source".
	Seed int64
	// VersionCeiling bounds the version counters before wraparound;
	// zero means defaultVersionCeiling.
	VersionCeiling uint64
}

// Tree is a ternary-search-tree/treap hybrid ordered multimap (spec §3).
type Tree[V any] struct {
	root *node[V]
	pool *runepool.Pool
	rng  *rand.Rand

	mapping       keymap.Mapping
	newCollection CollectionFactory[V]

	keysVersion    uint64
	valuesVersion  uint64
	versionCeiling uint64

	keyCount int
}

// New creates an empty tree.
func New[V any](opts Options[V]) *Tree[V] {
	mapping := opts.Mapping
	if mapping == nil {
		mapping = keymap.Identity
	}
	ceiling := opts.VersionCeiling
	if ceiling == 0 {
		ceiling = defaultVersionCeiling
	}
	var rng *rand.Rand
	if opts.Seed != 0 {
		rng = rand.New(rand.NewSource(opts.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Tree[V]{
		pool:           runepool.New(),
		rng:            rng,
		mapping:        mapping,
		newCollection:  opts.NewCollection,
		versionCeiling: ceiling,
	}
}

// Mapping returns the tree's active KeyMapping.
func (t *Tree[V]) Mapping() keymap.Mapping { return t.mapping }

// Length returns the number of distinct keys stored.
func (t *Tree[V]) Length() int { return t.keyCount }

// IsEmpty reports whether the tree holds no keys.
func (t *Tree[V]) IsEmpty() bool { return t.keyCount == 0 }

// KeysVersion and ValuesVersion are the monotonic counters snapshotted by
// iterators (spec §5).
func (t *Tree[V]) KeysVersion() uint64   { return t.keysVersion }
func (t *Tree[V]) ValuesVersion() uint64 { return t.valuesVersion }

// PoolSizeBytes reports the approximate size of the interned edge
// labels, for callers wanting to size-estimate (the core itself never
// prints or formats this; that is explicitly an external concern).
func (t *Tree[V]) PoolSizeBytes() int { return t.pool.SizeBytes() }

// poolLen reports the number of distinct interned labels; used by tests
// to verify the "emptying the tree empties the pool" invariant.
func (t *Tree[V]) poolLen() int { return t.pool.Len() }

func (t *Tree[V]) bumpKeysVersion() {
	t.keysVersion++
	if t.keysVersion > t.versionCeiling {
		t.keysVersion = 1
	}
}

func (t *Tree[V]) bumpValuesVersion() {
	t.valuesVersion++
	if t.valuesVersion > t.versionCeiling {
		t.valuesVersion = 1
	}
}

func (t *Tree[V]) nextPriority() uint32 {
	return t.rng.Uint32()
}

// mapKey applies the active mapping and rejects an empty result.
func (t *Tree[V]) mapKey(raw string) ([]rune, error) {
	mapped := t.mapping.Apply(raw)
	if mapped == "" {
		return nil, newError(InvalidArgument, "key is empty after applying the active key mapping")
	}
	return []rune(mapped), nil
}

// mapPrefix applies the active mapping to a prefix query. Per the Open
// Question in spec §9, an empty mapped prefix is NOT an error: it yields
// an iterator over the whole tree (DESIGN.md decision 1).
func (t *Tree[V]) mapPrefix(raw string) []rune {
	return []rune(t.mapping.Apply(raw))
}

func (t *Tree[V]) repoint(parent, oldChild, newChild *node[V]) {
	if parent == nil {
		t.root = newChild
		return
	}
	switch {
	case parent.left == oldChild:
		parent.left = newChild
	case parent.mid == oldChild:
		parent.mid = newChild
	case parent.right == oldChild:
		parent.right = newChild
	}
}

func (t *Tree[V]) detachChild(parent, child *node[V]) {
	t.repoint(parent, child, nil)
}

// fixupAncestors walks from start to the tree root, merging mid-chains
// and restoring heap order one level at a time (spec §4.4 step 5, §4.5
// step 4). The level-by-level walk is what re-establishes heap order
// across multiple levels; each individual rotateIfNeeded call fixes at
// most the single level it is invoked on.
func (t *Tree[V]) fixupAncestors(start *node[V]) {
	n := start
	for n != nil {
		parent := n.parent
		n.mergeMid(t.pool)
		newRoot := n.rotateIfNeeded()
		if newRoot != n {
			t.repoint(parent, n, newRoot)
		}
		newRoot.updateDescendantCounts()
		n = newRoot.parent
	}
}

// splitNode splits n at index k (1 <= k < label length), per spec §4.4.
// Returns the new mid child holding the suffix.
func (t *Tree[V]) splitNode(n *node[V], k int) *node[V] {
	label := t.pool.Get(n.label)
	if k <= 0 || k >= len(label) {
		panic(newError(InvalidArgument, "split requested at label boundary"))
	}

	wasKeyEnd := n.isKeyEnd
	suffixChild := newNode[V](t.pool.Allocate(label[k:]), t.nextPriority())

	suffixChild.mid = n.mid
	if suffixChild.mid != nil {
		suffixChild.mid.parent = suffixChild
	}
	suffixChild.isKeyEnd = n.isKeyEnd
	suffixChild.values = n.values
	suffixChild.marked = n.marked

	n.isKeyEnd = false
	n.values = nil
	n.marked = false

	n.setLabel(append([]rune{}, label[:k]...), t.pool)

	n.mid = suffixChild
	suffixChild.parent = n

	if wasKeyEnd {
		n.descCount++
	}
	suffixChild.updateDescendantCounts()

	return suffixChild
}

// childSlot names which of a node's three links is being followed,
// tracked explicitly during descent so a newly created node can be
// attached without re-deriving the comparison that led to it.
type childSlot int

const (
	slotNone childSlot = iota
	slotLeft
	slotMid
	slotRight
)

func (t *Tree[V]) attach(parent *node[V], slot childSlot, n *node[V]) {
	if parent == nil {
		t.root = n
		return
	}
	switch slot {
	case slotLeft:
		parent.left = n
	case slotMid:
		parent.mid = n
	case slotRight:
		parent.right = n
	}
}

// descendOrCreate walks q down the tree, creating nodes as needed, and
// returns the node that should become (or already is) the key-end target
// for q (spec §4.4 steps 1-3).
func (t *Tree[V]) descendOrCreate(q []rune) *node[V] {
	if t.root == nil {
		n := newNode[V](t.pool.Allocate(q), t.nextPriority())
		t.root = n
		return n
	}

	cur := t.root
	var parent *node[V]
	slot := slotNone
	i := 0

	for {
		if cur == nil {
			n := newNode[V](t.pool.Allocate(q[i:]), t.nextPriority())
			n.parent = parent
			t.attach(parent, slot, n)
			return n
		}

		label := t.pool.Get(cur.label)
		if q[i] < label[0] {
			parent, slot, cur = cur, slotLeft, cur.left
			continue
		}
		if q[i] > label[0] {
			parent, slot, cur = cur, slotRight, cur.right
			continue
		}

		j := 1
		i++
		for j < len(label) && i < len(q) && label[j] == q[i] {
			j++
			i++
		}

		switch {
		case i == len(q) && j == len(label):
			return cur
		case i == len(q):
			// key exhausted, node label is not: split, parent half is target.
			t.splitNode(cur, j)
			return cur
		case j == len(label):
			// node label exhausted, key is not: descend via mid.
			if cur.mid == nil {
				n := newNode[V](t.pool.Allocate(q[i:]), t.nextPriority())
				n.parent = cur
				cur.mid = n
				return n
			}
			parent, slot, cur = cur, slotMid, cur.mid
		default:
			// both have runes remaining and disagree: split, continue from
			// the new mid child using the ordinary BST comparison.
			suffixChild := t.splitNode(cur, j)
			parent, slot, cur = cur, slotMid, suffixChild
		}
	}
}

// AddKey ensures rawKey is present, with no values attached if it did not
// already exist. Returns whether the key was newly created.
func (t *Tree[V]) AddKey(rawKey string) (bool, error) {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return false, err
	}
	n := t.descendOrCreate(q)
	created := n.setAsKeyEnd()
	if created {
		t.keyCount++
	}
	t.fixupAncestors(n)
	if created {
		t.bumpKeysVersion()
	}
	return created, nil
}

// AddValue ensures rawKey is present and adds v to its collection, reporting
// whether the collection's content changed (always true for a list shape,
// conditional on prior membership for a set shape).
func (t *Tree[V]) AddValue(rawKey string, v V) (bool, error) {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return false, err
	}
	n := t.descendOrCreate(q)
	created := n.setAsKeyEnd()
	if created {
		t.keyCount++
	}
	changed := n.addValue(v, t.newCollection)
	t.fixupAncestors(n)
	if created {
		t.bumpKeysVersion()
	}
	if changed {
		t.bumpValuesVersion()
	}
	return changed, nil
}

// AddValues ensures rawKey is present and adds every element of vs,
// reporting whether any element changed the collection's content.
func (t *Tree[V]) AddValues(rawKey string, vs []V) (bool, error) {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return false, err
	}
	n := t.descendOrCreate(q)
	created := n.setAsKeyEnd()
	if created {
		t.keyCount++
	}
	anyChanged := false
	for _, v := range vs {
		if n.addValue(v, t.newCollection) {
			anyChanged = true
		}
	}
	t.fixupAncestors(n)
	if created {
		t.bumpKeysVersion()
	}
	if anyChanged {
		t.bumpValuesVersion()
	}
	return anyChanged, nil
}

// SetValues ensures rawKey is present and replaces its values wholesale.
func (t *Tree[V]) SetValues(rawKey string, vs []V) error {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return err
	}
	n := t.descendOrCreate(q)
	created := n.setAsKeyEnd()
	if created {
		t.keyCount++
	}
	n.setValues(vs, t.newCollection)
	t.fixupAncestors(n)
	if created {
		t.bumpKeysVersion()
	}
	t.bumpValuesVersion()
	return nil
}

// Get returns rawKey's stored values and whether the key exists.
func (t *Tree[V]) Get(rawKey string) ([]V, bool, error) {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return nil, false, err
	}
	res := closestPrefixDescent(t.root, q, t.pool)
	n := matchedKeyNode(res, t.pool)
	if n == nil {
		return nil, false, nil
	}
	return n.valueList(), true, nil
}

// ContainsKey reports whether rawKey is present.
func (t *Tree[V]) ContainsKey(rawKey string) (bool, error) {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return false, err
	}
	res := closestPrefixDescent(t.root, q, t.pool)
	return matchedKeyNode(res, t.pool) != nil, nil
}

// ContainsValue reports whether rawKey is present and its collection holds v.
func (t *Tree[V]) ContainsValue(rawKey string, v V) (bool, error) {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return false, err
	}
	res := closestPrefixDescent(t.root, q, t.pool)
	n := matchedKeyNode(res, t.pool)
	if n == nil {
		return false, nil
	}
	_, ok := n.lookupValue(v)
	return ok, nil
}

// RemoveValue removes one occurrence of v from rawKey's collection. The
// key-end node survives even if this empties its collection (spec §4.5,
// DESIGN.md decision 3): only RemoveKey deletes a key-end outright.
func (t *Tree[V]) RemoveValue(rawKey string, v V) (bool, error) {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return false, err
	}
	res := closestPrefixDescent(t.root, q, t.pool)
	n := matchedKeyNode(res, t.pool)
	if n == nil {
		return false, nil
	}
	removed := n.removeValue(v)
	if removed {
		t.bumpValuesVersion()
	}
	return removed, nil
}

// RemoveValues empties rawKey's collection, returning what was removed. The
// key-end node itself survives with the empty sentinel.
func (t *Tree[V]) RemoveValues(rawKey string) ([]V, error) {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return nil, err
	}
	res := closestPrefixDescent(t.root, q, t.pool)
	n := matchedKeyNode(res, t.pool)
	if n == nil {
		return nil, nil
	}
	prior := n.removeValues()
	if len(prior) > 0 {
		t.bumpValuesVersion()
	}
	return prior, nil
}

// RemoveKey removes rawKey entirely, reporting whether it was present. The
// underlying node is physically deleted only when nothing else depends on
// it (spec §4.5): a node with a live mid-child still terminates longer
// keys and is merely stripped of its own key-end status.
func (t *Tree[V]) RemoveKey(rawKey string) (bool, error) {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return false, err
	}
	res := closestPrefixDescent(t.root, q, t.pool)
	n := matchedKeyNode(res, t.pool)
	if n == nil {
		return false, nil
	}
	n.clearKeyEnd()
	t.keyCount--
	t.deleteNodeIfPossible(n)
	t.bumpKeysVersion()
	t.bumpValuesVersion()
	return true, nil
}

// deleteNodeIfPossible physically removes n when it no longer carries a
// key-end or a mid-child, rotating it down to a left/right leaf through its
// higher-priority child (the standard treap deletion walk) before splicing
// it out and re-running fixup from its former parent.
func (t *Tree[V]) deleteNodeIfPossible(n *node[V]) {
	if n.isKeyEnd || n.mid != nil {
		t.fixupAncestors(n)
		return
	}

	for n.left != nil || n.right != nil {
		parent := n.parent
		var newRoot *node[V]
		if n.right == nil || (n.left != nil && n.left.priority > n.right.priority) {
			newRoot = n.rotateRight()
		} else {
			newRoot = n.rotateLeft()
		}
		t.repoint(parent, n, newRoot)
	}

	parent := n.parent
	t.detachChild(parent, n)
	t.pool.Free(n.label)
	t.fixupAncestors(parent)
}

// Clear empties the tree, releasing every interned label.
func (t *Tree[V]) Clear() {
	t.root = nil
	t.pool = runepool.New()
	t.keyCount = 0
	t.bumpKeysVersion()
	t.bumpValuesVersion()
}

// MarkKey flags rawKey as marked and promotes its node upward through
// single rotations, boosting its own priority ahead of each ancestor it
// passes rather than swapping priorities outright: swapping would steal
// the ancestor's priority and could invalidate heap order against that
// ancestor's OTHER child, whereas a one-sided boost leaves the ancestor's
// relationship with its sibling subtree untouched (DESIGN.md decision).
// Promotion stops at the first ancestor reached via a mid-link, since mid
// crosses into an independent per-character sub-treap.
func (t *Tree[V]) MarkKey(rawKey string) (bool, error) {
	q, err := t.mapKey(rawKey)
	if err != nil {
		return false, err
	}
	res := closestPrefixDescent(t.root, q, t.pool)
	n := matchedKeyNode(res, t.pool)
	if n == nil {
		return false, newError(InvalidArgument, "mark_key: no such key")
	}
	n.marked = true
	t.promote(n)
	return true, nil
}

func (t *Tree[V]) promote(n *node[V]) {
	for n.parent != nil {
		parent := n.parent
		if parent.mid == n {
			break
		}
		grandparent := parent.parent
		n.priority = parent.priority + 1

		var newRoot *node[V]
		switch {
		case parent.left == n:
			newRoot = parent.rotateRight()
		case parent.right == n:
			newRoot = parent.rotateLeft()
		default:
			break
		}
		t.repoint(grandparent, parent, newRoot)
	}
}

// Suggestion is one fuzzy-match result from FuzzyByPrefix.
type Suggestion[V any] struct {
	Key      string
	Values   []V
	Distance int
	Marked   bool
}

// FuzzyByPrefix returns up to limit keys within maxDistance substitutions of
// rawPrefix, ordered by ascending distance and then lexicographically, with
// marked keys surfaced first within their distance group. limit <= 0 means
// unbounded. This is the ranked, multi-result search; for the single-string
// completion, use SuggestionByPrefix.
func (t *Tree[V]) FuzzyByPrefix(rawPrefix string, maxDistance int, limit int) ([]Suggestion[V], error) {
	it, err := t.NewIterator(rawPrefix, IteratorOptions{MaxDistance: maxDistance})
	if err != nil {
		return nil, err
	}

	var out []Suggestion[V]
	for it.Advance() {
		if limit > 0 && len(out) >= limit {
			break
		}
		cur, err := it.Current()
		if err != nil {
			return out, err
		}
		out = append(out, Suggestion[V]{
			Key:      cur.Key,
			Values:   cur.Values,
			Distance: cur.Distance,
			Marked:   cur.Marked,
		})
	}
	return out, nil
}

// SuggestionByPrefix returns a single completion for rawPrefix: a
// closest-prefix descent, then a walk through nothing but mid-links (no BST
// branching, no ranking), concatenating each visited node's full label until
// the first key-end is reached. That key is the suggestion; if the mid-chain
// runs out (nil) before any key-end is seen, rawPrefix is returned unchanged.
// This is what makes MarkKey's promotion meaningful: a marked key sits higher
// in its mid-chain and so is reached first by this walk.
func (t *Tree[V]) SuggestionByPrefix(rawPrefix string) (string, error) {
	q := t.mapPrefix(rawPrefix)
	res := closestPrefixDescent(t.root, q, t.pool)
	if res.closest == nil || !res.isFullMatch {
		return rawPrefix, nil
	}

	built := append([]rune{}, res.prefix...)
	for n := res.closest; n != nil; n = n.mid {
		built = append(built, t.pool.Get(n.label)...)
		if n.isKeyEnd {
			return string(built), nil
		}
	}
	return rawPrefix, nil
}
