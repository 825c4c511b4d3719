package treap

import "sort"

// Entry is one (key, values) pair surfaced by an iteration, tagged with how
// far its prefix diverges from the query when the iteration allows fuzzy
// matches (Distance is always 0 for an exact-prefix iteration).
type Entry[V any] struct {
	Key      string
	Values   []V
	Distance int
	Marked   bool
}

// IteratorOptions configures NewIterator.
type IteratorOptions struct {
	// MaxDistance bounds fuzzy exploration past an exact prefix match; 0
	// restricts the iterator to exact-prefix matches only (spec §4.6).
	MaxDistance int
	// KeysOnly relaxes Current's concurrent-modification check to ignore
	// value-only mutations (additions/removals that don't touch any key's
	// existence), matching a caller that only reads key strings.
	KeysOnly bool
}

// matchCandidate is one collected (key, node, distance) triple, assembled
// by a tree walk before being sorted into iteration order.
type matchCandidate[V any] struct {
	key  string
	dist int
	node *node[V]
}

// Iterator is a stateful, single-pass cursor over a Tree's keys, grounded on
// the teacher's Next/Current/Reset cursor idiom (pkg/rope/iterator.go). It
// snapshots the tree's version counters at construction and on every Reset,
// raising ConcurrentModification the instant they drift underneath it
// (spec §5).
type Iterator[V any] struct {
	tree *Tree[V]

	entries []Entry[V]
	idx     int // -1 before the first Advance; len(entries) once exhausted

	keysOnly             bool
	keysVersionAtStart   uint64
	valuesVersionAtStart uint64
}

// NewIterator builds an iterator over every key whose mapped form matches
// rawPrefix exactly (opts.MaxDistance == 0) or lies within opts.MaxDistance
// character substitutions of it (spec §4.6), ordered by ascending distance
// and then lexicographically within a distance group. Per the Open Question
// resolved in DESIGN.md, a rawPrefix that maps to the empty string is not
// an error: it yields every key in the tree, all at distance 0.
func (t *Tree[V]) NewIterator(rawPrefix string, opts IteratorOptions) (*Iterator[V], error) {
	q := t.mapPrefix(rawPrefix)

	// A key shorter than q can never satisfy any prefix of q, so its distance
	// is undefined. A max_distance reaching or exceeding len(q) is clamped to
	// len(q)-1: otherwise hammingPrefixDistance's sentinel for "undefined"
	// would itself fall under the threshold and leak those too-short keys
	// into the results.
	maxDistance := opts.MaxDistance
	if maxDistance >= len(q) {
		maxDistance = len(q) - 1
	}

	var candidates []matchCandidate[V]
	if maxDistance <= 0 {
		candidates = t.exactPrefixCandidates(q)
	} else {
		candidates = t.fuzzyPrefixCandidates(q, maxDistance)
	}

	sortCandidates(candidates)

	entries := make([]Entry[V], len(candidates))
	for i, c := range candidates {
		entries[i] = Entry[V]{
			Key:      c.key,
			Values:   c.node.valueList(),
			Distance: c.dist,
			Marked:   c.node.marked,
		}
	}

	return &Iterator[V]{
		tree:                 t,
		entries:              entries,
		idx:                  -1,
		keysOnly:             opts.KeysOnly,
		keysVersionAtStart:   t.keysVersion,
		valuesVersionAtStart: t.valuesVersion,
	}, nil
}

// exactPrefixCandidates collects every key reachable by descending q through
// the tree exactly, all at distance 0.
func (t *Tree[V]) exactPrefixCandidates(q []rune) []matchCandidate[V] {
	res := closestPrefixDescent(t.root, q, t.pool)
	if res.closest == nil || !res.isFullMatch {
		return nil
	}
	var out []matchCandidate[V]
	if res.nodeIdx < 0 {
		// Arrived at closest without consuming any of its own label (only
		// possible for an empty mapped prefix at the root): left and right
		// are independent first-character alternatives, not continuations
		// of anything already matched, so the whole subtree is in play.
		t.inorderAll(res.closest, res.prefix, 0, &out)
	} else {
		// Committed to closest's own label: only it and its mid-chain
		// continue this one matched string.
		t.collectCompletions(res.closest, res.prefix, 0, &out)
	}
	return out
}

// fuzzyPrefixCandidates computes every key's Hamming-style prefix distance
// to q (substitutions only, compared over the first len(q) runes of the key,
// spec §4.6) and keeps those within maxDistance. A key shorter than q has no
// defined distance and is never kept.
func (t *Tree[V]) fuzzyPrefixCandidates(q []rune, maxDistance int) []matchCandidate[V] {
	var all []matchCandidate[V]
	t.inorderAll(t.root, nil, 0, &all)

	out := all[:0]
	for _, c := range all {
		d := hammingPrefixDistance(q, c.key)
		if d <= maxDistance {
			c.dist = d
			out = append(out, c)
		}
	}
	return out
}

// hammingPrefixDistance counts mismatching rune positions between q and the
// first len(q) runes of key; a key shorter than q cannot satisfy any prefix
// of q and is maximally distant.
func hammingPrefixDistance(q []rune, key string) int {
	k := []rune(key)
	if len(k) < len(q) {
		return len(q) + 1
	}
	dist := 0
	for i, r := range q {
		if k[i] != r {
			dist++
		}
	}
	return dist
}

// collectCompletions records n itself (if a key-end) under the already
// matched prefix, then continues only through n.mid: n.left/n.right sit at
// the same character position as n and lead to genuinely different
// strings, not completions of the one already committed to.
func (t *Tree[V]) collectCompletions(n *node[V], prefix []rune, dist int, out *[]matchCandidate[V]) {
	if n == nil {
		return
	}
	label := t.pool.Get(n.label)
	full := make([]rune, 0, len(prefix)+len(label))
	full = append(full, prefix...)
	full = append(full, label...)

	if n.isKeyEnd {
		*out = append(*out, matchCandidate[V]{key: string(full), dist: dist, node: n})
	}
	t.inorderAll(n.mid, full, dist, out)
}

// inorderAll is the standard lexicographic ternary-search-tree traversal
// (left, self-plus-mid, right), used both for full-subtree enumeration and
// as the basis of the fuzzy candidate scan.
func (t *Tree[V]) inorderAll(n *node[V], prefix []rune, dist int, out *[]matchCandidate[V]) {
	if n == nil {
		return
	}
	t.inorderAll(n.left, prefix, dist, out)
	t.collectCompletions(n, prefix, dist, out)
	t.inorderAll(n.right, prefix, dist, out)
}

// sortCandidates orders by ascending distance, then marked-before-unmarked,
// then lexicographically by key — so FuzzyByPrefix's "marked keys
// surface first within their distance group" falls out of the same sort
// used for plain prefix iteration (where every candidate is unmarked or tied
// on distance 0 and the marked rule is a no-op).
func sortCandidates[V any](c []matchCandidate[V]) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].dist != c[j].dist {
			return c[i].dist < c[j].dist
		}
		if c[i].node.marked != c[j].node.marked {
			return c[i].node.marked
		}
		return c[i].key < c[j].key
	})
}

// Advance moves the cursor to the next entry, reporting whether one exists.
func (it *Iterator[V]) Advance() bool {
	if it.idx+1 >= len(it.entries) {
		it.idx = len(it.entries)
		return false
	}
	it.idx++
	return true
}

// Current returns the entry at the cursor, or a *Error if the tree changed
// since this iterator was built or Reset, or if called outside [0,len).
func (it *Iterator[V]) Current() (Entry[V], error) {
	if it.tree.keysVersion != it.keysVersionAtStart {
		return Entry[V]{}, newError(ConcurrentModification, "keys changed since this iterator was created")
	}
	if !it.keysOnly && it.tree.valuesVersion != it.valuesVersionAtStart {
		return Entry[V]{}, newError(ConcurrentModification, "values changed since this iterator was created")
	}
	if it.idx < 0 || it.idx >= len(it.entries) {
		return Entry[V]{}, newError(StateError, "Current called before the first Advance or after exhaustion")
	}
	return it.entries[it.idx], nil
}

// Reset rewinds the cursor and re-snapshots the tree's version counters,
// so an iterator can be reused across an otherwise-disqualifying mutation.
func (it *Iterator[V]) Reset() {
	it.idx = -1
	it.keysVersionAtStart = it.tree.keysVersion
	it.valuesVersionAtStart = it.tree.valuesVersion
}

// Len reports the total number of entries this iterator will yield.
func (it *Iterator[V]) Len() int { return len(it.entries) }
