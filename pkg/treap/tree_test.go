package treap

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreseekdev/ternarytreap/pkg/runepool"
)

func newTestTree(t *testing.T) *Tree[int] {
	t.Helper()
	return New[int](Options[int]{
		NewCollection: NewListCollection[int](func(a, b int) bool { return a == b }),
		Seed:          1,
	})
}

// validateTreeInvariants walks every node reachable from tr.root and checks
// the BST order on first-rune comparisons, the heap order between a node
// and its left/right children, descendant-count bookkeeping, parent
// back-links, and that every interned label's pool refcount matches the
// number of live nodes referencing it.
func validateTreeInvariants[V any](t *testing.T, tr *Tree[V]) {
	t.Helper()
	refs := map[runepool.Handle]int{}

	var walk func(n, parent *node[V])
	walk = func(n, parent *node[V]) {
		if n == nil {
			return
		}
		require.Same(t, parent, n.parent)
		refs[n.label]++

		label := tr.pool.Get(n.label)
		require.NotEmpty(t, label)

		if n.left != nil {
			leftLabel := tr.pool.Get(n.left.label)
			require.Less(t, leftLabel[0], label[0])
			require.LessOrEqual(t, n.left.priority, n.priority)
		}
		if n.right != nil {
			rightLabel := tr.pool.Get(n.right.label)
			require.Greater(t, rightLabel[0], label[0])
			require.LessOrEqual(t, n.right.priority, n.priority)
		}

		walk(n.left, n)
		walk(n.mid, n)
		walk(n.right, n)

		wantDesc := keyEndSubtreeCount(n.left) + keyEndSubtreeCount(n.mid) + keyEndSubtreeCount(n.right)
		require.Equal(t, wantDesc, n.descCount)
	}
	walk(tr.root, nil)

	for h, count := range refs {
		require.Equal(t, count, tr.pool.RefCount(h))
	}
}

func TestRandomizedInvariantsHoldAfterEveryMutation(t *testing.T) {
	tr := newTestTree(t)
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("abcde")
	live := map[string]bool{}

	randomKey := func() string {
		n := 1 + rng.Intn(4)
		b := make([]rune, n)
		for i := range b {
			b[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return string(b)
	}

	for i := 0; i < 500; i++ {
		k := randomKey()
		if rng.Intn(2) == 0 {
			_, err := tr.AddKey(k)
			require.NoError(t, err)
			live[k] = true
		} else {
			_, err := tr.RemoveKey(k)
			require.NoError(t, err)
			delete(live, k)
		}
		validateTreeInvariants(t, tr)
	}

	assert.Equal(t, len(live), tr.Length())
	if len(live) == 0 {
		assert.Equal(t, 0, tr.poolLen())
	}
}

func TestAddKeyAndGet(t *testing.T) {
	tr := newTestTree(t)
	created, err := tr.AddKey("cat")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, tr.Length())

	created, err = tr.AddKey("cat")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, tr.Length())

	vs, ok, err := tr.Get("cat")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, vs)
}

func TestAddValueCreatesKeyLazily(t *testing.T) {
	tr := newTestTree(t)
	changed, err := tr.AddValue("cat", 1)
	require.NoError(t, err)
	assert.True(t, changed)

	vs, ok, err := tr.Get("cat")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1}, vs)
}

func TestSetValuesReplacesWholesale(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.AddValue("cat", 1)
	require.NoError(t, err)

	require.NoError(t, tr.SetValues("cat", []int{2, 3}))
	vs, _, err := tr.Get("cat")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, vs)
}

func TestOverlappingKeysShareStructure(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"cat", "car", "cart", "dog", "do"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, tr.Length())

	for _, k := range []string{"cat", "car", "cart", "dog", "do"} {
		_, ok, err := tr.Get(k)
		require.NoError(t, err)
		assert.Truef(t, ok, "expected %q present", k)
	}

	_, ok, err := tr.Get("ca")
	require.NoError(t, err)
	assert.False(t, ok, "ca was never inserted as its own key")
}

func TestRemoveKeyDropsLengthAndLookup(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"cat", "car", "cart"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}

	removed, err := tr.RemoveKey("car")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 2, tr.Length())

	_, ok, err := tr.Get("car")
	require.NoError(t, err)
	assert.False(t, ok)

	// cat and cart, which shared structure with car, survive untouched.
	for _, k := range []string{"cat", "cart"} {
		_, ok, err := tr.Get(k)
		require.NoError(t, err)
		assert.Truef(t, ok, "expected %q present after removing car", k)
	}
}

func TestRemoveKeyMissingIsNoop(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.AddKey("cat")
	require.NoError(t, err)

	removed, err := tr.RemoveKey("dog")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, tr.Length())
}

func TestRemovePairNeverDeletesKeyEnd(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.AddValue("cat", 1)
	require.NoError(t, err)

	removed, err := tr.RemoveValue("cat", 1)
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, err := tr.Get("cat")
	require.NoError(t, err)
	assert.True(t, ok, "key-end must survive removal of its last value")
}

func TestClearEmptiesPool(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"ape", "cat", "dog"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}
	tr.Clear()
	assert.Equal(t, 0, tr.Length())
	assert.Equal(t, 0, tr.poolLen())
}

func TestEmptyKeyAfterMappingIsError(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.AddKey("")
	require.Error(t, err)
	var treapErr *Error
	require.ErrorAs(t, err, &treapErr)
	assert.Equal(t, InvalidArgument, treapErr.Kind)
}

func TestKeysVersionBumpsOnStructuralChangeOnly(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.AddKey("cat")
	require.NoError(t, err)
	v := tr.KeysVersion()

	_, err = tr.AddValue("cat", 1)
	require.NoError(t, err)
	assert.Equal(t, v, tr.KeysVersion(), "adding a value to an existing key must not bump keysVersion")

	_, err = tr.AddKey("dog")
	require.NoError(t, err)
	assert.NotEqual(t, v, tr.KeysVersion())
}

func TestMarkKeyUnknownKeyErrors(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.MarkKey("ghost")
	require.Error(t, err)
}

func TestMarkKeyPreservesLookups(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"cat", "car", "cart", "dog", "do", "zebra"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}

	ok, err := tr.MarkKey("cart")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, k := range []string{"cat", "car", "cart", "dog", "do", "zebra"} {
		_, found, err := tr.Get(k)
		require.NoError(t, err)
		assert.Truef(t, found, "expected %q present after marking cart", k)
	}
}

func TestExactPrefixIteratorOrdering(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"cat", "car", "cart", "care", "dog"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}

	it, err := tr.NewIterator("car", IteratorOptions{})
	require.NoError(t, err)

	var got []string
	for it.Advance() {
		e, err := it.Current()
		require.NoError(t, err)
		assert.Equal(t, 0, e.Distance)
		got = append(got, e.Key)
	}
	assert.Equal(t, []string{"car", "care", "cart"}, got)
}

func TestExactPrefixIteratorEmptyPrefixYieldsEverything(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"ape", "cat", "zebra"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}

	it, err := tr.NewIterator("", IteratorOptions{})
	require.NoError(t, err)

	var got []string
	for it.Advance() {
		e, err := it.Current()
		require.NoError(t, err)
		got = append(got, e.Key)
	}
	assert.Equal(t, []string{"ape", "cat", "zebra"}, got)
}

func TestIteratorDetectsConcurrentModification(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.AddKey("cat")
	require.NoError(t, err)

	it, err := tr.NewIterator("ca", IteratorOptions{})
	require.NoError(t, err)
	require.True(t, it.Advance())

	_, err = tr.AddKey("car")
	require.NoError(t, err)

	_, err = it.Current()
	require.Error(t, err)
	var treapErr *Error
	require.ErrorAs(t, err, &treapErr)
	assert.Equal(t, ConcurrentModification, treapErr.Kind)
}

func TestFuzzyPrefixSearchWithinDistance(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"cat", "bat", "hat", "cap", "dog"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}

	it, err := tr.NewIterator("cat", IteratorOptions{MaxDistance: 1})
	require.NoError(t, err)

	var got []string
	for it.Advance() {
		e, err := it.Current()
		require.NoError(t, err)
		got = append(got, e.Key)
	}
	assert.ElementsMatch(t, []string{"cat", "bat", "hat", "cap"}, got)
	assert.NotContains(t, got, "dog")
}

func TestFuzzyByPrefixRespectsLimit(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"cat", "bat", "hat", "cap"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}

	suggestions, err := tr.FuzzyByPrefix("cat", 1, 2)
	require.NoError(t, err)
	assert.Len(t, suggestions, 2)
	assert.Equal(t, "cat", suggestions[0].Key)
	assert.Equal(t, 0, suggestions[0].Distance)
}

func TestFuzzyByPrefixMarkedFloatsToFront(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"cat", "bat", "hat"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}
	_, err := tr.MarkKey("hat")
	require.NoError(t, err)

	suggestions, err := tr.FuzzyByPrefix("cat", 1, 0)
	require.NoError(t, err)
	require.Len(t, suggestions, 3)
	// within distance-1 group (bat, hat), the marked one sorts first.
	var distance1 []string
	for _, s := range suggestions {
		if s.Distance == 1 {
			distance1 = append(distance1, s.Key)
		}
	}
	require.Len(t, distance1, 2)
	assert.Equal(t, "hat", distance1[0])
}

func TestFuzzyByPrefixClampsMaxDistanceToPrefixLength(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"cow", "co"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}

	// "co" is shorter than the query "cow" and so can never satisfy any
	// prefix of it; a generous max_distance must not let it slip in under
	// the undefined-distance sentinel.
	got, err := tr.FuzzyByPrefix("cow", 5, 0)
	require.NoError(t, err)
	keys := make([]string, len(got))
	for i, s := range got {
		keys[i] = s.Key
	}
	assert.Contains(t, keys, "cow")
	assert.NotContains(t, keys, "co")
}

func TestSuggestionByPrefixWalksMidChainToFirstKeyEnd(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.AddKey("catalog")
	require.NoError(t, err)

	got, err := tr.SuggestionByPrefix("cat")
	require.NoError(t, err)
	assert.Equal(t, "catalog", got)
}

func TestSuggestionByPrefixReturnsQueryWhenNoCompletionExists(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.AddKey("dog")
	require.NoError(t, err)

	got, err := tr.SuggestionByPrefix("cat")
	require.NoError(t, err)
	assert.Equal(t, "cat", got)
}

func TestSuggestionByPrefixPrefersMarkedKeyAfterPromotion(t *testing.T) {
	tr := newTestTree(t)
	for _, k := range []string{"catalog", "catapult"} {
		_, err := tr.AddKey(k)
		require.NoError(t, err)
	}
	_, err := tr.MarkKey("catapult")
	require.NoError(t, err)

	got, err := tr.SuggestionByPrefix("cat")
	require.NoError(t, err)
	assert.Equal(t, "catapult", got)
}

func TestLargeOverlappingKeySet(t *testing.T) {
	tr := newTestTree(t)
	words := []string{
		"ant", "anteater", "antler", "ant-hill", "bee", "beetle", "bear",
		"cat", "catfish", "caterpillar", "dog", "doge", "dodo", "eagle",
		"elk", "elephant", "fox", "foxglove", "goat", "goose",
	}
	for _, w := range words {
		_, err := tr.AddValue(w, len(w))
		require.NoError(t, err)
	}
	assert.Equal(t, len(words), tr.Length())

	for _, w := range words {
		vs, ok, err := tr.Get(w)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []int{len(w)}, vs)
	}

	removed, err := tr.RemoveKey("ant")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, len(words)-1, tr.Length())

	for _, w := range words {
		if w == "ant" {
			continue
		}
		_, ok, err := tr.Get(w)
		require.NoError(t, err)
		assert.Truef(t, ok, "expected %q present after removing ant", w)
	}
}

// TestOverlappingDecimalRangeCrossCheckedAgainstReferenceMap inserts 1500
// same-length decimal-string keys and checks prefix-iterator counts, for
// every prefix of a middle key, against a sort+HasPrefix reference scan.
func TestOverlappingDecimalRangeCrossCheckedAgainstReferenceMap(t *testing.T) {
	tr := newTestTree(t)
	const startVal = 1000
	const count = 1500
	keys := make([]string, 0, count)
	for v := startVal; v < startVal+count; v++ {
		k := fmt.Sprintf("%d", v)
		_, err := tr.AddKey(k)
		require.NoError(t, err)
		keys = append(keys, k)
	}
	sort.Strings(keys)

	middle := fmt.Sprintf("%d", startVal+750)
	for i := 1; i <= len(middle); i++ {
		prefix := middle[:i]
		it, err := tr.NewIterator(prefix, IteratorOptions{KeysOnly: true})
		require.NoError(t, err)
		got := 0
		for it.Advance() {
			_, err := it.Current()
			require.NoError(t, err)
			got++
		}

		want := 0
		for _, k := range keys {
			if strings.HasPrefix(k, prefix) {
				want++
			}
		}
		assert.Equal(t, want, got, "prefix %q", prefix)
	}
}
