// Package multimap is the public facade over pkg/treap: an ordered
// multimap from string keys to a per-tree-fixed value shape (set or list),
// exposing the external interface as a small set of straightforward
// methods instead of the tree's lower-level node/descent vocabulary.
package multimap

import (
	"github.com/coreseekdev/ternarytreap/pkg/keymap"
	"github.com/coreseekdev/ternarytreap/pkg/treap"
)

// Entry is one (key, values) pair, as surfaced by Entries/EntriesByPrefix.
type Entry[V any] struct {
	Key    string
	Values []V
	Marked bool
}

// Suggestion is one fuzzy-match result from FuzzyByPrefix.
type Suggestion[V any] struct {
	Key      string
	Values   []V
	Distance int
	Marked   bool
}

// SetMultimap is an ordered multimap whose value collections are sets:
// adding an already-present value is a no-op.
type SetMultimap[V comparable] struct {
	tree *treap.Tree[V]
}

// NewSetMultimap creates an empty set-shaped multimap under mapping
// (keymap.Identity if nil). seed fixes the treap's PRNG for deterministic
// tests; zero seeds from a fresh random source.
func NewSetMultimap[V comparable](mapping keymap.Mapping, seed int64) *SetMultimap[V] {
	return &SetMultimap[V]{tree: treap.New[V](treap.Options[V]{
		Mapping:       mapping,
		NewCollection: treap.NewSetCollection[V](),
		Seed:          seed,
	})}
}

// ActiveKeyMapping returns the mapping applied to every key before lookup,
// insertion, or removal.
func (m *SetMultimap[V]) ActiveKeyMapping() keymap.Mapping { return m.tree.Mapping() }

func (m *SetMultimap[V]) Length() int  { return m.tree.Length() }
func (m *SetMultimap[V]) IsEmpty() bool { return m.tree.IsEmpty() }
func (m *SetMultimap[V]) Clear()        { m.tree.Clear() }

// Get returns key's values and whether key is present.
func (m *SetMultimap[V]) Get(key string) ([]V, bool, error) { return m.tree.Get(key) }

// Set replaces key's values wholesale, creating key if absent.
func (m *SetMultimap[V]) Set(key string, values []V) error { return m.tree.SetValues(key, values) }

// AddKey ensures key is present with no values, reporting whether it was
// newly created.
func (m *SetMultimap[V]) AddKey(key string) (bool, error) { return m.tree.AddKey(key) }

// Add adds a single value to key, creating key if absent. Reports whether
// the set's membership changed.
func (m *SetMultimap[V]) Add(key string, value V) (bool, error) {
	return m.tree.AddValue(key, value)
}

// AddValues adds every element of values to key, creating key if absent.
func (m *SetMultimap[V]) AddValues(key string, values []V) (bool, error) {
	return m.tree.AddValues(key, values)
}

// AddEntries adds every (key, values) pair in entries in a single call.
func (m *SetMultimap[V]) AddEntries(entries map[string][]V) error {
	for k, vs := range entries {
		if _, err := m.tree.AddValues(k, vs); err != nil {
			return err
		}
	}
	return nil
}

func (m *SetMultimap[V]) ContainsKey(key string) (bool, error) { return m.tree.ContainsKey(key) }

func (m *SetMultimap[V]) ContainsValue(key string, value V) (bool, error) {
	return m.tree.ContainsValue(key, value)
}

// RemovePair removes one value from key's set without deleting key.
func (m *SetMultimap[V]) RemovePair(key string, value V) (bool, error) {
	return m.tree.RemoveValue(key, value)
}

// RemoveKey removes key entirely.
func (m *SetMultimap[V]) RemoveKey(key string) (bool, error) { return m.tree.RemoveKey(key) }

// RemoveValues empties key's set, returning what was removed. key survives.
func (m *SetMultimap[V]) RemoveValues(key string) ([]V, error) { return m.tree.RemoveValues(key) }

// MarkKey flags key as marked, biasing future FuzzyByPrefix ordering and
// SuggestionByPrefix's completion walk toward key.
func (m *SetMultimap[V]) MarkKey(key string) (bool, error) { return m.tree.MarkKey(key) }

// Keys returns every stored key, in order.
func (m *SetMultimap[V]) Keys() ([]string, error) { return keys(m.tree, "") }

// Values returns the concatenation of every key's values, key order.
func (m *SetMultimap[V]) Values() ([]V, error) { return values(m.tree, "") }

// Entries returns every (key, values) pair, in key order.
func (m *SetMultimap[V]) Entries() ([]Entry[V], error) { return entries(m.tree, "") }

// KeysByPrefix returns every key beginning with prefix.
func (m *SetMultimap[V]) KeysByPrefix(prefix string) ([]string, error) { return keys(m.tree, prefix) }

// ValuesByPrefix returns the concatenation of values for every key
// beginning with prefix.
func (m *SetMultimap[V]) ValuesByPrefix(prefix string) ([]V, error) { return values(m.tree, prefix) }

// EntriesByPrefix returns every (key, values) pair for keys beginning with
// prefix.
func (m *SetMultimap[V]) EntriesByPrefix(prefix string) ([]Entry[V], error) {
	return entries(m.tree, prefix)
}

// FuzzyByPrefix returns up to limit keys within maxDistance substitutions of
// prefix, ordered by ascending distance with marked keys surfaced first
// within their distance group. limit <= 0 means unbounded.
func (m *SetMultimap[V]) FuzzyByPrefix(prefix string, maxDistance, limit int) ([]Suggestion[V], error) {
	return fuzzySuggestions(m.tree, prefix, maxDistance, limit)
}

// SuggestionByPrefix returns the single completion reached by walking
// mid-links from prefix to the first key-end, or prefix unchanged if none is
// reached.
func (m *SetMultimap[V]) SuggestionByPrefix(prefix string) (string, error) {
	return m.tree.SuggestionByPrefix(prefix)
}

// ListMultimap is an ordered multimap whose value collections are lists:
// insertion order is preserved and duplicates are retained.
type ListMultimap[V any] struct {
	tree *treap.Tree[V]
}

// NewListMultimap creates an empty list-shaped multimap under mapping
// (keymap.Identity if nil), using equal to compare values for Remove and
// Contains since V need not be comparable.
func NewListMultimap[V any](mapping keymap.Mapping, seed int64, equal func(a, b V) bool) *ListMultimap[V] {
	return &ListMultimap[V]{tree: treap.New[V](treap.Options[V]{
		Mapping:       mapping,
		NewCollection: treap.NewListCollection[V](equal),
		Seed:          seed,
	})}
}

func (m *ListMultimap[V]) ActiveKeyMapping() keymap.Mapping { return m.tree.Mapping() }
func (m *ListMultimap[V]) Length() int                      { return m.tree.Length() }
func (m *ListMultimap[V]) IsEmpty() bool                    { return m.tree.IsEmpty() }
func (m *ListMultimap[V]) Clear()                           { m.tree.Clear() }

func (m *ListMultimap[V]) Get(key string) ([]V, bool, error) { return m.tree.Get(key) }
func (m *ListMultimap[V]) Set(key string, values []V) error  { return m.tree.SetValues(key, values) }
func (m *ListMultimap[V]) AddKey(key string) (bool, error)   { return m.tree.AddKey(key) }

func (m *ListMultimap[V]) Add(key string, value V) (bool, error) {
	return m.tree.AddValue(key, value)
}

func (m *ListMultimap[V]) AddValues(key string, values []V) (bool, error) {
	return m.tree.AddValues(key, values)
}

func (m *ListMultimap[V]) AddEntries(entries map[string][]V) error {
	for k, vs := range entries {
		if _, err := m.tree.AddValues(k, vs); err != nil {
			return err
		}
	}
	return nil
}

func (m *ListMultimap[V]) ContainsKey(key string) (bool, error) { return m.tree.ContainsKey(key) }

func (m *ListMultimap[V]) ContainsValue(key string, value V) (bool, error) {
	return m.tree.ContainsValue(key, value)
}

func (m *ListMultimap[V]) RemovePair(key string, value V) (bool, error) {
	return m.tree.RemoveValue(key, value)
}

func (m *ListMultimap[V]) RemoveKey(key string) (bool, error)    { return m.tree.RemoveKey(key) }
func (m *ListMultimap[V]) RemoveValues(key string) ([]V, error) { return m.tree.RemoveValues(key) }
func (m *ListMultimap[V]) MarkKey(key string) (bool, error)     { return m.tree.MarkKey(key) }

func (m *ListMultimap[V]) Keys() ([]string, error)    { return keys(m.tree, "") }
func (m *ListMultimap[V]) Values() ([]V, error)       { return values(m.tree, "") }
func (m *ListMultimap[V]) Entries() ([]Entry[V], error) { return entries(m.tree, "") }

func (m *ListMultimap[V]) KeysByPrefix(prefix string) ([]string, error) {
	return keys(m.tree, prefix)
}

func (m *ListMultimap[V]) ValuesByPrefix(prefix string) ([]V, error) {
	return values(m.tree, prefix)
}

func (m *ListMultimap[V]) EntriesByPrefix(prefix string) ([]Entry[V], error) {
	return entries(m.tree, prefix)
}

func (m *ListMultimap[V]) FuzzyByPrefix(prefix string, maxDistance, limit int) ([]Suggestion[V], error) {
	return fuzzySuggestions(m.tree, prefix, maxDistance, limit)
}

func (m *ListMultimap[V]) SuggestionByPrefix(prefix string) (string, error) {
	return m.tree.SuggestionByPrefix(prefix)
}

func keys[V any](tree *treap.Tree[V], prefix string) ([]string, error) {
	it, err := tree.NewIterator(prefix, treap.IteratorOptions{KeysOnly: true})
	if err != nil {
		return nil, err
	}
	var out []string
	for it.Advance() {
		e, err := it.Current()
		if err != nil {
			return out, err
		}
		out = append(out, e.Key)
	}
	return out, nil
}

func values[V any](tree *treap.Tree[V], prefix string) ([]V, error) {
	it, err := tree.NewIterator(prefix, treap.IteratorOptions{})
	if err != nil {
		return nil, err
	}
	var out []V
	for it.Advance() {
		e, err := it.Current()
		if err != nil {
			return out, err
		}
		out = append(out, e.Values...)
	}
	return out, nil
}

func entries[V any](tree *treap.Tree[V], prefix string) ([]Entry[V], error) {
	it, err := tree.NewIterator(prefix, treap.IteratorOptions{})
	if err != nil {
		return nil, err
	}
	var out []Entry[V]
	for it.Advance() {
		e, err := it.Current()
		if err != nil {
			return out, err
		}
		out = append(out, Entry[V]{Key: e.Key, Values: e.Values, Marked: e.Marked})
	}
	return out, nil
}

func fuzzySuggestions[V any](tree *treap.Tree[V], prefix string, maxDistance, limit int) ([]Suggestion[V], error) {
	raw, err := tree.FuzzyByPrefix(prefix, maxDistance, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion[V], len(raw))
	for i, s := range raw {
		out[i] = Suggestion[V]{Key: s.Key, Values: s.Values, Distance: s.Distance, Marked: s.Marked}
	}
	return out, nil
}
