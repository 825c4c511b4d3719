package multimap

import "github.com/coreseekdev/ternarytreap/pkg/keymap"

// StringSet is a multimap specialized to hold keys with no attached values:
// a self-balancing ordered set of strings supporting exact, prefix, and
// fuzzy-prefix lookup. It is a thin adapter over SetMultimap[struct{}],
// since the tree core has no notion of a "valueless" key-end beyond the
// already-supported empty value collection.
type StringSet struct {
	inner *SetMultimap[struct{}]
}

// NewStringSet creates an empty string set under mapping (keymap.Identity
// if nil).
func NewStringSet(mapping keymap.Mapping, seed int64) *StringSet {
	return &StringSet{inner: NewSetMultimap[struct{}](mapping, seed)}
}

func (s *StringSet) ActiveKeyMapping() keymap.Mapping { return s.inner.ActiveKeyMapping() }
func (s *StringSet) Length() int                      { return s.inner.Length() }
func (s *StringSet) IsEmpty() bool                    { return s.inner.IsEmpty() }
func (s *StringSet) Clear()                           { s.inner.Clear() }

// Add inserts key, reporting whether it was newly present.
func (s *StringSet) Add(key string) (bool, error) { return s.inner.AddKey(key) }

// Contains reports whether key is present.
func (s *StringSet) Contains(key string) (bool, error) { return s.inner.ContainsKey(key) }

// Remove deletes key, reporting whether it was present.
func (s *StringSet) Remove(key string) (bool, error) { return s.inner.RemoveKey(key) }

// Keys returns every stored string, in order.
func (s *StringSet) Keys() ([]string, error) { return s.inner.Keys() }

// KeysByPrefix returns every stored string beginning with prefix.
func (s *StringSet) KeysByPrefix(prefix string) ([]string, error) { return s.inner.KeysByPrefix(prefix) }

// MarkKey flags key as marked, biasing future FuzzyByPrefix ordering and
// SuggestionByPrefix's completion walk toward key.
func (s *StringSet) MarkKey(key string) (bool, error) { return s.inner.MarkKey(key) }

// FuzzyByPrefix returns up to limit strings within maxDistance substitutions
// of prefix, ordered by ascending distance with marked strings surfaced
// first within their distance group.
func (s *StringSet) FuzzyByPrefix(prefix string, maxDistance, limit int) ([]Suggestion[struct{}], error) {
	return s.inner.FuzzyByPrefix(prefix, maxDistance, limit)
}

// SuggestionByPrefix returns the single completion reached by walking
// mid-links from prefix to the first key-end, or prefix unchanged if none is
// reached.
func (s *StringSet) SuggestionByPrefix(prefix string) (string, error) {
	return s.inner.SuggestionByPrefix(prefix)
}
