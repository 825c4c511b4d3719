// Package persist implements structural snapshot export/import for a
// string multimap, grounded on the teacher's transport layer: TreeID
// mirrors ProtocolMessage.SessionID (pkg/transport/protocol.go, a
// google/uuid-stamped identifier carried alongside a payload), and Diff
// mirrors PatchManager (pkg/transport/patch_manager.go, wrapping
// sergi/go-diff/diffmatchpatch) repurposed from text-revision patching to
// comparing two key sets.
package persist

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/coreseekdev/ternarytreap/pkg/multimap"
)

// Snapshot is the on-disk structural export of a SetMultimap[string]: every
// key and its values, the set of marked keys, plus enough identity to
// detect a mismatched import.
type Snapshot struct {
	TreeID     string              `json:"tree_id"`
	KeyMapping string              `json:"key_mapping"`
	Entries    map[string][]string `json:"entries"`
	MarkedKeys []string            `json:"marked_keys"`
}

// Export snapshots m, stamping a fresh TreeID.
func Export(m *multimap.SetMultimap[string]) (Snapshot, error) {
	entries, err := m.Entries()
	if err != nil {
		return Snapshot{}, fmt.Errorf("persist: export: %w", err)
	}
	out := make(map[string][]string, len(entries))
	var marked []string
	for _, e := range entries {
		out[e.Key] = e.Values
		if e.Marked {
			marked = append(marked, e.Key)
		}
	}
	sort.Strings(marked)
	return Snapshot{
		TreeID:     uuid.NewString(),
		KeyMapping: m.ActiveKeyMapping().Name(),
		Entries:    out,
		MarkedKeys: marked,
	}, nil
}

// Marshal renders a Snapshot as JSON.
func Marshal(s Snapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("persist: marshal snapshot: %w", err)
	}
	return b, nil
}

// Unmarshal parses a Snapshot previously produced by Marshal.
func Unmarshal(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("persist: unmarshal snapshot: %w", err)
	}
	return s, nil
}

// Import loads s into m, rejecting a snapshot taken under a different
// KeyMapping: replaying its keys under m's active mapping would silently
// change which strings collide, which is never what a restore means.
func Import(m *multimap.SetMultimap[string], s Snapshot) error {
	if active := m.ActiveKeyMapping().Name(); s.KeyMapping != active {
		return fmt.Errorf("persist: import: snapshot was taken under key_mapping %q, tree is %q", s.KeyMapping, active)
	}
	keys := make([]string, 0, len(s.Entries))
	for k := range s.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := m.AddValues(k, s.Entries[k]); err != nil {
			return fmt.Errorf("persist: import: key %q: %w", k, err)
		}
	}
	for _, k := range s.MarkedKeys {
		if _, err := m.MarkKey(k); err != nil {
			return fmt.Errorf("persist: import: mark key %q: %w", k, err)
		}
	}
	return nil
}

// Diff reports a human-readable description of the key sets added and
// removed between two snapshots, computed with the same diff-match-patch
// engine the teacher uses for text revisions, applied here to newline-
// joined, sorted key lists instead of document text.
func Diff(before, after Snapshot) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(joinedSortedKeys(before), joinedSortedKeys(after), false)
	return dmp.DiffPrettyText(diffs)
}

func joinedSortedKeys(s Snapshot) string {
	keys := make([]string, 0, len(s.Entries))
	for k := range s.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += "\n"
		}
		out += k
	}
	return out
}
