// Package config loads a tree's construction Options from YAML, grounded
// on the teacher pack's yaml.v3 idiom (awsqed-config-formatter/formatter
// reads a document into a yaml.Node tree; here a flat settings document is
// unmarshalled directly into a typed struct, the more common yaml.v3 shape
// for application configuration rather than document transformation).
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/coreseekdev/ternarytreap/pkg/keymap"
	"github.com/coreseekdev/ternarytreap/pkg/treap"
)

// ValueShape selects which ValueCollection a tree uses.
type ValueShape string

const (
	ShapeSet  ValueShape = "set"
	ShapeList ValueShape = "list"
)

// Settings is the on-disk shape of a tree's configuration.
type Settings struct {
	// KeyMapping names one of keymap.ByName's registered mappings;
	// "identity" if empty.
	KeyMapping string `yaml:"key_mapping"`
	// ValueShape selects set or list semantics; "set" if empty.
	ValueShape ValueShape `yaml:"value_shape"`
	// Seed fixes the treap's PRNG; 0 seeds from a fresh random source.
	Seed int64 `yaml:"seed"`
	// VersionCeiling bounds the keys/values version counters before they
	// wrap; 0 uses the tree's built-in default.
	VersionCeiling uint64 `yaml:"version_ceiling"`
}

// Parse decodes a YAML document into Settings.
func Parse(data []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("config: parse settings: %w", err)
	}
	return s, nil
}

// StringSetOptions builds treap.Options[string] from s, for trees whose
// value type is string (e.g. a tag set). Non-string-valued trees build
// their own treap.Options from Settings' fields directly.
func (s Settings) StringSetOptions() (treap.Options[string], error) {
	mapping, err := s.resolveMapping()
	if err != nil {
		return treap.Options[string]{}, err
	}
	factory, err := stringCollectionFactory(s.ValueShape)
	if err != nil {
		return treap.Options[string]{}, err
	}
	return treap.Options[string]{
		Mapping:        mapping,
		NewCollection:  factory,
		Seed:           s.Seed,
		VersionCeiling: s.VersionCeiling,
	}, nil
}

func (s Settings) resolveMapping() (keymap.Mapping, error) {
	name := s.KeyMapping
	if name == "" {
		return keymap.Identity, nil
	}
	m, ok := keymap.ByName(name)
	if !ok {
		return nil, fmt.Errorf("config: unknown key_mapping %q", name)
	}
	return m, nil
}

func stringCollectionFactory(shape ValueShape) (treap.CollectionFactory[string], error) {
	switch shape {
	case "", ShapeSet:
		return treap.NewSetCollection[string](), nil
	case ShapeList:
		return treap.NewListCollection[string](func(a, b string) bool { return a == b }), nil
	default:
		return nil, fmt.Errorf("config: unknown value_shape %q", shape)
	}
}
