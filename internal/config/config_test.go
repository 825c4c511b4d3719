package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	s, err := Parse([]byte(``))
	require.NoError(t, err)
	opts, err := s.StringSetOptions()
	require.NoError(t, err)
	assert.NotNil(t, opts.NewCollection)
	assert.Equal(t, int64(0), opts.Seed)
}

func TestParseExplicitSettings(t *testing.T) {
	doc := []byte(`
key_mapping: lowercase
value_shape: list
seed: 42
version_ceiling: 1000
`)
	s, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "lowercase", s.KeyMapping)
	assert.Equal(t, ShapeList, s.ValueShape)
	assert.Equal(t, int64(42), s.Seed)

	opts, err := s.StringSetOptions()
	require.NoError(t, err)
	assert.Equal(t, "lowercase", opts.Mapping.Name())
}

func TestParseUnknownMappingErrors(t *testing.T) {
	s, err := Parse([]byte(`key_mapping: not-a-real-mapping`))
	require.NoError(t, err)
	_, err = s.StringSetOptions()
	require.Error(t, err)
}

func TestParseUnknownShapeErrors(t *testing.T) {
	s, err := Parse([]byte(`value_shape: tree`))
	require.NoError(t, err)
	_, err = s.StringSetOptions()
	require.Error(t, err)
}
