package keymap

import (
	"testing"

	"github.com/dlclark/regexp2"
	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	assert.Equal(t, "", Identity.Apply(""))
	assert.Equal(t, "Hello World", Identity.Apply("Hello World"))
}

func TestLowercaseFold(t *testing.T) {
	assert.Equal(t, "hello world", Lowercase.Apply("Hello World"))
	assert.Equal(t, "HELLO WORLD", Uppercase.Apply("hello world"))
	assert.Equal(t, "straße", Lowercase.Apply("Straße"))
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "hello world", CollapseWhitespace.Apply("  hello   world  "))
	assert.Equal(t, "", CollapseWhitespace.Apply(""))
	assert.Equal(t, "", CollapseWhitespace.Apply("   "))
	assert.Equal(t, "a", CollapseWhitespace.Apply("a"))
}

func TestCollapseWhitespaceIdempotent(t *testing.T) {
	for _, s := range []string{"  a  b ", "", "no-change", "\t\nfoo\t bar\n"} {
		once := CollapseWhitespace.Apply(s)
		twice := CollapseWhitespace.Apply(once)
		assert.Equal(t, once, twice)
	}
}

func TestCollapseWhitespaceMatchesPattern(t *testing.T) {
	// Second, independent check of the same invariant the hand-rolled
	// collapse loop enforces: no internal run of two spaces, no leading
	// or trailing space.
	re := regexp2.MustCompile(`^(\S( ?\S)*)?$`, regexp2.None)
	for _, s := range []string{"  hello   world  ", "a b c", "", "   ", "x"} {
		out := CollapseWhitespace.Apply(s)
		ok, err := re.MatchString(out)
		assert.NoError(t, err)
		assert.True(t, ok, "collapsed %q -> %q violates pattern", s, out)
	}
}

func TestNonLetterToSpace(t *testing.T) {
	assert.Equal(t, "hello world ", NonLetterToSpace.Apply("hello, world!"))
	assert.Equal(t, "", NonLetterToSpace.Apply(""))
}

func TestNonLetterToSpaceIdempotent(t *testing.T) {
	for _, s := range []string{"hello, world!!", "a---b___c", "", "...", "abc"} {
		once := NonLetterToSpace.Apply(s)
		twice := NonLetterToSpace.Apply(once)
		assert.Equal(t, once, twice)
	}
}

func TestJoinSingleLetters(t *testing.T) {
	assert.Equal(t, "a1 bb", JoinSingleLetters.Apply("a 1 bb"))
	assert.Equal(t, "abc", JoinSingleLetters.Apply("a b c"))
	assert.Equal(t, "", JoinSingleLetters.Apply(""))
	assert.Equal(t, "hello world", JoinSingleLetters.Apply("  hello   world  "))
}

func TestJoinSingleLettersIdempotent(t *testing.T) {
	for _, s := range []string{"a b c", "hello world", "", "a 1 2 bb c"} {
		once := JoinSingleLetters.Apply(s)
		twice := JoinSingleLetters.Apply(once)
		assert.Equal(t, once, twice)
	}
}

func TestLowerCollapse(t *testing.T) {
	assert.Equal(t, "hello world", LowerCollapse.Apply("  Hello   WORLD  "))
}

func TestByName(t *testing.T) {
	for _, m := range []Mapping{Identity, Lowercase, Uppercase, CollapseWhitespace, NonLetterToSpace, JoinSingleLetters, LowerCollapse} {
		got, ok := ByName(m.Name())
		assert.True(t, ok)
		assert.Equal(t, m.Name(), got.Name())
	}
	_, ok := ByName("not-a-real-mapping")
	assert.False(t, ok)
}
