// Package keymap implements the canonical-key transforms applied to every
// string before it reaches the tree core.
//
// A Mapping is a pure function from a caller's string to a canonical
// string ("key"). It must be idempotent: Apply(Apply(s)) == Apply(s) for
// every s. The tree core never inspects a Mapping's internals — it only
// requires idempotence and that mapping an empty string yields an empty
// string (rejected by the facade as an invalid key).
package keymap

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/words"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mapping is an idempotent string canonicalization function.
type Mapping interface {
	// Name identifies the mapping, e.g. for config files and persisted
	// snapshots that must refuse to import under a different mapping.
	Name() string
	Apply(s string) string
}

// Func adapts a plain function into a Mapping.
type Func struct {
	name string
	fn   func(string) string
}

func (f Func) Name() string       { return f.name }
func (f Func) Apply(s string) string { return f.fn(s) }

// NewFunc builds a Mapping from a name and a function. Callers providing
// custom mappings are responsible for idempotence.
func NewFunc(name string, fn func(string) string) Func {
	return Func{name: name, fn: fn}
}

var (
	lowerCaser = cases.Lower(language.Und)
	upperCaser = cases.Upper(language.Und)
)

// Identity returns the input unchanged.
var Identity = NewFunc("identity", func(s string) string { return s })

// Lowercase performs Unicode-aware case folding to lower case.
var Lowercase = NewFunc("lowercase", func(s string) string { return lowerCaser.String(s) })

// Uppercase performs Unicode-aware case folding to upper case.
var Uppercase = NewFunc("uppercase", func(s string) string { return upperCaser.String(s) })

// CollapseWhitespace trims both ends and collapses any run of Unicode
// separators to a single U+0020.
var CollapseWhitespace = NewFunc("collapse-whitespace", collapseWhitespace)

// NonLetterToSpace replaces every maximal run of non-letter/non-number
// scalars with a single U+0020. Ends are not trimmed. Text is segmented on
// Unicode word boundaries (UAX #29); a combining mark that follows a kept
// letter or number is kept with it, so combining sequences are never split
// mid-cluster.
var NonLetterToSpace = NewFunc("non-letter-to-space", nonLetterToSpace)

// JoinSingleLetters splits on Unicode separators, concatenates adjacent
// one-scalar alphanumeric tokens, and rejoins the result with single
// U+0020 separators, trimming both ends.
var JoinSingleLetters = NewFunc("join-single-letters", joinSingleLetters)

// LowerCollapse applies CollapseWhitespace then Lowercase.
var LowerCollapse = NewFunc("lower-collapse", func(s string) string {
	return lowerCaser.String(collapseWhitespace(s))
})

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	started := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && started {
			b.WriteByte(' ')
		}
		inSpace = false
		started = true
		b.WriteRune(r)
	}
	return b.String()
}

func nonLetterToSpace(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, seg := range words.SegmentAllString(s) {
		if isAlnumSegment(seg) {
			b.WriteString(seg)
			lastWasSpace = false
			continue
		}
		for _, r := range seg {
			if unicode.IsLetter(r) || unicode.IsNumber(r) ||
				(unicode.IsMark(r) && b.Len() > 0 && !lastWasSpace) {
				b.WriteRune(r)
				lastWasSpace = false
				continue
			}
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
		}
	}
	return b.String()
}

func joinSingleLetters(s string) string {
	var tokens []string
	var cur strings.Builder
	for _, seg := range words.SegmentAllString(s) {
		if isSeparatorSegment(seg) {
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteString(seg)
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}

	var merged []string
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if isSingleAlnum(tok) {
			for i+1 < len(tokens) && isSingleAlnum(tokens[i+1]) {
				i++
				tok += tokens[i]
			}
		}
		merged = append(merged, tok)
	}
	return strings.Join(merged, " ")
}

func isAlnumSegment(seg string) bool {
	found := false
	for _, r := range seg {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			return false
		}
		found = true
	}
	return found
}

func isSeparatorSegment(seg string) bool {
	found := false
	for _, r := range seg {
		if !unicode.IsSpace(r) {
			return false
		}
		found = true
	}
	return found
}

func isSingleAlnum(tok string) bool {
	rs := []rune(tok)
	return len(rs) == 1 && (unicode.IsLetter(rs[0]) || unicode.IsNumber(rs[0]))
}

// ByName resolves one of the predefined mappings by its Name(), for use
// by internal/config when a tree's key mapping is selected from a file.
func ByName(name string) (Mapping, bool) {
	switch name {
	case Identity.Name():
		return Identity, true
	case Lowercase.Name():
		return Lowercase, true
	case Uppercase.Name():
		return Uppercase, true
	case CollapseWhitespace.Name():
		return CollapseWhitespace, true
	case NonLetterToSpace.Name():
		return NonLetterToSpace, true
	case JoinSingleLetters.Name():
		return JoinSingleLetters, true
	case LowerCollapse.Name():
		return LowerCollapse, true
	default:
		return nil, false
	}
}
