package runepool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateDedup(t *testing.T) {
	p := New()
	h1 := p.Allocate([]rune("cat"))
	h2 := p.Allocate([]rune("cat"))
	assert.Equal(t, h1, h2)
	assert.Equal(t, 2, p.RefCount(h1))
	assert.Equal(t, 1, p.Len())
}

func TestAllocateDistinct(t *testing.T) {
	p := New()
	h1 := p.Allocate([]rune("cat"))
	h2 := p.Allocate([]rune("dog"))
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, p.Len())
}

func TestGetReturnsContent(t *testing.T) {
	p := New()
	h := p.Allocate([]rune("zebra"))
	require.Equal(t, []rune("zebra"), p.Get(h))
}

func TestFreeRemovesOnLastRef(t *testing.T) {
	p := New()
	h1 := p.Allocate([]rune("cat"))
	h2 := p.Allocate([]rune("cat"))
	assert.Equal(t, h1, h2)

	p.Free(h1)
	assert.Equal(t, 1, p.RefCount(h1))
	assert.Equal(t, 1, p.Len())

	p.Free(h2)
	assert.Equal(t, 0, p.RefCount(h2))
	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Get(h2))
}

func TestEmptyingPoolEmptiesStorage(t *testing.T) {
	p := New()
	handles := make([]Handle, 0, 8)
	for _, s := range []string{"ape", "cat", "dog", "zebra", "zonkey"} {
		handles = append(handles, p.Allocate([]rune(s)))
	}
	for _, h := range handles {
		p.Free(h)
	}
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 0, p.SizeBytes())
}

func TestRetainBumpsRefcount(t *testing.T) {
	p := New()
	h := p.Allocate([]rune("cat"))
	p.Retain(h)
	assert.Equal(t, 2, p.RefCount(h))
	p.Free(h)
	assert.Equal(t, 1, p.Len())
	p.Free(h)
	assert.Equal(t, 0, p.Len())
}

func TestAllocateCopiesCallerSlice(t *testing.T) {
	p := New()
	src := []rune("cat")
	h := p.Allocate(src)
	src[0] = 'b'
	assert.Equal(t, []rune("cat"), p.Get(h), "Allocate must not alias the caller's backing array")
}
