// Package runepool implements a content-addressed interner for immutable
// rune sequences ("edge labels" in the tree core). Equal sequences share a
// single backing array and a reference count; the pool frees an entry the
// instant its last referring node releases its handle.
//
// A pool is owned exclusively by one tree (spec §9 "Rune pool across
// trees"): this keeps ownership local and lets a tree assert, once
// emptied, that its pool is also empty (spec §5 "Resource cleanup").
package runepool

import (
	"hash/fnv"
)

// Handle is an opaque reference into a Pool's storage. The zero Handle
// never refers to a live entry.
type Handle uint32

// Pool interns immutable []rune sequences by content, grounded on the
// teacher's fnv-based content hashing (pkg/rope/hash.go's HashCode) used
// here as the bucket key of a hash-consing table instead of a rope
// equality pre-check.
type Pool struct {
	// buckets maps a content hash to the handles of sequences sharing it
	// (collisions are resolved by elementwise comparison).
	buckets map[uint64][]Handle
	entries map[Handle]*entry
	next    Handle
	bytes   int
}

type entry struct {
	seq      []rune
	refcount int
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		buckets: make(map[uint64][]Handle),
		entries: make(map[Handle]*entry),
		next:    1,
	}
}

// Allocate interns seq, returning a handle. If an equal sequence is
// already interned its refcount is incremented and its handle is reused;
// otherwise a fresh immutable copy is stored with refcount 1.
//
// seq must have length >= 1; the tree core never allocates an empty edge
// label (spec §3 invariant 3).
func (p *Pool) Allocate(seq []rune) Handle {
	key := hashRunes(seq)
	for _, h := range p.buckets[key] {
		if e := p.entries[h]; e != nil && runesEqual(e.seq, seq) {
			e.refcount++
			return h
		}
	}

	cp := make([]rune, len(seq))
	copy(cp, seq)

	h := p.next
	p.next++
	p.entries[h] = &entry{seq: cp, refcount: 1}
	p.buckets[key] = append(p.buckets[key], h)
	p.bytes += len(cp) * 4
	return h
}

// Free decrements the refcount for h, removing the entry once it drops
// below 1. Freeing a handle that is not live is a no-op.
func (p *Pool) Free(h Handle) {
	e, ok := p.entries[h]
	if !ok {
		return
	}
	e.refcount--
	if e.refcount > 0 {
		return
	}

	p.bytes -= len(e.seq) * 4
	delete(p.entries, h)
	key := hashRunes(e.seq)
	bucket := p.buckets[key]
	for i, bh := range bucket {
		if bh == h {
			bucket[i] = bucket[len(bucket)-1]
			p.buckets[key] = bucket[:len(bucket)-1]
			break
		}
	}
	if len(p.buckets[key]) == 0 {
		delete(p.buckets, key)
	}
}

// Get returns the interned sequence for h. The returned slice must not be
// mutated by the caller; it is shared with every other referencing node.
func (p *Pool) Get(h Handle) []rune {
	e, ok := p.entries[h]
	if !ok {
		return nil
	}
	return e.seq
}

// Retain increments the refcount of an already-live handle, for a caller
// that hands out a second reference to the same label. The tree core does
// not call it: splits and merges take their references through Allocate.
func (p *Pool) Retain(h Handle) {
	if e, ok := p.entries[h]; ok {
		e.refcount++
	}
}

// RefCount reports the live refcount for h, or 0 if h is not live.
func (p *Pool) RefCount(h Handle) int {
	if e, ok := p.entries[h]; ok {
		return e.refcount
	}
	return 0
}

// Len reports the number of distinct interned sequences.
func (p *Pool) Len() int {
	return len(p.entries)
}

// SizeBytes reports an approximation of the pool's backing storage, in
// bytes (4 bytes per rune, ignoring map/slice overhead).
func (p *Pool) SizeBytes() int {
	return p.bytes
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hashRunes(seq []rune) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 4)
	for _, r := range seq {
		buf[0] = byte(r)
		buf[1] = byte(r >> 8)
		buf[2] = byte(r >> 16)
		buf[3] = byte(r >> 24)
		h.Write(buf)
	}
	return h.Sum64()
}
