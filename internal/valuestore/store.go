// Package valuestore implements per-attribute single-value storage: an
// array of values indexed by local document id, generation-aware and
// growable, accessed through acquire loads by readers.
package valuestore

import (
	"sync/atomic"

	"github.com/vespa-engine/vespa-sub013/internal/genguard"
	"github.com/vespa-engine/vespa-sub013/types"
)

// Store is a single-value (one T per lid) column. It is safe for one
// writer and any number of concurrent readers without locks on the read
// path: writers mutate the backing array in place or swap it in on
// growth, and publish visibility through an atomic release store;
// readers acquire-load the same variable before touching the array.
type Store[T any] struct {
	buf      atomic.Pointer[[]T]
	limit    atomic.Uint32 // committed_docid_limit, an acquire/release fence
	def      T
	gen      *genguard.Holder
}

// New creates a store whose reserved lid 0 already holds the default
// value, with capacity for at least initialCap docs.
func New[T any](gen *genguard.Holder, def T, initialCap uint32) *Store[T] {
	if initialCap < 1 {
		initialCap = 1
	}
	s := &Store[T]{def: def, gen: gen}
	b := make([]T, initialCap)
	for i := range b {
		b[i] = def
	}
	s.buf.Store(&b)
	s.limit.Store(1) // reserved lid 0 is always committed
	return s
}

// capSnapshot is the buffer a writer is currently mutating.
func (s *Store[T]) capSnapshot() []T {
	return *s.buf.Load()
}

// EnsureCapacity grows the backing array, if needed, so that lids up to
// numDocs can be written. It may reallocate; the old array is kept alive
// until the generation at the time of the swap is no longer observable
// by any reader (an invariant), then dropped so the Go runtime can
// collect it — the Go-idiomatic analogue of reclaim_unused_memory.
func (s *Store[T]) EnsureCapacity(numDocs types.Lid) {
	cur := s.capSnapshot()
	if uint32(numDocs) < uint32(len(cur)) {
		return
	}
	newCap := growCapacity(uint32(len(cur)), uint32(numDocs)+1)
	next := make([]T, newCap)
	copy(next, cur)
	for i := len(cur); i < len(next); i++ {
		next[i] = s.def
	}
	gen := s.gen.Snapshot()
	old := cur
	s.buf.Store(&next)
	s.gen.Bump()
	s.gen.Defer(gen, func() { _ = old })
}

func growCapacity(have, want uint32) uint32 {
	next := have
	if next < 1024 {
		next = 1024
	}
	for next < want {
		next = next + next/4 + 16 // 1.25x growth plus a fixed bias of 16; no GrowStrategy is consulted
	}
	return next
}

// Set writes v at lid. The caller (the change-queue commit path) is
// responsible for calling Publish afterwards so readers observe it.
func (s *Store[T]) Set(lid types.Lid, v T) {
	b := s.capSnapshot()
	b[lid] = v
}

// Clear resets lid to the store's default value.
func (s *Store[T]) Clear(lid types.Lid) {
	s.Set(lid, s.def)
}

// Publish advances committed_docid_limit to newLimit with release
// semantics: every Set call that happened-before this Publish is visible
// to any reader whose Get happens-after the matching acquire Load.
func (s *Store[T]) Publish(newLimit types.Lid) {
	for {
		cur := s.limit.Load()
		if uint32(newLimit) <= cur {
			return
		}
		if s.limit.CompareAndSwap(cur, uint32(newLimit)) {
			return
		}
	}
}

// CommittedDocidLimit is the highest lid safely visible to readers.
func (s *Store[T]) CommittedDocidLimit() types.Lid {
	return types.Lid(s.limit.Load())
}

// Get returns the value at lid using an acquire-load reader contract.
// Reading beyond CommittedDocidLimit is a caller bug; Get still returns
// a value (the default, or a not-yet-visible write) rather than
// panicking, since "not yet allocated" is left undefined rather than
// treated as an error.
func (s *Store[T]) Get(lid types.Lid) T {
	_ = s.limit.Load() // acquire fence: pair with the Publish release store
	b := s.capSnapshot()
	if int(lid) >= len(b) {
		return s.def
	}
	return b[lid]
}

// ReadView is a snapshot of the backing array valid for at least the
// lifetime of the genguard.Guard it was captured under.
type ReadView[T any] struct {
	data  []T
	limit types.Lid
}

// Len is the committed_docid_limit at the time the view was captured.
func (v ReadView[T]) Len() types.Lid { return v.limit }

// At returns the value at lid as of the view's snapshot.
func (v ReadView[T]) At(lid types.Lid) T {
	if int(lid) >= len(v.data) {
		var zero T
		return zero
	}
	return v.data[lid]
}

// MakeReadView captures a stable view of the store. It takes no guard
// itself: the caller pins one before capturing the view and releases it
// once done with the view.
func (s *Store[T]) MakeReadView() ReadView[T] {
	limit := s.CommittedDocidLimit()
	return ReadView[T]{data: s.capSnapshot(), limit: limit}
}

// Default returns the store's default (zero) value.
func (s *Store[T]) Default() T { return s.def }
