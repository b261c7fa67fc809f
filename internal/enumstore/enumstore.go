// Package enumstore implements the enum store: an ordered dictionary
// mapping unique values to stable 32-bit enum ids and back, with per-id
// reference counts, garbage collected once no guard or posting list
// references an id.
//
// The ordered dictionary is a github.com/google/btree.BTreeG. It does
// not expose order-statistics (rank) queries, so count/count_in_range
// here are O(k) in the number of matching keys rather than true
// O(log n), and that cost is documented at each call site rather than
// silently overclaimed.
package enumstore

import (
	"sync"

	"github.com/google/btree"
	"github.com/vespa-engine/vespa-sub013/internal/genguard"
)

// EnumID is a stable 32-bit id assigned to a unique value.
type EnumID uint32

const degree = 32

type entry[T any] struct {
	value    T
	id       EnumID
	refCount int32
}

// Store is an ordered dictionary for one attribute's enumerated values.
type Store[T any] struct {
	mu     sync.Mutex
	tree   *btree.BTreeG[*entry[T]]
	byID   map[EnumID]*entry[T]
	nextID EnumID
	less   func(a, b T) bool
	gen    *genguard.Holder
}

// New creates an enum store ordered by less. Use FoldedLess for
// case-insensitive string attributes, CasedLess for cased ones, and a plain numeric `<` for
// numeric ones, so the ordering matches what range queries expect.
func New[T any](gen *genguard.Holder, less func(a, b T) bool) *Store[T] {
	s := &Store[T]{
		byID: make(map[EnumID]*entry[T]),
		less: less,
		gen:  gen,
	}
	s.tree = btree.NewG(degree, func(a, b *entry[T]) bool { return less(a.value, b.value) })
	return s
}

func (s *Store[T]) probe(value T) *entry[T] { return &entry[T]{value: value} }

// Insert implements insert(value) -> (id, inserted): exact insertion: if
// value is already present its id is returned with inserted=false and
// its reference count is bumped.
func (s *Store[T]) Insert(value T) (EnumID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if found, ok := s.tree.Get(s.probe(value)); ok {
		found.refCount++
		return found.id, false
	}
	s.nextID++
	e := &entry[T]{value: value, id: s.nextID, refCount: 1}
	s.tree.ReplaceOrInsert(e)
	s.byID[e.id] = e
	return e.id, true
}

// Lookup implements lookup(value) -> id?, a point query.
func (s *Store[T]) Lookup(value T) (EnumID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if found, ok := s.tree.Get(s.probe(value)); ok {
		return found.id, true
	}
	return 0, false
}

// Value returns the value for a previously-assigned id. This is only
// meaningful while the id is still live under some reader guard.
func (s *Store[T]) Value(id EnumID) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		return e.value, true
	}
	var zero T
	return zero, false
}

// Release drops one reference previously taken by Insert. The entry
// becomes GC-eligible once its reference count reaches zero and the
// generation at release time has no live guard (see Compact).
func (s *Store[T]) Release(id EnumID) {
	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.refCount--
	becameGarbage := e.refCount <= 0
	gen := s.gen.Snapshot()
	s.mu.Unlock()

	if becameGarbage {
		s.gen.Defer(gen, func() { s.tryCollect(id) })
	}
}

// tryCollect removes id from the dictionary if it is still at refcount
// <= 0 (a later Insert of the same value may have revived it).
func (s *Store[T]) tryCollect(id EnumID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok || e.refCount > 0 {
		return
	}
	s.tree.Delete(e)
	delete(s.byID, id)
}

// Compact runs the deferred-release queue, the enum store's half of
// reclaim_unused_memory. Structural compaction across an entire
// sub-database's enum stores is expected to be serialized through an
// interlock; that serialization is the caller's
// responsibility (see manager.Manager.CompactEnumStores).
func (s *Store[T]) Compact() int { return s.gen.Reclaim() }

// Count implements count(comp): cardinality of values matching a
// predicate, by linear scan (see package doc for the O(k) caveat).
func (s *Store[T]) Count(match func(v T) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	s.tree.Ascend(func(e *entry[T]) bool {
		if match(e.value) {
			n++
		}
		return true
	})
	return n
}

// CountInRange implements count_in_range(lo_comp, hi_comp): the number
// of distinct values in [lo, hi) under the store's ordering.
func (s *Store[T]) CountInRange(lo, hi T) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	s.tree.AscendRange(s.probe(lo), s.probe(hi), func(e *entry[T]) bool {
		n++
		return true
	})
	return n
}

// AscendIDsInRange calls fn with every enum id in [lo, hi), in value
// order, stopping early if fn returns false. This is the primitive the
// search context's enumerated range-scan acceleration is
// built on.
func (s *Store[T]) AscendIDsInRange(lo, hi T, fn func(id EnumID) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.AscendRange(s.probe(lo), s.probe(hi), func(e *entry[T]) bool {
		return fn(e.id)
	})
}

// Len reports the number of distinct live values.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}
