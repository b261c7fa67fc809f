// Package multivalue implements the lid -> (values, weights) indirection
// used by array and weighted_set collections, following and
// an invariant: every multi-value ref either points into the mapping or
// is the null ref, and values dereferenced through a stale ref remain
// readable for at least one generation.
package multivalue

import (
	"github.com/vespa-engine/vespa-sub013/internal/genguard"
	"github.com/vespa-engine/vespa-sub013/internal/valuestore"
	"github.com/vespa-engine/vespa-sub013/types"
)

// Element is one (value, weight) pair of a multi-value cell. Array
// attributes always carry Weight 1; weighted_set attributes use it for
// real.
type Element[T any] struct {
	Value  T
	Weight int32
}

// Store maps each lid to a slice of elements. It is built on top of
// valuestore.Store so it inherits the same generation-safe growth and
// acquire/release publish contract; a stale read_view's slices are
// never mutated in place (appends/removes always produce a new slice),
// which is what keeps a dereferenced stale ref valid for an invariant.
type Store[T any] struct {
	inner *valuestore.Store[[]Element[T]]
}

// New creates an empty multi-value store.
func New[T any](gen *genguard.Holder, initialCap uint32) *Store[T] {
	return &Store[T]{inner: valuestore.New[[]Element[T]](gen, nil, initialCap)}
}

func (s *Store[T]) EnsureCapacity(numDocs types.Lid) { s.inner.EnsureCapacity(numDocs) }
func (s *Store[T]) Publish(limit types.Lid)          { s.inner.Publish(limit) }
func (s *Store[T]) CommittedDocidLimit() types.Lid   { return s.inner.CommittedDocidLimit() }

// Get returns the elements currently stored at lid. The returned slice
// must be treated as immutable by the caller: mutate via Set/Append/
// Remove, which always allocate a fresh slice.
func (s *Store[T]) Get(lid types.Lid) []Element[T] {
	return s.inner.Get(lid)
}

// Set replaces the elements at lid wholesale (used by `put`).
func (s *Store[T]) Set(lid types.Lid, elems []Element[T]) {
	s.inner.Set(lid, cloneElements(elems))
}

// Clear empties lid.
func (s *Store[T]) Clear(lid types.Lid) {
	s.inner.Clear(lid)
}

// AppendArray implements APPEND into an array collection: non-idempotent,
// duplicates allowed.
func (s *Store[T]) AppendArray(lid types.Lid, value T, weight int32) {
	cur := s.inner.Get(lid)
	next := make([]Element[T], 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, Element[T]{Value: value, Weight: weight})
	s.inner.Set(lid, next)
}

// AppendWeightedSet implements APPEND into a weighted_set collection,
// applying the create-if-nonexistent / remove-if-zero flags:
//   - weight == 0 and removeIfZero: remove the matching element, if any.
//   - an existing element matching value: its weight is increased by
//     `weight` (weighted sets accumulate on append, unlike array's plain
//     duplicate-allowing append).
//   - no existing element matching value: appended only if
//     createIfNonExistent; otherwise the append is dropped, whatever the
//     weight.
func (s *Store[T]) AppendWeightedSet(lid types.Lid, value T, weight int32, createIfNonExistent, removeIfZero bool, eq func(a, b T) bool) {
	cur := s.inner.Get(lid)
	idx := indexOf(cur, value, eq)

	if weight == 0 && removeIfZero {
		if idx >= 0 {
			s.inner.Set(lid, removeAt(cur, idx))
		}
		return
	}

	if idx >= 0 {
		next := cloneElements(cur)
		next[idx].Weight += weight
		s.inner.Set(lid, next)
		return
	}

	if !createIfNonExistent {
		return
	}
	next := make([]Element[T], 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, Element[T]{Value: value, Weight: weight})
	s.inner.Set(lid, next)
}

// SetWeight implements the SET_WEIGHT(value, w) update operation.
func (s *Store[T]) SetWeight(lid types.Lid, value T, weight int32, removeIfZero bool, eq func(a, b T) bool) {
	cur := s.inner.Get(lid)
	idx := indexOf(cur, value, eq)
	if idx < 0 {
		return
	}
	if weight == 0 && removeIfZero {
		s.inner.Set(lid, removeAt(cur, idx))
		return
	}
	next := cloneElements(cur)
	next[idx].Weight = weight
	s.inner.Set(lid, next)
}

// AdjustWeight implements INCREASE_WEIGHT/MUL_WEIGHT/DIV_WEIGHT via a
// caller-supplied adjust function, applied only to the element matching
// value.
func (s *Store[T]) AdjustWeight(lid types.Lid, value T, removeIfZero bool, eq func(a, b T) bool, adjust func(w int32) int32) {
	cur := s.inner.Get(lid)
	idx := indexOf(cur, value, eq)
	if idx < 0 {
		return
	}
	newWeight := adjust(cur[idx].Weight)
	if newWeight == 0 && removeIfZero {
		s.inner.Set(lid, removeAt(cur, idx))
		return
	}
	next := cloneElements(cur)
	next[idx].Weight = newWeight
	s.inner.Set(lid, next)
}

// Remove implements `remove(lid, value)` for both array and
// weighted_set collections: removes every element equal to value.
func (s *Store[T]) Remove(lid types.Lid, value T, eq func(a, b T) bool) {
	cur := s.inner.Get(lid)
	next := make([]Element[T], 0, len(cur))
	for _, e := range cur {
		if !eq(e.Value, value) {
			next = append(next, e)
		}
	}
	s.inner.Set(lid, next)
}

func indexOf[T any](elems []Element[T], value T, eq func(a, b T) bool) int {
	for i, e := range elems {
		if eq(e.Value, value) {
			return i
		}
	}
	return -1
}

func removeAt[T any](elems []Element[T], idx int) []Element[T] {
	next := make([]Element[T], 0, len(elems)-1)
	next = append(next, elems[:idx]...)
	next = append(next, elems[idx+1:]...)
	return next
}

func cloneElements[T any](elems []Element[T]) []Element[T] {
	next := make([]Element[T], len(elems))
	copy(next, elems)
	return next
}
