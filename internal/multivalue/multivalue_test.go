package multivalue

import (
	"testing"

	"github.com/vespa-engine/vespa-sub013/internal/genguard"
)

func strEq(a, b string) bool { return a == b }

func TestWeightedSetAppendAndRemoveIfZero(t *testing.T) {
	s := New[string](genguard.New(), 4)
	s.EnsureCapacity(1)

	s.AppendWeightedSet(1, "a", 5, true, true, strEq)
	s.AppendWeightedSet(1, "b", 3, true, true, strEq)
	s.Publish(2)

	got := s.Get(1)
	if len(got) != 2 {
		t.Fatalf("expected 2 elements, got %d: %v", len(got), got)
	}

	s.SetWeight(1, "a", 0, true, strEq)
	s.Publish(2)

	got = s.Get(1)
	if len(got) != 1 || got[0].Value != "b" || got[0].Weight != 3 {
		t.Fatalf("expected [(b,3)] after SET_WEIGHT(a,0), got %v", got)
	}
}

func TestWeightedSetAppendAccumulatesExistingWeight(t *testing.T) {
	s := New[string](genguard.New(), 4)
	s.EnsureCapacity(1)

	s.AppendWeightedSet(1, "a", 5, true, true, strEq)
	s.AppendWeightedSet(1, "a", 2, true, true, strEq)
	s.Publish(2)

	got := s.Get(1)
	if len(got) != 1 || got[0].Weight != 7 {
		t.Fatalf("expected single element with weight 7, got %v", got)
	}
}

func TestArrayAppendAllowsDuplicates(t *testing.T) {
	s := New[string](genguard.New(), 4)
	s.EnsureCapacity(1)

	s.AppendArray(1, "x", 1)
	s.AppendArray(1, "x", 1)
	s.Publish(2)

	got := s.Get(1)
	if len(got) != 2 {
		t.Fatalf("expected 2 duplicate elements, got %d", len(got))
	}
}

func TestAppendWithoutCreateIfNonExistentIsNoop(t *testing.T) {
	s := New[string](genguard.New(), 4)
	s.EnsureCapacity(1)

	s.AppendWeightedSet(1, "a", 5, false, true, strEq)
	s.Publish(2)

	if got := s.Get(1); len(got) != 0 {
		t.Fatalf("expected no element created, got %v", got)
	}
}
