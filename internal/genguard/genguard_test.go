package genguard

import "testing"

func TestReclaimWaitsForOldestGuard(t *testing.T) {
	h := New()

	g1 := h.Pin()
	h.Bump()
	freed := false
	h.Defer(g1.Generation(), func() { freed = true })

	h.Bump()
	if n := h.Reclaim(); n != 0 {
		t.Fatalf("expected 0 reclaimed while g1 is live, got %d", n)
	}
	if freed {
		t.Fatal("buffer freed while a reader still pins its generation")
	}

	g1.Release()
	if n := h.Reclaim(); n != 1 {
		t.Fatalf("expected 1 reclaimed after release, got %d", n)
	}
	if !freed {
		t.Fatal("expected buffer to be freed after reclaim")
	}
}

func TestPinSnapshotMonotonic(t *testing.T) {
	h := New()
	a := h.Snapshot()
	h.Bump()
	b := h.Snapshot()
	if !(b > a) {
		t.Fatalf("expected generation to increase, got a=%d b=%d", a, b)
	}
}

func TestMultipleGuardsSameGeneration(t *testing.T) {
	h := New()
	g1 := h.Pin()
	g2 := h.Pin()
	h.Bump()
	released := false
	h.Defer(g1.Generation(), func() { released = true })

	g1.Release()
	h.Reclaim()
	if released {
		t.Fatal("buffer freed while g2 still pins the same generation")
	}
	g2.Release()
	h.Reclaim()
	if !released {
		t.Fatal("expected buffer to be freed once all pins on its generation are released")
	}
}
