// Package genguard implements generation-tracked reclamation: a value
// reachable from a reader is never destroyed until the oldest live
// generation exceeds the generation at which the reader acquired it.
//
// A single writer bumps the current generation before every mutation
// that might invalidate a buffer a reader could be holding. Readers pin
// the current generation for the lifetime of their guard. A periodic
// reclaim pass frees anything held back by a generation older than the
// oldest live pin.
package genguard

import (
	"sync"
	"sync/atomic"
)

// Generation is an opaque, strictly increasing counter.
type Generation uint64

// Holder tracks the current generation and the set of generations still
// pinned by live readers. The value read path never takes mu: only the
// bookkeeping (Pin, Release, Reclaim) does, following ("no locks on
// the hot path").
type Holder struct {
	current atomic.Uint64

	mu      sync.Mutex
	pinned  map[Generation]int
	garbage []garbageEntry
}

type garbageEntry struct {
	gen     Generation
	release func()
}

// New creates a Holder starting at generation 1. Generation 0 is never
// assigned so that a zero-value Guard reads as "no guard held".
func New() *Holder {
	h := &Holder{
		pinned: make(map[Generation]int),
	}
	h.current.Store(1)
	return h
}

// Bump advances the current generation and returns the new value.
//
// Only one writer lane ever calls this for a given vector (: "writer
// tasks on the same lane never overlap by construction"), so no locking
// is needed beyond the atomic increment itself.
func (h *Holder) Bump() Generation {
	return Generation(h.current.Add(1))
}

// Snapshot returns the generation currently in effect, without bumping
// it. Used by a writer that wants to tag a buffer with "the generation
// as of now" without forcing every concurrent reader to a new one.
func (h *Holder) Snapshot() Generation {
	return Generation(h.current.Load())
}

// Guard pins a generation for a reader. It must be released exactly
// once.
type Guard struct {
	h   *Holder
	gen Generation
}

// Pin captures the current generation and prevents any buffer tagged
// with it (or later) from being reclaimed until Release is called.
func (h *Holder) Pin() Guard {
	gen := Generation(h.current.Load())
	h.mu.Lock()
	h.pinned[gen]++
	h.mu.Unlock()
	return Guard{h: h, gen: gen}
}

// Generation reports which generation this guard pinned.
func (g Guard) Generation() Generation { return g.gen }

// Release unpins the generation. It is safe to call at most once; a
// zero-value Guard releases into the void.
func (g Guard) Release() {
	if g.h == nil {
		return
	}
	h := g.h
	h.mu.Lock()
	h.pinned[g.gen]--
	if h.pinned[g.gen] <= 0 {
		delete(h.pinned, g.gen)
	}
	h.mu.Unlock()
}

// oldestUsedLocked returns the oldest generation still pinned by a
// reader, or the current generation if nothing is pinned. Caller must
// hold h.mu.
func (h *Holder) oldestUsedLocked() Generation {
	oldest := Generation(h.current.Load())
	for gen := range h.pinned {
		if gen < oldest {
			oldest = gen
		}
	}
	return oldest
}

// Defer registers a cleanup to run once no live guard can observe data
// tagged with gen, implementing reclaim_unused_memory's deferred-free
// half: the writer calls Defer when it replaces a buffer, and a later
// Reclaim call actually invokes release() once it is safe.
func (h *Holder) Defer(gen Generation, release func()) {
	h.mu.Lock()
	h.garbage = append(h.garbage, garbageEntry{gen: gen, release: release})
	h.mu.Unlock()
}

// Reclaim implements reclaim_unused_memory(oldest_used_generation): it
// releases every deferred buffer whose generation is strictly older than
// the oldest generation any live reader could still observe.
func (h *Holder) Reclaim() (reclaimed int) {
	h.mu.Lock()
	oldest := h.oldestUsedLocked()
	kept := h.garbage[:0]
	var toRelease []func()
	for _, e := range h.garbage {
		if e.gen < oldest {
			toRelease = append(toRelease, e.release)
		} else {
			kept = append(kept, e)
		}
	}
	h.garbage = kept
	h.mu.Unlock()

	for _, release := range toRelease {
		release()
	}
	return len(toRelease)
}

// PendingGarbage reports how many deferred buffers are still waiting on
// a reclaim pass; used by tests and status reporting.
func (h *Holder) PendingGarbage() int {
	h.mu.Lock()
	n := len(h.garbage)
	h.mu.Unlock()
	return n
}
