// Package flush implements the two per-attribute flush engine targets:
// attribute.flush.<name> (SYNC, writes a snapshot) and
// attribute.shrink.<name> (GC, releases space after a lid-space
// compaction).
package flush

import (
	"context"
	"fmt"
	"os"

	"github.com/vespa-engine/vespa-sub013/directory"
	"github.com/vespa-engine/vespa-sub013/internal/codec"
	"github.com/vespa-engine/vespa-sub013/types"
)

// Vector is the minimal surface a flush/shrink target needs from a
// boxed attribute.Typed[T] (factory.Vector already satisfies it).
type Vector interface {
	LastSerial() types.Serial
	ShrinkLidSpace() bool
	ExportBytes() ([]byte, error)
	ImportBytes(data []byte) error
}

// Target implements attribute.flush.<name>.
type Target struct {
	name          string
	dir           *directory.Directory
	v             Vector
	flushedSerial types.Serial
	replayOpCost  int // >= 1; advertised higher for index-backed (e.g. HNSW) attributes
}

// NewTarget constructs a flush target. replayOpCost should be >=400 for
// attributes whose reader-facing index is expensive to rebuild from the
// transaction log (HNSW), and 1 otherwise.
func NewTarget(name string, dir *directory.Directory, v Vector, replayOpCost int) *Target {
	if replayOpCost < 1 {
		replayOpCost = 1
	}
	return &Target{name: name, dir: dir, v: v, replayOpCost: replayOpCost}
}

func (t *Target) Name() string                { return "attribute.flush." + t.name }
func (t *Target) FlushedSerial() types.Serial { return t.flushedSerial }
func (t *Target) ReplayOperationCost() int    { return t.replayOpCost }

// Flush writes a brand new snapshot and validates it atomically if the
// vector has committed work past the last flushed serial; otherwise
// this is a no-op that returns nil and records nothing.
func (t *Target) Flush(ctx context.Context) error {
	serial := t.v.LastSerial()
	if serial <= t.flushedSerial {
		return nil
	}

	if err := t.dir.AcquireWriterGuard(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", t.name, err)
	}
	defer t.dir.ReleaseWriterGuard()

	// A peer flusher may have already produced a snapshot at or past our
	// target serial while we waited for the guard; cancel rather than
	// redo the work.
	if current, ok, err := t.dir.CurrentSnapshot(); err == nil && ok && current >= serial {
		t.flushedSerial = current
		return nil
	}

	data, err := t.v.ExportBytes()
	if err != nil {
		return fmt.Errorf("flush %s: export: %w", t.name, err)
	}
	if err := os.MkdirAll(t.dir.SnapshotPath(serial), 0o755); err != nil {
		return fmt.Errorf("flush %s: create snapshot dir: %w", t.name, err)
	}
	if err := codec.WriteFile(t.dir.SnapshotDataFile(serial, t.name), data); err != nil {
		// Flush I/O error: fatal to this attempt. Remove anything
		// partially written so a later retry starts clean.
		_ = os.RemoveAll(t.dir.SnapshotPath(serial))
		return fmt.Errorf("flush %s: write snapshot: %w", t.name, err)
	}
	if err := t.dir.CommitSnapshot(serial); err != nil {
		return fmt.Errorf("flush %s: commit meta-info: %w", t.name, err)
	}
	if err := t.dir.PruneOrphanedSnapshots(); err != nil {
		return fmt.Errorf("flush %s: prune old snapshots: %w", t.name, err)
	}
	t.flushedSerial = serial
	return nil
}

// ShrinkTarget implements attribute.shrink.<name>: a GC-class target
// that only has work to do once the vector has been lid-space
// compacted since the last run.
type ShrinkTarget struct {
	name string
	v    Vector
}

func NewShrinkTarget(name string, v Vector) *ShrinkTarget {
	return &ShrinkTarget{name: name, v: v}
}

func (s *ShrinkTarget) Name() string { return "attribute.shrink." + s.name }

// Run reports whether a shrink was actually pending and has now been
// consumed. The underlying storage release happens as an ordinary
// consequence of ShrinkLidSpace (dropping the Go reference to
// now-unreachable buffer tail); there's no separate disk artifact to
// write for a shrink, unlike Flush.
func (s *ShrinkTarget) Run() bool {
	return s.v.ShrinkLidSpace()
}
