package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vespa-engine/vespa-sub013/types"
)

func TestCommitAndCurrentSnapshotRoundTrip(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok, err := d.CurrentSnapshot(); err != nil || ok {
		t.Fatalf("CurrentSnapshot on a fresh directory = (_, %v, %v), want (_, false, nil)", ok, err)
	}
	if err := d.CommitSnapshot(7); err != nil {
		t.Fatalf("CommitSnapshot: %v", err)
	}
	serial, ok, err := d.CurrentSnapshot()
	if err != nil || !ok || serial != 7 {
		t.Fatalf("CurrentSnapshot = (%d, %v, %v), want (7, true, nil)", serial, ok, err)
	}
}

func TestListSnapshotsIgnoresUnrelatedEntries(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, s := range []types.Serial{3, 1, 2} {
		if err := os.MkdirAll(d.SnapshotPath(s), 0o755); err != nil {
			t.Fatalf("mkdir snapshot %d: %v", s, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "not-a-snapshot"), 0o755); err != nil {
		t.Fatalf("mkdir decoy: %v", err)
	}
	serials, err := d.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	want := []types.Serial{1, 2, 3}
	if len(serials) != len(want) {
		t.Fatalf("ListSnapshots = %v, want %v", serials, want)
	}
	for i, s := range want {
		if serials[i] != s {
			t.Fatalf("ListSnapshots[%d] = %d, want %d (must be ascending)", i, serials[i], s)
		}
	}
}

func TestPruneOrphanedSnapshotsKeepsOnlyCurrent(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, s := range []types.Serial{1, 2, 3} {
		if err := os.MkdirAll(d.SnapshotPath(s), 0o755); err != nil {
			t.Fatalf("mkdir snapshot %d: %v", s, err)
		}
	}
	if err := d.CommitSnapshot(2); err != nil {
		t.Fatalf("CommitSnapshot: %v", err)
	}
	if err := d.PruneOrphanedSnapshots(); err != nil {
		t.Fatalf("PruneOrphanedSnapshots: %v", err)
	}
	serials, err := d.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(serials) != 1 || serials[0] != 2 {
		t.Fatalf("ListSnapshots after prune = %v, want [2]", serials)
	}
}

func TestWriterGuardMutualExclusion(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := d.AcquireWriterGuard(ctx); err != nil {
		t.Fatalf("first AcquireWriterGuard: %v", err)
	}
	defer d.ReleaseWriterGuard()

	d2, err := New(d.Root())
	if err != nil {
		t.Fatalf("New (second handle): %v", err)
	}
	ctx2, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if err := d2.AcquireWriterGuard(ctx2); err == nil {
		d2.ReleaseWriterGuard()
		t.Fatal("a second writer guard on the same directory must fail while the first is held")
	}
}

func TestTransientDiskUsageExcludesCurrentSnapshot(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, s := range []types.Serial{1, 2} {
		if err := os.MkdirAll(d.SnapshotPath(s), 0o755); err != nil {
			t.Fatalf("mkdir snapshot %d: %v", s, err)
		}
		if err := os.WriteFile(d.SnapshotDataFile(s, "attr"), make([]byte, 100), 0o644); err != nil {
			t.Fatalf("write snapshot %d data: %v", s, err)
		}
	}
	if err := d.CommitSnapshot(2); err != nil {
		t.Fatalf("CommitSnapshot: %v", err)
	}

	total, err := d.DiskUsage()
	if err != nil {
		t.Fatalf("DiskUsage: %v", err)
	}
	if total < 200 {
		t.Fatalf("DiskUsage() = %d, want at least 200 (both snapshots counted)", total)
	}

	transient, err := d.TransientDiskUsage()
	if err != nil {
		t.Fatalf("TransientDiskUsage: %v", err)
	}
	if transient != 100 {
		t.Fatalf("TransientDiskUsage() = %d, want 100 (only the non-current snapshot 1)", transient)
	}
}

func TestMarkRemovedRenamesDirectory(t *testing.T) {
	root := t.TempDir()
	attrDir := filepath.Join(root, "attr")
	d, err := New(attrDir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	removed, err := d.MarkRemoved()
	if err != nil {
		t.Fatalf("MarkRemoved: %v", err)
	}
	if _, err := os.Stat(removed); err != nil {
		t.Fatalf("removed path %s should exist: %v", removed, err)
	}
	if _, err := os.Stat(attrDir); !os.IsNotExist(err) {
		t.Fatalf("original path %s should no longer exist", attrDir)
	}
}
