package flush

import (
	"context"
	"testing"

	"github.com/vespa-engine/vespa-sub013/directory"
	"github.com/vespa-engine/vespa-sub013/types"
)

type fakeVector struct {
	lastSerial types.Serial
	data       []byte
	shrink     bool
	exportErr  error
}

func (f *fakeVector) LastSerial() types.Serial { return f.lastSerial }
func (f *fakeVector) ShrinkLidSpace() bool {
	v := f.shrink
	f.shrink = false
	return v
}
func (f *fakeVector) ExportBytes() ([]byte, error) { return f.data, f.exportErr }
func (f *fakeVector) ImportBytes(data []byte) error {
	f.data = data
	return nil
}

func newDir(t *testing.T) *directory.Directory {
	t.Helper()
	d, err := directory.New(t.TempDir())
	if err != nil {
		t.Fatalf("directory.New: %v", err)
	}
	return d
}

func TestFlushWritesSnapshotWhenAhead(t *testing.T) {
	dir := newDir(t)
	v := &fakeVector{lastSerial: 3, data: []byte("content")}
	target := NewTarget("attr", dir, v, 1)

	if err := target.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if target.FlushedSerial() != 3 {
		t.Fatalf("FlushedSerial() = %d, want 3", target.FlushedSerial())
	}
	current, ok, err := dir.CurrentSnapshot()
	if err != nil || !ok || current != 3 {
		t.Fatalf("CurrentSnapshot() = (%d, %v, %v), want (3, true, nil)", current, ok, err)
	}
}

func TestFlushIsNoopWhenNotAhead(t *testing.T) {
	dir := newDir(t)
	v := &fakeVector{lastSerial: 0}
	target := NewTarget("attr", dir, v, 1)

	if err := target.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, ok, _ := dir.CurrentSnapshot(); ok {
		t.Fatal("Flush with nothing new committed should not write a snapshot")
	}
}

func TestFlushTwiceAtSameSerialIsIdempotent(t *testing.T) {
	dir := newDir(t)
	v := &fakeVector{lastSerial: 5, data: []byte("v1")}
	target := NewTarget("attr", dir, v, 1)
	if err := target.Flush(context.Background()); err != nil {
		t.Fatalf("first Flush: %v", err)
	}
	if err := target.Flush(context.Background()); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	serials, err := dir.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(serials) != 1 {
		t.Fatalf("ListSnapshots = %v, want exactly one snapshot after two flushes at the same serial", serials)
	}
}

func TestShrinkTargetRunReportsPendingOnce(t *testing.T) {
	v := &fakeVector{shrink: true}
	target := NewShrinkTarget("attr", v)
	if !target.Run() {
		t.Fatal("Run() should report true the first time a shrink is pending")
	}
	if target.Run() {
		t.Fatal("Run() should report false once the pending shrink has been consumed")
	}
}

func TestNewTargetClampsReplayCost(t *testing.T) {
	v := &fakeVector{}
	target := NewTarget("attr", newDir(t), v, 0)
	if target.ReplayOperationCost() != 1 {
		t.Fatalf("ReplayOperationCost() = %d, want 1 (clamped minimum)", target.ReplayOperationCost())
	}
}
