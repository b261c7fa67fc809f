package populator

import (
	"context"
	"testing"

	"github.com/vespa-engine/vespa-sub013/directory"
	"github.com/vespa-engine/vespa-sub013/flush"
	"github.com/vespa-engine/vespa-sub013/types"
)

type fakeVector struct {
	lastSerial types.Serial
	data       []byte
}

func (f *fakeVector) LastSerial() types.Serial      { return f.lastSerial }
func (f *fakeVector) ShrinkLidSpace() bool          { return false }
func (f *fakeVector) ExportBytes() ([]byte, error)  { return f.data, nil }
func (f *fakeVector) ImportBytes(data []byte) error { f.data = data; return nil }

func newTarget(t *testing.T, v *fakeVector) *flush.Target {
	t.Helper()
	dir, err := directory.New(t.TempDir())
	if err != nil {
		t.Fatalf("directory.New: %v", err)
	}
	return flush.NewTarget("attr", dir, v, 1)
}

func TestPopulateAssignsMonotonicSerials(t *testing.T) {
	var applied []types.Serial
	v := &fakeVector{}
	apply := func(lid types.Lid, serial types.Serial) error {
		applied = append(applied, serial)
		v.lastSerial = serial
		return nil
	}
	target := newTarget(t, v)

	if err := Populate(context.Background(), 4, 10, 13, apply, []*flush.Target{target}); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	want := []types.Serial{11, 12, 13}
	if len(applied) != len(want) {
		t.Fatalf("applied serials = %v, want %v", applied, want)
	}
	for i, s := range want {
		if applied[i] != s {
			t.Fatalf("applied[%d] = %d, want %d", i, applied[i], s)
		}
	}
	if target.FlushedSerial() != 13 {
		t.Fatalf("FlushedSerial() = %d, want 13 (target flushed once at the end)", target.FlushedSerial())
	}
}

func TestPopulateRejectsNoRoomForSyntheticSerials(t *testing.T) {
	v := &fakeVector{}
	apply := func(lid types.Lid, serial types.Serial) error { return nil }
	target := newTarget(t, v)
	if err := Populate(context.Background(), 5, 10, 10, apply, []*flush.Target{target}); err == nil {
		t.Fatal("Populate with configSerial <= initSerial and real documents should reject")
	}
}

func TestPopulatePropagatesApplyError(t *testing.T) {
	v := &fakeVector{}
	wantErr := context.Canceled
	apply := func(lid types.Lid, serial types.Serial) error { return wantErr }
	target := newTarget(t, v)
	err := Populate(context.Background(), 3, 0, 5, apply, []*flush.Target{target})
	if err == nil {
		t.Fatal("Populate should propagate an error from apply")
	}
}

func TestPopulateWithNoDocsStillFlushes(t *testing.T) {
	v := &fakeVector{lastSerial: 7, data: []byte("x")}
	apply := func(lid types.Lid, serial types.Serial) error {
		t.Fatal("apply should not be called when numDocs <= reserved lid + 1")
		return nil
	}
	target := newTarget(t, v)
	if err := Populate(context.Background(), types.ReservedLid+1, 0, 7, apply, []*flush.Target{target}); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if target.FlushedSerial() != 7 {
		t.Fatalf("FlushedSerial() = %d, want 7", target.FlushedSerial())
	}
}
