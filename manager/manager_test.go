package manager

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/vespa-engine/vespa-sub013/config"
	"github.com/vespa-engine/vespa-sub013/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	return New(discardLogger(), t.TempDir(), config.IndexSchemaConfig{})
}

func int32Config(name string) types.AttributeConfig {
	return types.AttributeConfig{Name: name, BasicType: types.BasicTypeInt32, Collection: types.CollectionSingle}
}

func TestAddThenGetWritableAttribute(t *testing.T) {
	m := newManager(t)
	if err := m.Add(int32Config("a"), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	v, ok := m.GetWritableAttribute("a")
	if !ok {
		t.Fatal("GetWritableAttribute should find the just-added attribute")
	}
	if v.Name() != "a" {
		t.Fatalf("Name() = %q, want a", v.Name())
	}
}

func TestGetAttributeFindsImported(t *testing.T) {
	m := newManager(t)
	if err := m.Add(int32Config("native"), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	native, _ := m.GetWritableAttribute("native")
	m.ImportAttribute("sibling", native)

	if _, ok := m.GetWritableAttribute("sibling"); ok {
		t.Fatal("an imported attribute must not be writable")
	}
	if _, ok := m.GetAttribute("sibling"); !ok {
		t.Fatal("GetAttribute should resolve an imported attribute")
	}
}

func TestFlushTargetsOnePerAttribute(t *testing.T) {
	m := newManager(t)
	if err := m.Add(int32Config("a"), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Add(int32Config("b"), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	fs, ss := m.FlushTargets()
	if len(fs) != 2 || len(ss) != 2 {
		t.Fatalf("FlushTargets = (%d, %d), want (2, 2)", len(fs), len(ss))
	}
}

func TestReconfigReusesTypeCompatibleVector(t *testing.T) {
	m := newManager(t)
	cfg := int32Config("a")
	if err := m.Add(cfg, 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	v1, _ := m.GetWritableAttribute("a")

	next, err := m.Reconfig(context.Background(), CollectionSpec{
		Attributes: []types.AttributeConfig{cfg},
		DocidLimit: 1,
		CurrentSerial: 2,
	}, config.IndexSchemaConfig{})
	if err != nil {
		t.Fatalf("Reconfig: %v", err)
	}
	v2, ok := next.GetWritableAttribute("a")
	if !ok {
		t.Fatal("reconfigured manager should still carry attribute a")
	}
	if v1 != v2 {
		t.Fatal("a type-compatible field must be transferred in place, not reinitialized")
	}
}

func TestReconfigReinitsOnTypeChange(t *testing.T) {
	m := newManager(t)
	oldCfg := int32Config("a")
	if err := m.Add(oldCfg, 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	v1, _ := m.GetWritableAttribute("a")

	newCfg := oldCfg
	newCfg.BasicType = types.BasicTypeInt64

	next, err := m.Reconfig(context.Background(), CollectionSpec{
		Attributes:    []types.AttributeConfig{newCfg},
		DocidLimit:    1,
		CurrentSerial: 2,
	}, config.IndexSchemaConfig{})
	if err != nil {
		t.Fatalf("Reconfig: %v", err)
	}
	v2, ok := next.GetWritableAttribute("a")
	if !ok {
		t.Fatal("reconfigured manager should carry attribute a")
	}
	if v1 == v2 {
		t.Fatal("a type-incompatible reconfigure must not reuse the old vector")
	}
}

func TestReconfigRemovesDroppedFields(t *testing.T) {
	m := newManager(t)
	if err := m.Add(int32Config("a"), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Add(int32Config("b"), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	next, err := m.Reconfig(context.Background(), CollectionSpec{
		Attributes:    []types.AttributeConfig{int32Config("a")},
		DocidLimit:    1,
		CurrentSerial: 2,
	}, config.IndexSchemaConfig{})
	if err != nil {
		t.Fatalf("Reconfig: %v", err)
	}
	if _, ok := next.GetWritableAttribute("b"); ok {
		t.Fatal("a field dropped from the new spec should not survive reconfigure")
	}
}

func TestPruneRemovedFieldsAfterReconfigSucceeds(t *testing.T) {
	m := newManager(t)
	if err := m.Add(int32Config("a"), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, err := m.Reconfig(context.Background(), CollectionSpec{
		Attributes:    nil,
		DocidLimit:    1,
		CurrentSerial: 2,
	}, config.IndexSchemaConfig{})
	if err != nil {
		t.Fatalf("Reconfig: %v", err)
	}
	if err := m.PruneRemovedFields(nil); err != nil {
		t.Fatalf("PruneRemovedFields: %v", err)
	}
}

func TestPopulateRejectsUnknownAttribute(t *testing.T) {
	m := newManager(t)
	err := m.Populate(context.Background(), "nope", 1, 0, 1, func(lid types.Lid, serial types.Serial) error { return nil })
	if err == nil {
		t.Fatal("Populate on an unknown attribute should fail")
	}
}

func TestPopulateMarksStatusDone(t *testing.T) {
	m := newManager(t)
	if err := m.Add(int32Config("a"), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := m.Populate(context.Background(), "a", types.ReservedLid+1, 0, 1, func(lid types.Lid, serial types.Serial) error { return nil })
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	rep, ok := m.Status().Get("a")
	if !ok || rep.Status.String() != "done" {
		t.Fatalf("status after Populate = %+v, want done", rep)
	}
}
