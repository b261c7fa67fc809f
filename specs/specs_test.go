package specs

import "github.com/vespa-engine/vespa-sub013/types"

import "testing"

func arrayConfig(name string) types.AttributeConfig {
	return types.AttributeConfig{Name: name, BasicType: types.BasicTypeInt32, Collection: types.CollectionArray}
}

func scalarConfig(name string) types.AttributeConfig {
	return types.AttributeConfig{Name: name, BasicType: types.BasicTypeInt32, Collection: types.CollectionSingle}
}

func TestBuildAddingAttributePassesThrough(t *testing.T) {
	cfg := scalarConfig("f")
	spec := Build(FieldChange{Name: "f", New: &cfg})
	if spec.DelayRemove {
		t.Fatal("adding an attribute aspect must not be delayed")
	}
	if spec.WasAttribute {
		t.Fatal("WasAttribute should be false for a brand new field")
	}
}

func TestBuildRemovingFastPartialUpdateWithoutStringIndexDelays(t *testing.T) {
	old := arrayConfig("f")
	spec := Build(FieldChange{Name: "f", Old: &old, HasStringIndex: false})
	if !spec.DelayRemove {
		t.Fatal("removing the attribute aspect from an array without a string index must delay")
	}
	if spec.Config.Collection != types.CollectionArray {
		t.Fatalf("delayed removal must keep serving the old config, got %v", spec.Config)
	}
}

func TestBuildRemovingWithStringIndexPassesThrough(t *testing.T) {
	old := arrayConfig("f")
	spec := Build(FieldChange{Name: "f", Old: &old, HasStringIndex: true})
	if spec.DelayRemove {
		t.Fatal("removal with a string index present should not need to delay")
	}
}

func TestBuildRemovingScalarNeverDelays(t *testing.T) {
	old := scalarConfig("f")
	spec := Build(FieldChange{Name: "f", Old: &old, HasStringIndex: false})
	if spec.DelayRemove {
		t.Fatal("a scalar field has no fast-partial-update path, so removal should never delay")
	}
}

func TestBuildFlippingFastAccessTrueToFalseDelays(t *testing.T) {
	old := scalarConfig("f")
	old.Flags.FastAccess = true
	next := scalarConfig("f")
	next.Flags.FastAccess = false

	spec := Build(FieldChange{Name: "f", Old: &old, New: &next})
	if !spec.Config.Flags.FastAccess {
		t.Fatal("flipping fast_access true->false must be delayed, keeping it true for this step")
	}
}

func TestBuildFlippingFastAccessFalseToTruePassesThrough(t *testing.T) {
	old := scalarConfig("f")
	old.Flags.FastAccess = false
	next := scalarConfig("f")
	next.Flags.FastAccess = true

	spec := Build(FieldChange{Name: "f", Old: &old, New: &next})
	if !spec.Config.Flags.FastAccess {
		t.Fatal("flipping fast_access false->true should apply immediately")
	}
}
