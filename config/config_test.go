package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vespa-engine/vespa-sub013/types"
)

func TestLoadRoundTripsAttributesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attributes.cfg")
	yaml := `
attributes:
  - name: title
    data_type: string
    fast_search: true
    enumerated: true
  - name: price
    data_type: double
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load[AttributesConfig](path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Attributes) != 2 {
		t.Fatalf("Attributes = %v, want 2 entries", cfg.Attributes)
	}
	if cfg.Attributes[0].Name != "title" || !cfg.Attributes[0].FastSearch {
		t.Fatalf("Attributes[0] = %+v, want name=title fast_search=true", cfg.Attributes[0])
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load[AttributesConfig]("/nonexistent/attributes.cfg"); err == nil {
		t.Fatal("Load on a missing file should return an error")
	}
}

func TestToAttributeConfigConvertsFields(t *testing.T) {
	entry := AttributeEntry{Name: "title", DataType: "string", Collection: "array", FastSearch: true}
	cfg, err := entry.ToAttributeConfig()
	if err != nil {
		t.Fatalf("ToAttributeConfig: %v", err)
	}
	if cfg.BasicType != types.BasicTypeString || cfg.Collection != types.CollectionArray {
		t.Fatalf("cfg = %+v, want string/array", cfg)
	}
	if !cfg.Flags.FastSearch {
		t.Fatal("FastSearch flag should carry through")
	}
}

func TestToAttributeConfigRejectsUnknownDataType(t *testing.T) {
	entry := AttributeEntry{Name: "x", DataType: "nonsense"}
	if _, err := entry.ToAttributeConfig(); err == nil {
		t.Fatal("an unknown data_type should be rejected")
	}
}

func TestToAttributeConfigTensorCarriesSpec(t *testing.T) {
	entry := AttributeEntry{Name: "v", DataType: "tensor", TensorType: "tensor(x[4])"}
	cfg, err := entry.ToAttributeConfig()
	if err != nil {
		t.Fatalf("ToAttributeConfig: %v", err)
	}
	if cfg.TensorType == nil || cfg.TensorType.Spec != "tensor(x[4])" {
		t.Fatalf("TensorType = %v, want tensor(x[4])", cfg.TensorType)
	}
}

func TestIndexSchemaHasStringIndex(t *testing.T) {
	cfg := IndexSchemaConfig{IndexFields: []string{"title", "body"}}
	if !cfg.HasStringIndex("title") {
		t.Fatal("HasStringIndex(title) should be true")
	}
	if cfg.HasStringIndex("price") {
		t.Fatal("HasStringIndex(price) should be false")
	}
}
