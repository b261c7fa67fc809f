package types

import "testing"

func TestTypeCompatible(t *testing.T) {
	base := AttributeConfig{Name: "f", BasicType: BasicTypeInt32, Collection: CollectionSingle}

	tests := []struct {
		name string
		a, b AttributeConfig
		want bool
	}{
		{
			name: "same type different flags is compatible",
			a:    base,
			b:    func() AttributeConfig { c := base; c.Flags.FastAccess = true; return c }(),
			want: true,
		},
		{
			name: "different basic type is incompatible",
			a:    base,
			b:    func() AttributeConfig { c := base; c.BasicType = BasicTypeInt64; return c }(),
			want: false,
		},
		{
			name: "different collection is incompatible",
			a:    base,
			b:    func() AttributeConfig { c := base; c.Collection = CollectionArray; return c }(),
			want: false,
		},
		{
			name: "paged flag change is incompatible",
			a:    base,
			b:    func() AttributeConfig { c := base; c.Flags.Paged = true; return c }(),
			want: false,
		},
		{
			name: "matching tensor type is compatible",
			a:    func() AttributeConfig { c := base; c.BasicType = BasicTypeTensor; c.TensorType = &TensorType{Spec: "tensor(x[4])"}; return c }(),
			b:    func() AttributeConfig { c := base; c.BasicType = BasicTypeTensor; c.TensorType = &TensorType{Spec: "tensor(x[4])"}; return c }(),
			want: true,
		},
		{
			name: "mismatched tensor type is incompatible",
			a:    func() AttributeConfig { c := base; c.BasicType = BasicTypeTensor; c.TensorType = &TensorType{Spec: "tensor(x[4])"}; return c }(),
			b:    func() AttributeConfig { c := base; c.BasicType = BasicTypeTensor; c.TensorType = &TensorType{Spec: "tensor(x[8])"}; return c }(),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeCompatible(tt.a, tt.b); got != tt.want {
				t.Errorf("TypeCompatible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAttributeConfigValidate(t *testing.T) {
	t.Run("empty name fails", func(t *testing.T) {
		c := AttributeConfig{BasicType: BasicTypeInt32}
		if err := c.Validate(); err == nil {
			t.Error("expected error for empty name")
		}
	})

	t.Run("tensor without tensor type fails", func(t *testing.T) {
		c := AttributeConfig{Name: "t", BasicType: BasicTypeTensor}
		if err := c.Validate(); err == nil {
			t.Error("expected error for missing tensor type")
		}
	})

	t.Run("valid single int32 passes", func(t *testing.T) {
		c := AttributeConfig{Name: "n", BasicType: BasicTypeInt32, Collection: CollectionSingle}
		if err := c.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
