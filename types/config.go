package types

import "fmt"

// BasicType is the scalar value type carried by one attribute.
type BasicType int

const (
	BasicTypeBool BasicType = iota
	BasicTypeUint2
	BasicTypeUint4
	BasicTypeInt8
	BasicTypeInt16
	BasicTypeInt32
	BasicTypeInt64
	BasicTypeFloat
	BasicTypeDouble
	BasicTypeString
	BasicTypePredicate
	BasicTypeTensor
	BasicTypeReference
)

func (t BasicType) String() string {
	switch t {
	case BasicTypeBool:
		return "bool"
	case BasicTypeUint2:
		return "uint2"
	case BasicTypeUint4:
		return "uint4"
	case BasicTypeInt8:
		return "int8"
	case BasicTypeInt16:
		return "int16"
	case BasicTypeInt32:
		return "int32"
	case BasicTypeInt64:
		return "int64"
	case BasicTypeFloat:
		return "float"
	case BasicTypeDouble:
		return "double"
	case BasicTypeString:
		return "string"
	case BasicTypePredicate:
		return "predicate"
	case BasicTypeTensor:
		return "tensor"
	case BasicTypeReference:
		return "reference"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether the type is ordered as a number, as opposed
// to a string, predicate or tensor which need their own comparators.
func (t BasicType) IsNumeric() bool {
	switch t {
	case BasicTypeBool, BasicTypeUint2, BasicTypeUint4, BasicTypeInt8, BasicTypeInt16,
		BasicTypeInt32, BasicTypeInt64, BasicTypeFloat, BasicTypeDouble:
		return true
	default:
		return false
	}
}

// CollectionKind is the shape in which values are stored per document.
type CollectionKind int

const (
	CollectionSingle CollectionKind = iota
	CollectionArray
	CollectionWeightedSet
)

func (k CollectionKind) String() string {
	switch k {
	case CollectionSingle:
		return "single"
	case CollectionArray:
		return "array"
	case CollectionWeightedSet:
		return "weighted_set"
	default:
		return "unknown"
	}
}

// IsMultiValue reports whether lids map to more than one value.
func (k CollectionKind) IsMultiValue() bool {
	return k != CollectionSingle
}

// WeightedSetFlags only matters when Collection == CollectionWeightedSet.
type WeightedSetFlags struct {
	CreateIfNonExistent bool
	RemoveIfZero        bool
}

// GrowStrategy controls how value storage arrays grow.
type GrowStrategy struct {
	InitialCapacity uint32
	GrowFactor      float64
	GrowBias        uint32
}

// DefaultGrowStrategy mirrors typical alloc config defaults.
func DefaultGrowStrategy() GrowStrategy {
	return GrowStrategy{InitialCapacity: 1024, GrowFactor: 1.25, GrowBias: 0}
}

// CompactionStrategy bounds dead-space ratios before a compaction is due.
type CompactionStrategy struct {
	MaxDeadRatio             float64
	MaxDeadAddressSpaceRatio float64
}

// TensorType and PredicateParams are opaque here: tensor math and
// predicate evaluation are external collaborators. Only
// enough of each is kept here to decide type-compatibility.
type TensorType struct {
	Spec string
}

type PredicateParams struct {
	Arity      int
	LowerBound int64
	UpperBound int64
}

// Flags collects the boolean/aux aspects of a field's configuration.
type Flags struct {
	FastSearch bool
	FastAccess bool
	Paged      bool
	Enumerated bool
	Cased      bool
	Grow       GrowStrategy
	Compaction CompactionStrategy
	HNSW       *HNSWParams
}

// HNSWParams configures the multi-threaded index builder used by dense
// tensor fields. Its presence is what routes a field to a dedicated
// two-phase write context.
type HNSWParams struct {
	MaxLinksPerNode int
	EfConstruction  int
}

// AttributeConfig fully describes one field.
type AttributeConfig struct {
	Name            string
	BasicType       BasicType
	Collection      CollectionKind
	WeightedSet     WeightedSetFlags
	Flags           Flags
	TensorType      *TensorType
	PredicateParams *PredicateParams
}

// TypeCompatible implements the type-compatibility rule: two
// configs are compatible iff basic_type, collection, tensor_type (if
// tensor) and predicate_params (if predicate) match and `paged` is
// unchanged (see RequiresStructuralReload). Other flags and the grow
// strategy may differ and still permit a live transfer.
func TypeCompatible(a, b AttributeConfig) bool {
	if a.BasicType != b.BasicType || a.Collection != b.Collection {
		return false
	}
	if RequiresStructuralReload(a, b) {
		return false
	}
	if a.BasicType == BasicTypeTensor {
		if (a.TensorType == nil) != (b.TensorType == nil) {
			return false
		}
		if a.TensorType != nil && a.TensorType.Spec != b.TensorType.Spec {
			return false
		}
	}
	if a.BasicType == BasicTypePredicate {
		if (a.PredicateParams == nil) != (b.PredicateParams == nil) {
			return false
		}
		if a.PredicateParams != nil && *a.PredicateParams != *b.PredicateParams {
			return false
		}
	}
	return true
}

// RequiresStructuralReload reports whether `paged` differs between two
// configs. A `paged` change is treated as type-incompatible (forces a
// reload) rather than a live transfer.
func RequiresStructuralReload(a, b AttributeConfig) bool {
	return a.Flags.Paged != b.Flags.Paged
}

// Validate performs the cheap structural checks that should fail fast
// before a vector is constructed from this config.
func (c AttributeConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("attribute config: name must not be empty")
	}
	if c.BasicType == BasicTypeTensor && c.TensorType == nil {
		return fmt.Errorf("attribute config %q: tensor type requires TensorType", c.Name)
	}
	if c.BasicType == BasicTypePredicate && c.PredicateParams == nil {
		return fmt.Errorf("attribute config %q: predicate type requires PredicateParams", c.Name)
	}
	if c.Collection == CollectionWeightedSet && c.BasicType == BasicTypeTensor {
		return fmt.Errorf("attribute config %q: weighted_set collection is not valid for tensor", c.Name)
	}
	return nil
}
