// Package factory implements the attribute factory of this subsystem: it
// turns an AttributeConfig into the correctly-typed attribute.Typed[T]
// instance, a dispatch Go's generics need at compile time since T
// cannot be chosen from a runtime BasicType value directly.
package factory

import (
	"bytes"
	"fmt"

	"github.com/vespa-engine/vespa-sub013/attribute"
	"github.com/vespa-engine/vespa-sub013/internal/enumstore"
	"github.com/vespa-engine/vespa-sub013/types"
)

// Vector is the type-erased surface the manager and writer hold. Every
// attribute.Typed[T] satisfies it; committing, reclaiming and lid-space
// operations don't need to know T.
type Vector interface {
	Name() string
	Config() types.AttributeConfig
	NumDocs() types.Lid
	CommittedDocidLimit() types.Lid
	LastSerial() types.Serial
	AddDoc() types.Lid
	Clear(serial types.Serial, lid types.Lid) error
	Commit(serial types.Serial) error
	CommitIfChangeVectorTooLarge() bool
	ReclaimUnusedMemory() int
	CompactLidSpace(limit types.Lid) error
	ShrinkLidSpace() bool
	ExportBytes() ([]byte, error)
	ImportBytes(data []byte) error
}

// Create builds a brand-new, empty attribute vector for config, boxed
// behind the Vector interface. The concrete *attribute.Typed[T] is
// still reachable via a type assertion to *attribute.Typed[T] when a
// caller needs the typed Put/Update/Get API.
func Create(config types.AttributeConfig) (Vector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	grow := config.Flags.Grow
	autoCommit := 0
	if grow.InitialCapacity > 0 {
		autoCommit = int(grow.InitialCapacity) * 64 // bytes; a coarse default, overridable via config in a later revision
	}

	switch config.BasicType {
	case types.BasicTypeBool:
		var less func(a, b bool) bool
		if config.Flags.Enumerated || config.Flags.FastSearch {
			less = boolLess
		}
		return attribute.New[bool](config.Name, config, attribute.Options[bool]{
			Ops: attribute.BoolOps, Less: less, AutoCommitMax: autoCommit,
		}), nil
	case types.BasicTypeInt8:
		return newNumeric[int8](config, attribute.Int8Ops, autoCommit), nil
	case types.BasicTypeInt16:
		return newNumeric[int16](config, attribute.Int16Ops, autoCommit), nil
	case types.BasicTypeUint2, types.BasicTypeUint4, types.BasicTypeInt32:
		return newNumeric[int32](config, attribute.Int32Ops, autoCommit), nil
	case types.BasicTypeInt64:
		return newNumeric[int64](config, attribute.Int64Ops, autoCommit), nil
	case types.BasicTypeFloat:
		return newNumeric[float32](config, attribute.Float32Ops, autoCommit), nil
	case types.BasicTypeDouble:
		return newNumeric[float64](config, attribute.Float64Ops, autoCommit), nil
	case types.BasicTypeString:
		return newString(config, autoCommit), nil
	case types.BasicTypeTensor, types.BasicTypePredicate, types.BasicTypeReference:
		// These three are carried as opaque byte blobs: no decoded
		// arithmetic, no tensor math, no predicate evaluation (all
		// explicitly out of scope), just the same columnar
		// store/commit/flush/reload lifecycle every other basic type
		// gets, with byte-equality for exact-match queries.
		return newOpaque(config, autoCommit), nil
	default:
		return nil, fmt.Errorf("factory: basic type %s is not yet supported by this attribute store", config.BasicType)
	}
}

func newOpaque(config types.AttributeConfig, autoCommit int) Vector {
	var less func(a, b []byte) bool
	if config.Flags.Enumerated || config.Flags.FastSearch {
		less = func(a, b []byte) bool { return bytes.Compare(a, b) < 0 }
	}
	return attribute.New[[]byte](config.Name, config, attribute.Options[[]byte]{
		Less:          less,
		AutoCommitMax: autoCommit,
		QueryEq:       bytes.Equal,
	})
}

func numericLess[T interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}](a, b T) bool {
	return a < b
}

func boolLess(a, b bool) bool { return !a && b }

func newNumeric[T interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}](config types.AttributeConfig, ops attribute.NumericOps[T], autoCommit int) Vector {
	var less func(a, b T) bool
	if config.Flags.Enumerated || config.Flags.FastSearch {
		less = numericLess[T]
	}
	return attribute.New[T](config.Name, config, attribute.Options[T]{
		Ops: ops, Less: less, AutoCommitMax: autoCommit,
	})
}

func newString(config types.AttributeConfig, autoCommit int) Vector {
	order := enumstore.FoldedLess
	queryEq := func(a, b string) bool { return enumstore.Fold(a) == enumstore.Fold(b) }
	if config.Flags.Cased {
		order = enumstore.CasedLess
		queryEq = func(a, b string) bool { return a == b }
	}
	return attribute.New[string](config.Name, config, attribute.Options[string]{
		Less:          order,
		AutoCommitMax: autoCommit,
		ToText:        func(s string) string { return s },
		FromText:      func(s string) string { return s },
		QueryEq:       queryEq,
	})
}
