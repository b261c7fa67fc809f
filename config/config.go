// Package config loads the YAML configuration the manager reads at
// startup: attributes.cfg, indexschema.cfg, the alloc config and the
// threading-service config. Real deployments source these from a
// central config framework; this package gives a plain file-based
// equivalent for standalone operation and tests.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vespa-engine/vespa-sub013/types"
)

// AttributesConfig is attributes.cfg: the declared field list.
type AttributesConfig struct {
	Attributes []AttributeEntry `yaml:"attributes"`
}

// AttributeEntry mirrors one field of attributes.cfg.
type AttributeEntry struct {
	Name              string  `yaml:"name"`
	DataType          string  `yaml:"data_type"`
	Collection        string  `yaml:"collection"`
	FastSearch        bool    `yaml:"fast_search"`
	FastAccess        bool    `yaml:"fast_access"`
	Paged             bool    `yaml:"paged"`
	Enumerated        bool    `yaml:"enumerated"`
	Cased             bool    `yaml:"cased"`
	CreateIfNonExistent bool  `yaml:"create_if_nonexistent"`
	RemoveIfZero      bool    `yaml:"remove_if_zero"`
	TensorType        string  `yaml:"tensor_type,omitempty"`
	PredicateArity    int     `yaml:"predicate_arity,omitempty"`
	PredicateLower    int64   `yaml:"predicate_lower_bound,omitempty"`
	PredicateUpper    int64   `yaml:"predicate_upper_bound,omitempty"`
}

// ToAttributeConfig converts one declared entry into the runtime
// AttributeConfig the factory consumes.
func (e AttributeEntry) ToAttributeConfig() (types.AttributeConfig, error) {
	basic, err := parseBasicType(e.DataType)
	if err != nil {
		return types.AttributeConfig{}, err
	}
	collection, err := parseCollection(e.Collection)
	if err != nil {
		return types.AttributeConfig{}, err
	}
	cfg := types.AttributeConfig{
		Name:       e.Name,
		BasicType:  basic,
		Collection: collection,
		WeightedSet: types.WeightedSetFlags{
			CreateIfNonExistent: e.CreateIfNonExistent,
			RemoveIfZero:        e.RemoveIfZero,
		},
		Flags: types.Flags{
			FastSearch: e.FastSearch,
			FastAccess: e.FastAccess,
			Paged:      e.Paged,
			Enumerated: e.Enumerated,
			Cased:      e.Cased,
			Grow:       types.DefaultGrowStrategy(),
		},
	}
	if basic == types.BasicTypeTensor {
		cfg.TensorType = &types.TensorType{Spec: e.TensorType}
	}
	if basic == types.BasicTypePredicate {
		cfg.PredicateParams = &types.PredicateParams{
			Arity: e.PredicateArity, LowerBound: e.PredicateLower, UpperBound: e.PredicateUpper,
		}
	}
	return cfg, cfg.Validate()
}

func parseBasicType(s string) (types.BasicType, error) {
	switch s {
	case "bool":
		return types.BasicTypeBool, nil
	case "uint2":
		return types.BasicTypeUint2, nil
	case "uint4":
		return types.BasicTypeUint4, nil
	case "int8", "byte":
		return types.BasicTypeInt8, nil
	case "int16":
		return types.BasicTypeInt16, nil
	case "int32", "integer":
		return types.BasicTypeInt32, nil
	case "int64", "long":
		return types.BasicTypeInt64, nil
	case "float":
		return types.BasicTypeFloat, nil
	case "double":
		return types.BasicTypeDouble, nil
	case "string":
		return types.BasicTypeString, nil
	case "predicate":
		return types.BasicTypePredicate, nil
	case "tensor":
		return types.BasicTypeTensor, nil
	case "reference":
		return types.BasicTypeReference, nil
	default:
		return 0, fmt.Errorf("config: unknown data_type %q", s)
	}
}

func parseCollection(s string) (types.CollectionKind, error) {
	switch s {
	case "", "single":
		return types.CollectionSingle, nil
	case "array":
		return types.CollectionArray, nil
	case "weighted_set":
		return types.CollectionWeightedSet, nil
	default:
		return 0, fmt.Errorf("config: unknown collection %q", s)
	}
}

// IndexSchemaConfig is indexschema.cfg: fields with a string index,
// consulted by the delayed-aspect rule (specs.Build's HasStringIndex).
type IndexSchemaConfig struct {
	IndexFields []string `yaml:"index_fields"`
}

func (c IndexSchemaConfig) HasStringIndex(field string) bool {
	for _, f := range c.IndexFields {
		if f == field {
			return true
		}
	}
	return false
}

// AllocConfig configures value-storage growth and compaction thresholds.
type AllocConfig struct {
	InitialDocs              uint32  `yaml:"initial_docs"`
	GrowFactor               float64 `yaml:"grow_factor"`
	GrowBias                 uint32  `yaml:"grow_bias"`
	MultiValueGrowFactor     float64 `yaml:"multi_value_grow_factor"`
	MaxDeadRatio             float64 `yaml:"max_dead_ratio"`
	MaxDeadAddressSpaceRatio float64 `yaml:"max_dead_address_space_ratio"`
	ActiveBufferRatio        float64 `yaml:"active_buffer_ratio"`
	AmortizeCount            uint32  `yaml:"amortize_count"`
	Redundancy               int     `yaml:"redundancy"`
	SearchableCopies         int     `yaml:"searchable_copies"`
}

func DefaultAllocConfig() AllocConfig {
	return AllocConfig{
		InitialDocs: 1024, GrowFactor: 1.25, GrowBias: 0, MultiValueGrowFactor: 1.25,
		MaxDeadRatio: 0.25, MaxDeadAddressSpaceRatio: 0.5, ActiveBufferRatio: 0.5,
		AmortizeCount: 10000, Redundancy: 1, SearchableCopies: 1,
	}
}

// ThreadingServiceConfig configures the field-writer executor.
type ThreadingServiceConfig struct {
	IndexingThreads   int    `yaml:"indexing_threads"`
	MasterTaskLimit   int    `yaml:"master_task_limit"`
	DefaultTaskLimit  int    `yaml:"default_task_limit"` // negative = hard limit
	Optimize          string `yaml:"optimize"`            // latency | throughput | adaptive
	Watermark         float64 `yaml:"watermark"`
	ReactionTime      string `yaml:"reaction_time"`
}

func DefaultThreadingServiceConfig() ThreadingServiceConfig {
	return ThreadingServiceConfig{
		IndexingThreads: 4, MasterTaskLimit: 1000, DefaultTaskLimit: 200,
		Optimize: "throughput", Watermark: 0.8, ReactionTime: "1s",
	}
}

// Load reads and YAML-decodes any of the config structs above from
// path.
func Load[T any](path string) (T, error) {
	var out T
	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return out, nil
}
