// Package manager implements the attribute manager: the set of
// attribute vectors for one document sub-database, their flush
// targets, reconfiguration against a new collection spec, and a
// read-only view of attributes imported from sibling sub-databases.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vespa-engine/vespa-sub013/config"
	"github.com/vespa-engine/vespa-sub013/directory"
	"github.com/vespa-engine/vespa-sub013/disklayout"
	"github.com/vespa-engine/vespa-sub013/factory"
	"github.com/vespa-engine/vespa-sub013/flush"
	"github.com/vespa-engine/vespa-sub013/initializer"
	"github.com/vespa-engine/vespa-sub013/populator"
	"github.com/vespa-engine/vespa-sub013/specs"
	"github.com/vespa-engine/vespa-sub013/status"
	"github.com/vespa-engine/vespa-sub013/types"
)

// CollectionSpec is the manager's immutable reconfigure input.
type CollectionSpec struct {
	Attributes   []types.AttributeConfig
	DocidLimit   types.Lid
	CurrentSerial types.Serial
}

// Manager owns every native attribute vector for one sub-database.
type Manager struct {
	log    *slog.Logger
	layout *disklayout.Layout
	status *status.Registry

	// enumInterlock serializes the structural phase of enum-store
	// compaction across every vector this manager owns, following
	enumInterlock sync.Mutex

	mu        sync.RWMutex
	vectors   map[string]factory.Vector
	flushes   map[string]*flush.Target
	shrinks   map[string]*flush.ShrinkTarget
	imported  map[string]factory.Vector // read-only, not in flushes/writable lists
	idx       config.IndexSchemaConfig
}

// New creates an empty manager rooted at base, with no attributes.
func New(log *slog.Logger, base string, idx config.IndexSchemaConfig) *Manager {
	return &Manager{
		log:      log,
		layout:   disklayout.New(base),
		status:   status.NewRegistry(),
		vectors:  make(map[string]factory.Vector),
		flushes:  make(map[string]*flush.Target),
		shrinks:  make(map[string]*flush.ShrinkTarget),
		imported: make(map[string]factory.Vector),
		idx:      idx,
	}
}

// Add implements add(spec, serial): create (or load from disk) one
// vector for cfg, registering its flush/shrink targets.
func (m *Manager) Add(cfg types.AttributeConfig, serial types.Serial) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(cfg, serial)
}

func (m *Manager) addLocked(cfg types.AttributeConfig, serial types.Serial) error {
	m.status.Set(cfg.Name, status.Loading)
	v, err := factory.Create(cfg)
	if err != nil {
		// Config error: factory.Create built nothing, so the attribute
		// is not added; the error is logged and returned to the caller.
		m.log.Error("attribute config rejected, skipping", "attribute", cfg.Name, "error", err)
		return err
	}

	dir, err := m.layout.Directory(cfg.Name)
	if err != nil {
		return fmt.Errorf("manager: directory for %q: %w", cfg.Name, err)
	}
	if err := initializer.Init(m.log, dir, cfg.Name, v, serial); err != nil {
		return fmt.Errorf("manager: init %q: %w", cfg.Name, err)
	}

	replayCost := 1
	if cfg.Flags.HNSW != nil {
		replayCost = 400
	}
	m.vectors[cfg.Name] = v
	m.flushes[cfg.Name] = flush.NewTarget(cfg.Name, dir, v, replayCost)
	m.shrinks[cfg.Name] = flush.NewShrinkTarget(cfg.Name, v)
	m.status.Set(cfg.Name, status.Done)
	return nil
}

// GetAttribute implements get_attribute(name): any attribute, native or
// imported.
func (m *Manager) GetAttribute(name string) (factory.Vector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.vectors[name]; ok {
		return v, true
	}
	v, ok := m.imported[name]
	return v, ok
}

// GetWritableAttribute implements get_writable_attribute(name): native
// attributes only, imported attributes are never writable.
func (m *Manager) GetWritableAttribute(name string) (factory.Vector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vectors[name]
	return v, ok
}

// ImportAttribute registers a read-only alias to a vector owned by a
// sibling sub-database's manager, following "Imported attributes".
func (m *Manager) ImportAttribute(name string, v factory.Vector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imported[name] = v
}

// WritableAttributes returns every native vector, the stable list the
// writer package partitions into lanes.
func (m *Manager) WritableAttributes() map[string]factory.Vector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]factory.Vector, len(m.vectors))
	for k, v := range m.vectors {
		out[k] = v
	}
	return out
}

// FlushTargets implements flush_targets(): every native attribute's
// flush and shrink target.
func (m *Manager) FlushTargets() ([]*flush.Target, []*flush.ShrinkTarget) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fs := make([]*flush.Target, 0, len(m.flushes))
	for _, f := range m.flushes {
		fs = append(fs, f)
	}
	ss := make([]*flush.ShrinkTarget, 0, len(m.shrinks))
	for _, s := range m.shrinks {
		ss = append(ss, s)
	}
	return fs, ss
}

// Status returns the live status registry, for the state API's health
// and per-attribute status report.
func (m *Manager) Status() *status.Registry { return m.status }

// Directory returns name's on-disk directory, for maintenance tools
// that need to inspect snapshots directly rather than through a flush
// target.
func (m *Manager) Directory(name string) (*directory.Directory, error) {
	return m.layout.Directory(name)
}

// CompactEnumStores runs fn (a vector's enum-store compaction) under
// the shared interlock, serializing the structural phase across every
// vector this manager owns.
func (m *Manager) CompactEnumStores(fn func()) {
	m.enumInterlock.Lock()
	defer m.enumInterlock.Unlock()
	fn()
}

// AsyncForEachAttribute implements async_for_each_attribute(fn): in
// this implementation each vector's own lane executor (writer package)
// is the actual single-threaded boundary for mutation, so the manager
// itself just fans fn out; callers that need per-vector mutual
// exclusion should submit fn through the writer instead of calling
// this directly from multiple goroutines.
func (m *Manager) AsyncForEachAttribute(fn func(name string, v factory.Vector)) {
	m.mu.RLock()
	snapshot := make(map[string]factory.Vector, len(m.vectors))
	for k, v := range m.vectors {
		snapshot[k] = v
	}
	m.mu.RUnlock()
	for name, v := range snapshot {
		fn(name, v)
	}
}

// AsyncForAttribute implements async_for_attribute(name, fn).
func (m *Manager) AsyncForAttribute(name string, fn func(v factory.Vector)) error {
	v, ok := m.GetWritableAttribute(name)
	if !ok {
		return fmt.Errorf("manager: no writable attribute %q", name)
	}
	fn(v)
	return nil
}

// Reconfig computes the new vector set for newSpec against this
// manager's current state, applying the type-compatibility transfer
// rule: a same-name, type-compatible vector is reused in place (its
// config updated in place isn't modeled here since this
// implementation doesn't mutate Flags post-construction; see
// DESIGN.md); an incompatible or new field is (re)initialized from
// disk or created empty. Fields present in the old manager but absent
// from newSpec are marked removed in the disk layout.
func (m *Manager) Reconfig(ctx context.Context, newSpec CollectionSpec, idxCfg config.IndexSchemaConfig) (*Manager, error) {
	next := &Manager{
		log:      m.log,
		layout:   m.layout, // the disk layout is shared across manager generations; only the vector set changes
		status:   status.NewRegistry(),
		vectors:  make(map[string]factory.Vector),
		flushes:  make(map[string]*flush.Target),
		shrinks:  make(map[string]*flush.ShrinkTarget),
		imported: make(map[string]factory.Vector),
		idx:      idxCfg,
	}

	m.mu.RLock()
	oldConfigs := make(map[string]types.AttributeConfig, len(m.vectors))
	for name, v := range m.vectors {
		oldConfigs[name] = v.Config()
	}
	m.mu.RUnlock()

	seen := make(map[string]bool, len(newSpec.Attributes))
	for _, reqCfg := range newSpec.Attributes {
		seen[reqCfg.Name] = true
		old, hadOld := oldConfigs[reqCfg.Name]
		change := specs.FieldChange{
			Name:           reqCfg.Name,
			New:            &reqCfg,
			HasStringIndex: idxCfg.HasStringIndex(reqCfg.Name),
		}
		if hadOld {
			change.Old = &old
		}
		spec := specs.Build(change)

		m.mu.RLock()
		existing, hasVector := m.vectors[reqCfg.Name]
		m.mu.RUnlock()

		if hasVector && hadOld && types.TypeCompatible(old, spec.Config) {
			next.mu.Lock()
			next.vectors[reqCfg.Name] = existing
			dir, err := next.layout.Directory(reqCfg.Name)
			if err == nil {
				next.flushes[reqCfg.Name] = flush.NewTarget(reqCfg.Name, dir, existing, flushCostFor(spec.Config))
				next.shrinks[reqCfg.Name] = flush.NewShrinkTarget(reqCfg.Name, existing)
			}
			next.mu.Unlock()
			if err != nil {
				return nil, fmt.Errorf("manager: reconfig directory for %q: %w", reqCfg.Name, err)
			}
			continue
		}

		if err := next.Add(spec.Config, newSpec.CurrentSerial); err != nil {
			return nil, err
		}
		if v, ok := next.GetWritableAttribute(reqCfg.Name); ok {
			if err := initializer.ConsiderPadAttribute(v, newSpec.CurrentSerial, newSpec.DocidLimit); err != nil {
				return nil, fmt.Errorf("manager: pad %q: %w", reqCfg.Name, err)
			}
		}
	}

	for name := range oldConfigs {
		if !seen[name] {
			if err := m.layout.Remove(name); err != nil {
				return nil, fmt.Errorf("manager: remove %q: %w", name, err)
			}
		}
	}

	return next, nil
}

func flushCostFor(cfg types.AttributeConfig) int {
	if cfg.Flags.HNSW != nil {
		return 400
	}
	return 1
}

// PruneRemovedFields implements prune_removed_fields(serial): finalizes
// deletion of every attribute directory marked .removed that is not in
// keep.
func (m *Manager) PruneRemovedFields(keepNames []string) error {
	keep := make(map[string]bool, len(keepNames))
	for _, n := range keepNames {
		keep[n] = true
	}
	return m.layout.PruneRemoved(keep)
}

// Populate rebuilds name's content from the document store by way of
// apply (one call per existing document, supplied by the caller since
// reading the document store is outside this package), then flushes
// every native attribute so each one's flushed serial converges on
// configSerial. It is the manager-level entry point the populator
// package's orchestration logic runs under.
func (m *Manager) Populate(ctx context.Context, name string, numDocs types.Lid, initSerial, configSerial types.Serial, apply populator.Apply) error {
	if _, ok := m.GetWritableAttribute(name); !ok {
		return fmt.Errorf("manager: populate: no writable attribute %q", name)
	}
	m.status.Set(name, status.Reprocessing)
	fs, _ := m.FlushTargets()
	if err := populator.Populate(ctx, numDocs, initSerial, configSerial, apply, fs); err != nil {
		return err
	}
	m.status.Set(name, status.Done)
	return nil
}
