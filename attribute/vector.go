// Package attribute implements one field's value storage plus optional
// enum store, change queue and search API. Typed[T] is the shared base
// for every basic type: whether it's backed by single-value or
// multi-value storage is decided once at construction time from the
// field's collection type. The factory package boxes *Typed[T] behind
// a type-erased interface so the manager and writer don't need to know
// T.
package attribute

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vespa-engine/vespa-sub013/internal/enumstore"
	"github.com/vespa-engine/vespa-sub013/internal/genguard"
	"github.com/vespa-engine/vespa-sub013/internal/multivalue"
	"github.com/vespa-engine/vespa-sub013/internal/valuestore"
	"github.com/vespa-engine/vespa-sub013/types"
)

// ValueUpdateKind selects which update(lid, value_update) variant to
// apply.
type ValueUpdateKind int

const (
	UpdateAssign ValueUpdateKind = iota
	UpdateArithAdd
	UpdateArithSub
	UpdateArithMul
	UpdateArithDiv
	UpdateWeightIncrease
	UpdateWeightMul
	UpdateWeightDiv
	UpdateWeightSet
)

// ValueUpdate[T] is the attribute-typed form of an update operation.
type ValueUpdate[T any] struct {
	Kind ValueUpdateKind

	// UpdateAssign
	AssignValue T

	// UpdateArith*: operand of the arithmetic op
	Arg float64

	// UpdateWeight*: the element being adjusted, and the op's argument
	MatchValue  T
	WeightArg   int32
}

type opKind int

const (
	opPut opKind = iota
	opPutMulti
	opUpdate
	opClear
	opAppend
	opRemove
)

type pendingOp[T any] struct {
	serial  types.Serial
	kind    opKind
	lid     types.Lid
	value   T
	values  []T
	weights []int32
	update  ValueUpdate[T]
	weight  int32
}

// Typed is the generic engine behind every basic attribute type. T is
// the Go representation of one attribute value (int32, string, float64,
// ...); multi-value collections store []multivalue.Element[T] per lid
// instead.
type Typed[T any] struct {
	name   string
	config types.AttributeConfig

	gen *genguard.Holder

	ops  NumericOps[T]    // nil for non-arithmetic types (string, predicate, tensor, reference)
	less func(a, b T) bool // total order, used by range queries and the enum store

	toText   func(T) string
	fromText func(string) T
	queryEq  func(a, b T) bool

	single *valuestore.Store[T]
	multi  *multivalue.Store[T]

	enums    *enumstore.Store[T] // non-nil iff config.Flags.Enumerated
	postings *postingIndex        // non-nil iff config.Flags.FastSearch

	mu            sync.Mutex
	pending       []pendingOp[T]
	pendingBytes  int
	autoCommitMax int

	numDocs      atomic.Uint32
	lastSerial   atomic.Uint64
	createSerial types.Serial

	divideByZeroDrops atomic.Uint64
	shrinkPending     atomic.Bool
}

// Options configures a new Typed[T] vector. Ops and Less may be nil for
// value types that don't support arithmetic or ordering respectively
// (tensor and predicate attributes, whose search/arithmetic semantics
// are delegated to an external codec and match engine).
type Options[T any] struct {
	Ops           NumericOps[T]
	Less          func(a, b T) bool
	Default       T
	AutoCommitMax int // commit_if_change_vector_too_large threshold; 0 disables

	// ToText/FromText are set for string-valued attributes only, letting
	// the search context run prefix/regex/fuzzy matching without a type
	// assertion on T. Left nil for every other basic type.
	ToText   func(T) string
	FromText func(string) T

	// QueryEq is the equality a search term uses to match a stored
	// value. It defaults to the order-induced equality (exact, raw) when
	// nil; string attributes pass a fold-aware equality here so an
	// uncased exact/prefix query matches regardless of letter case even
	// though distinct-case values keep separate enum ids and storage.
	QueryEq func(a, b T) bool
}

// New creates an empty attribute vector, with reserved lid 0 already
// present.
func New[T any](name string, config types.AttributeConfig, opts Options[T]) *Typed[T] {
	gen := genguard.New()
	v := &Typed[T]{
		name:          name,
		config:        config,
		gen:           gen,
		ops:           opts.Ops,
		less:          opts.Less,
		autoCommitMax: opts.AutoCommitMax,
		toText:        opts.ToText,
		fromText:      opts.FromText,
		queryEq:       opts.QueryEq,
	}
	if config.Collection.IsMultiValue() {
		v.multi = multivalue.New[T](gen, config.Flags.Grow.InitialCapacity)
	} else {
		v.single = valuestore.New[T](gen, opts.Default, config.Flags.Grow.InitialCapacity)
	}
	if config.Flags.Enumerated {
		if opts.Less == nil {
			panic(fmt.Sprintf("attribute %q: enumerated requires an ordering", name))
		}
		v.enums = enumstore.New[T](gen, opts.Less)
	}
	if config.Flags.FastSearch {
		v.postings = newPostingIndex()
	}
	v.numDocs.Store(1) // reserved lid 0
	return v
}

func (v *Typed[T]) Name() string                    { return v.name }
func (v *Typed[T]) Config() types.AttributeConfig    { return v.config }
func (v *Typed[T]) NumDocs() types.Lid              { return types.Lid(v.numDocs.Load()) }
func (v *Typed[T]) LastSerial() types.Serial        { return types.Serial(v.lastSerial.Load()) }
func (v *Typed[T]) CreateSerial() types.Serial      { return v.createSerial }
func (v *Typed[T]) DivideByZeroDrops() uint64       { return v.divideByZeroDrops.Load() }

// CommittedDocidLimit is the highest lid safely visible to readers
// (an invariant: always <= NumDocs).
func (v *Typed[T]) CommittedDocidLimit() types.Lid {
	if v.multi != nil {
		return v.multi.CommittedDocidLimit()
	}
	return v.single.CommittedDocidLimit()
}

// AddDoc allocates a new lid at or above num_docs, growing storage as
// needed. It is not part of the change queue: num_docs may run ahead of
// committed_docid_limit while a writer is in progress.
func (v *Typed[T]) AddDoc() types.Lid {
	lid := types.Lid(v.numDocs.Add(1) - 1)
	if v.multi != nil {
		v.multi.EnsureCapacity(lid)
	} else {
		v.single.EnsureCapacity(lid)
	}
	return lid
}

func (v *Typed[T]) enqueue(op pendingOp[T]) error {
	if op.lid == types.ReservedLid {
		return fmt.Errorf("attribute %q: lid 0 is reserved", v.name)
	}
	v.mu.Lock()
	v.pending = append(v.pending, op)
	v.pendingBytes += pendingOpSize(op)
	v.mu.Unlock()
	return nil
}

func pendingOpSize[T any](op pendingOp[T]) int {
	return 32 + len(op.values)*16 // a rough, constant-per-element estimate
}

// Put enqueues `put(lid, value)`.
func (v *Typed[T]) Put(serial types.Serial, lid types.Lid, value T) error {
	if v.multi != nil {
		return fmt.Errorf("attribute %q: Put is for single-value collections, use PutMulti", v.name)
	}
	return v.enqueue(pendingOp[T]{serial: serial, kind: opPut, lid: lid, value: value})
}

// PutMulti enqueues `put(lid, values[, weights])` for array/weighted_set
// collections.
func (v *Typed[T]) PutMulti(serial types.Serial, lid types.Lid, values []T, weights []int32) error {
	if v.multi == nil {
		return fmt.Errorf("attribute %q: PutMulti is for multi-value collections, use Put", v.name)
	}
	if weights != nil && len(weights) != len(values) {
		return fmt.Errorf("attribute %q: weights length %d != values length %d", v.name, len(weights), len(values))
	}
	vs := make([]T, len(values))
	copy(vs, values)
	var ws []int32
	if weights != nil {
		ws = make([]int32, len(weights))
		copy(ws, weights)
	} else {
		ws = make([]int32, len(values))
		for i := range ws {
			ws[i] = 1
		}
	}
	return v.enqueue(pendingOp[T]{serial: serial, kind: opPutMulti, lid: lid, values: vs, weights: ws})
}

// Update enqueues `update(lid, value_update)`.
func (v *Typed[T]) Update(serial types.Serial, lid types.Lid, upd ValueUpdate[T]) error {
	return v.enqueue(pendingOp[T]{serial: serial, kind: opUpdate, lid: lid, update: upd})
}

// Clear enqueues `clear(lid)`.
func (v *Typed[T]) Clear(serial types.Serial, lid types.Lid) error {
	return v.enqueue(pendingOp[T]{serial: serial, kind: opClear, lid: lid})
}

// Append enqueues `append(lid, value, weight)` (multi-value only).
func (v *Typed[T]) Append(serial types.Serial, lid types.Lid, value T, weight int32) error {
	if v.multi == nil {
		return fmt.Errorf("attribute %q: append is multi-value only", v.name)
	}
	return v.enqueue(pendingOp[T]{serial: serial, kind: opAppend, lid: lid, value: value, weight: weight})
}

// Remove enqueues `remove(lid, value)` (multi-value only).
func (v *Typed[T]) Remove(serial types.Serial, lid types.Lid, value T) error {
	if v.multi == nil {
		return fmt.Errorf("attribute %q: remove is multi-value only", v.name)
	}
	return v.enqueue(pendingOp[T]{serial: serial, kind: opRemove, lid: lid, value: value})
}

// CommitIfChangeVectorTooLarge implements the bounded auto-commit:
// when the pending queue has grown past the configured bound, it
// commits up to the highest serial currently buffered, so the set of
// observable commits is unaffected (only their granularity is), which
// preserves commit monotonicity.
func (v *Typed[T]) CommitIfChangeVectorTooLarge() bool {
	if v.autoCommitMax <= 0 {
		return false
	}
	v.mu.Lock()
	tooLarge := v.pendingBytes > v.autoCommitMax
	var maxSerial types.Serial
	for _, op := range v.pending {
		if op.serial > maxSerial {
			maxSerial = op.serial
		}
	}
	v.mu.Unlock()
	if !tooLarge || maxSerial == 0 {
		return false
	}
	_ = v.Commit(maxSerial)
	return true
}

// Commit implements `commit(serial)`: atomically applies the entire
// change queue up to this point. If serial <= last_serial the commit is
// a no-op, which makes replaying the same commit twice after a restart
// harmless.
func (v *Typed[T]) Commit(serial types.Serial) error {
	v.mu.Lock()
	if serial != 0 && uint64(serial) <= v.lastSerial.Load() {
		v.mu.Unlock()
		return nil
	}
	ops := v.pending
	v.pending = nil
	v.pendingBytes = 0
	v.mu.Unlock()

	maxLid := types.ReservedLid
	for _, op := range ops {
		v.applyOp(op)
		if op.lid > maxLid {
			maxLid = op.lid
		}
	}

	newLimit := v.CommittedDocidLimit()
	if maxLid+1 > newLimit {
		newLimit = maxLid + 1
	}
	if nd := v.NumDocs(); newLimit > nd {
		newLimit = nd
	}
	if v.multi != nil {
		v.multi.Publish(newLimit)
	} else {
		v.single.Publish(newLimit)
	}

	if serial != 0 {
		v.lastSerial.Store(uint64(serial))
	}
	return nil
}

func (v *Typed[T]) applyOp(op pendingOp[T]) {
	switch op.kind {
	case opPut:
		v.applyPut(op.lid, op.value)
	case opPutMulti:
		v.applyPutMulti(op.lid, op.values, op.weights)
	case opUpdate:
		v.applyUpdate(op.lid, op.update)
	case opClear:
		v.applyClear(op.lid)
	case opAppend:
		v.applyAppend(op.lid, op.value, op.weight)
	case opRemove:
		v.applyRemove(op.lid, op.value)
	}
}

func (v *Typed[T]) applyPut(lid types.Lid, value T) {
	v.single.EnsureCapacity(lid)
	old := v.single.Get(lid)
	v.single.Set(lid, value)
	v.onValueChanged(lid, old, value)
}

func (v *Typed[T]) applyPutMulti(lid types.Lid, values []T, weights []int32) {
	v.multi.EnsureCapacity(lid)
	old := v.multi.Get(lid)
	elems := make([]multivalue.Element[T], len(values))
	for i := range values {
		elems[i] = multivalue.Element[T]{Value: values[i], Weight: weights[i]}
	}
	v.multi.Set(lid, elems)
	v.onMultiChanged(lid, old, elems)
}

func (v *Typed[T]) applyClear(lid types.Lid) {
	if v.multi != nil {
		old := v.multi.Get(lid)
		v.multi.Clear(lid)
		v.onMultiChanged(lid, old, nil)
		return
	}
	old := v.single.Get(lid)
	v.single.Clear(lid)
	v.onValueChanged(lid, old, v.single.Default())
}

func (v *Typed[T]) applyAppend(lid types.Lid, value T, weight int32) {
	v.multi.EnsureCapacity(lid)
	old := v.multi.Get(lid)
	if v.config.Collection == types.CollectionWeightedSet {
		v.multi.AppendWeightedSet(lid, value, weight, v.config.WeightedSet.CreateIfNonExistent, v.config.WeightedSet.RemoveIfZero, v.eq())
	} else {
		v.multi.AppendArray(lid, value, weight)
	}
	v.onMultiChanged(lid, old, v.multi.Get(lid))
}

func (v *Typed[T]) applyRemove(lid types.Lid, value T) {
	old := v.multi.Get(lid)
	v.multi.Remove(lid, value, v.eq())
	v.onMultiChanged(lid, old, v.multi.Get(lid))
}

func (v *Typed[T]) applyUpdate(lid types.Lid, upd ValueUpdate[T]) {
	switch upd.Kind {
	case UpdateAssign:
		if v.multi != nil {
			v.applyPutMulti(lid, []T{upd.AssignValue}, []int32{1})
		} else {
			v.applyPut(lid, upd.AssignValue)
		}
	case UpdateArithAdd, UpdateArithSub, UpdateArithMul, UpdateArithDiv:
		v.applyArith(lid, upd)
	case UpdateWeightIncrease, UpdateWeightMul, UpdateWeightDiv, UpdateWeightSet:
		v.applyWeightAdjust(lid, upd)
	}
}

func (v *Typed[T]) applyArith(lid types.Lid, upd ValueUpdate[T]) {
	if v.ops == nil || v.multi != nil {
		return // arithmetic only defined for single-value numeric attributes
	}
	cur := v.single.Get(lid)
	arg := v.ops.FromFloat(upd.Arg)
	var next T
	switch upd.Kind {
	case UpdateArithAdd:
		next = v.ops.Add(cur, arg)
	case UpdateArithSub:
		next = v.ops.Sub(cur, arg)
	case UpdateArithMul:
		next = v.ops.Mul(cur, arg)
	case UpdateArithDiv:
		if upd.Arg == 0 && isIntegral(v.config.BasicType) {
			v.divideByZeroDrops.Add(1)
			return
		}
		next = v.ops.Div(cur, arg)
	}
	v.applyPut(lid, next)
}

func isIntegral(t types.BasicType) bool {
	switch t {
	case types.BasicTypeFloat, types.BasicTypeDouble:
		return false
	default:
		return true
	}
}

func (v *Typed[T]) applyWeightAdjust(lid types.Lid, upd ValueUpdate[T]) {
	if v.multi == nil {
		return
	}
	removeIfZero := v.config.WeightedSet.RemoveIfZero
	old := v.multi.Get(lid)
	switch upd.Kind {
	case UpdateWeightSet:
		v.multi.SetWeight(lid, upd.MatchValue, upd.WeightArg, removeIfZero, v.eq())
	case UpdateWeightIncrease:
		v.multi.AdjustWeight(lid, upd.MatchValue, removeIfZero, v.eq(), func(w int32) int32 { return w + upd.WeightArg })
	case UpdateWeightMul:
		v.multi.AdjustWeight(lid, upd.MatchValue, removeIfZero, v.eq(), func(w int32) int32 { return w * upd.WeightArg })
	case UpdateWeightDiv:
		v.multi.AdjustWeight(lid, upd.MatchValue, removeIfZero, v.eq(), func(w int32) int32 {
			if upd.WeightArg == 0 {
				return w
			}
			return w / upd.WeightArg
		})
	}
	v.onMultiChanged(lid, old, v.multi.Get(lid))
}

func (v *Typed[T]) eq() func(a, b T) bool {
	less := v.less
	if less == nil {
		return func(a, b T) bool { return any(a) == any(b) }
	}
	return func(a, b T) bool { return !less(a, b) && !less(b, a) }
}

// matchEq is the equality a search term uses: QueryEq when the
// attribute configured one (case-folded strings), otherwise the same
// order-induced equality append/remove use.
func (v *Typed[T]) matchEq() func(a, b T) bool {
	if v.queryEq != nil {
		return v.queryEq
	}
	return v.eq()
}

// onValueChanged keeps the enum store and posting lists for a
// single-value attribute in step with a committed change.
func (v *Typed[T]) onValueChanged(lid types.Lid, old, next T) {
	if v.enums == nil {
		return
	}
	var oldID enumstore.EnumID
	hadOld := lid < v.single.CommittedDocidLimit() // only release a value that was actually visible before
	if hadOld {
		if id, ok := v.enums.Lookup(old); ok {
			oldID = id
		} else {
			hadOld = false
		}
	}
	newID, _ := v.enums.Insert(next)
	if hadOld {
		v.enums.Release(oldID)
		if v.postings != nil {
			v.postings.remove(oldID, lid)
		}
	}
	if v.postings != nil {
		v.postings.add(newID, lid)
	}
}

func (v *Typed[T]) onMultiChanged(lid types.Lid, old, next []multivalue.Element[T]) {
	if v.enums == nil {
		return
	}
	for _, e := range old {
		if id, ok := v.enums.Lookup(e.Value); ok {
			v.enums.Release(id)
			if v.postings != nil {
				v.postings.remove(id, lid)
			}
		}
	}
	for _, e := range next {
		id, _ := v.enums.Insert(e.Value)
		if v.postings != nil {
			v.postings.add(id, lid)
		}
	}
}

// ReclaimUnusedMemory releases storage buffers (and enum store entries)
// whose generation no reader can still observe.
func (v *Typed[T]) ReclaimUnusedMemory() int {
	n := v.gen.Reclaim()
	if v.enums != nil {
		n += v.enums.Compact()
	}
	return n
}

// CompactLidSpace shrinks committed_docid_limit to limit.
// shrink_lid_space() may later release backing storage >= limit.
func (v *Typed[T]) CompactLidSpace(limit types.Lid) error {
	if limit > v.CommittedDocidLimit() {
		return fmt.Errorf("attribute %q: compact limit %d exceeds committed limit %d", v.name, limit, v.CommittedDocidLimit())
	}
	if v.multi != nil {
		v.multi.Publish(limit)
	} else {
		v.single.Publish(limit)
	}
	if limit < types.Lid(v.numDocs.Load()) {
		v.numDocs.Store(uint32(limit))
	}
	v.shrinkPending.Store(true)
	return nil
}

// ShrinkLidSpace reports (and clears) whether a lid-space compaction is
// waiting for its shrink target (attribute.shrink.<name>) to run.
func (v *Typed[T]) ShrinkLidSpace() bool {
	return v.shrinkPending.CompareAndSwap(true, false)
}

// Get implements the reader API's get(lid) for single-value attributes.
func (v *Typed[T]) Get(lid types.Lid) T {
	if v.multi != nil {
		panic(fmt.Sprintf("attribute %q: Get is for single-value collections, use GetMulti", v.name))
	}
	return v.single.Get(lid)
}

// GetMulti implements get_multi(lid) for multi-value attributes.
func (v *Typed[T]) GetMulti(lid types.Lid) ([]T, []int32) {
	elems := v.multi.Get(lid)
	values := make([]T, len(elems))
	weights := make([]int32, len(elems))
	for i, e := range elems {
		values[i] = e.Value
		weights[i] = e.Weight
	}
	return values, weights
}

// GetEnum returns the enum id currently assigned to lid's value(s); for
// multi-value attributes it returns the first element's id.
func (v *Typed[T]) GetEnum(lid types.Lid) (enumstore.EnumID, bool) {
	if v.enums == nil {
		return 0, false
	}
	if v.multi != nil {
		elems := v.multi.Get(lid)
		if len(elems) == 0 {
			return 0, false
		}
		return v.enums.Lookup(elems[0].Value)
	}
	return v.enums.Lookup(v.single.Get(lid))
}

// FindEnum implements find_enum(value) -> enum_id?.
func (v *Typed[T]) FindEnum(value T) (enumstore.EnumID, bool) {
	if v.enums == nil {
		return 0, false
	}
	return v.enums.Lookup(value)
}

// ReadGuard pins a generation and exposes a stable read view, the
// result of `make_read_guard`.
type ReadGuard[T any] struct {
	guard genguard.Guard
	view  valuestore.ReadView[T]
}

func (g ReadGuard[T]) Release()          { g.guard.Release() }
func (g ReadGuard[T]) Len() types.Lid    { return g.view.Len() }
func (g ReadGuard[T]) At(lid types.Lid) T { return g.view.At(lid) }

// MakeReadGuard implements make_read_guard for single-value attributes.
func (v *Typed[T]) MakeReadGuard() ReadGuard[T] {
	guard := v.gen.Pin()
	return ReadGuard[T]{guard: guard, view: v.single.MakeReadView()}
}
