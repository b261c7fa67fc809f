package attribute

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/vespa-engine/vespa-sub013/internal/multivalue"
	"github.com/vespa-engine/vespa-sub013/types"
)

// Snapshot is the serialized form of one attribute's committed state at
// a given serial, the payload a flush target writes to disk and an
// initializer loads back.
type Snapshot[T any] struct {
	Serial  types.Serial
	NumDocs types.Lid
	Single  []T          // len == NumDocs for single-value attributes, nil otherwise
	Multi   [][]Element[T] // len == NumDocs for multi-value attributes, nil otherwise
}

// Element mirrors multivalue.Element so Snapshot doesn't need to import
// the internal storage package's type directly.
type Element[T any] struct {
	Value  T
	Weight int32
}

// Export captures the committed state at serial as a Snapshot. Flush
// always runs on the single writer thread, so no
// generation guard is needed around this read.
func (v *Typed[T]) Export() Snapshot[T] {
	limit := v.CommittedDocidLimit()
	snap := Snapshot[T]{
		Serial:  v.LastSerial(),
		NumDocs: limit,
	}
	if v.multi != nil {
		rows := make([][]Element[T], limit)
		for lid := types.Lid(0); lid < limit; lid++ {
			elems := v.multi.Get(lid)
			row := make([]Element[T], len(elems))
			for i, e := range elems {
				row[i] = Element[T]{Value: e.Value, Weight: e.Weight}
			}
			rows[lid] = row
		}
		snap.Multi = rows
		return snap
	}
	vals := make([]T, limit)
	for lid := types.Lid(0); lid < limit; lid++ {
		vals[lid] = v.single.Get(lid)
	}
	snap.Single = vals
	return snap
}

// Import replaces this vector's content with a previously exported
// snapshot, used by the initializer's load path. It bypasses the change
// queue: the vector must not be serving readers yet.
func (v *Typed[T]) Import(snap Snapshot[T]) {
	v.numDocs.Store(uint32(snap.NumDocs))
	if v.multi != nil {
		v.multi.EnsureCapacity(snap.NumDocs)
		for lid, row := range snap.Multi {
			elems := make([]multivalue.Element[T], len(row))
			for i, e := range row {
				elems[i] = multivalue.Element[T]{Value: e.Value, Weight: e.Weight}
			}
			v.multi.Set(types.Lid(lid), elems)
			v.onMultiChanged(types.Lid(lid), nil, elems)
		}
		v.multi.Publish(snap.NumDocs)
	} else {
		v.single.EnsureCapacity(snap.NumDocs)
		for lid, val := range snap.Single {
			v.single.Set(types.Lid(lid), val)
			v.onValueChanged(types.Lid(lid), val, val) // seed the enum store without releasing a non-existent old value
		}
		v.single.Publish(snap.NumDocs)
	}
	v.lastSerial.Store(uint64(snap.Serial))
}

// ExportBytes gob-encodes the current snapshot, letting a caller that
// doesn't know T (the manager, the flush target) move a vector's state
// to and from disk through a single type-erased method pair.
func (v *Typed[T]) ExportBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v.Export()); err != nil {
		return nil, fmt.Errorf("attribute %q: encode snapshot: %w", v.name, err)
	}
	return buf.Bytes(), nil
}

// ImportBytes decodes a snapshot produced by ExportBytes and applies it
// via Import.
func (v *Typed[T]) ImportBytes(data []byte) error {
	var snap Snapshot[T]
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("attribute %q: decode snapshot: %w", v.name, err)
	}
	v.Import(snap)
	return nil
}
