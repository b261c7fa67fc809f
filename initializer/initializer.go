// Package initializer implements the attribute initializer: load one
// attribute from its best on-disk snapshot, or fall back to an empty
// vector when there is nothing valid to load.
package initializer

import (
	"fmt"
	"log/slog"

	"github.com/vespa-engine/vespa-sub013/directory"
	"github.com/vespa-engine/vespa-sub013/internal/codec"
	"github.com/vespa-engine/vespa-sub013/types"
)

// Vector is the surface Init and ConsiderPadAttribute need from a boxed
// attribute.Typed[T] (factory.Vector already satisfies it).
type Vector interface {
	AddDoc() types.Lid
	Clear(serial types.Serial, lid types.Lid) error
	Commit(serial types.Serial) error
	CommittedDocidLimit() types.Lid
	ImportBytes(data []byte) error
}

// Init implements init(): it reads dir's best snapshot, if any, and
// either loads it into v or leaves v empty. currentSerial is compared
// against the snapshot's own serial per the header-mismatch rule:
// a snapshot older than the manager's current serial is stale and is
// not loaded.
func Init(log *slog.Logger, dir *directory.Directory, attrName string, v Vector, currentSerial types.Serial) error {
	serial, ok, err := dir.CurrentSnapshot()
	if err != nil {
		return fmt.Errorf("initializer: read meta-info: %w", err)
	}
	if !ok {
		log.Info("attribute has no snapshot, creating empty", "dir", dir.Root())
		return nil
	}
	if serial < currentSerial {
		log.Warn("snapshot serial older than current serial, creating empty", "dir", dir.Root(), "snapshot_serial", serial, "current_serial", currentSerial)
		return nil
	}

	data, err := codec.ReadFile(dir.SnapshotDataFile(serial, attrName))
	if err != nil {
		log.Warn("snapshot load failed, creating empty", "dir", dir.Root(), "error", err)
		return nil
	}
	if err := v.ImportBytes(data); err != nil {
		log.Warn("snapshot decode failed, creating empty", "dir", dir.Root(), "error", err)
		return nil
	}
	if err := v.Commit(serial); err != nil {
		return fmt.Errorf("initializer: commit loaded snapshot: %w", err)
	}
	return nil
}

// ConsiderPadAttribute implements considerPadAttribute: when v's
// committed_docid_limit trails newLimit (a vector transferred live from
// an older manager generation, or loaded from a stale snapshot), pad it
// up to newLimit so every vector in the manager shares the same
// num_docs, committing every 1024 allocations to bound memory.
func ConsiderPadAttribute(v Vector, current types.Serial, newLimit types.Lid) error {
	const batch = 1024
	sinceCommit := 0
	for v.CommittedDocidLimit() < newLimit {
		lid := v.AddDoc()
		if err := v.Clear(current, lid); err != nil {
			return fmt.Errorf("initializer: pad clear lid %d: %w", lid, err)
		}
		sinceCommit++
		if sinceCommit >= batch || lid+1 >= newLimit {
			if err := v.Commit(current); err != nil {
				return fmt.Errorf("initializer: pad commit: %w", err)
			}
			if v.CommittedDocidLimit() <= lid {
				return fmt.Errorf("initializer: pad commit at serial %d did not publish lid %d", current, lid)
			}
			sinceCommit = 0
		}
	}
	if sinceCommit > 0 {
		if err := v.Commit(current); err != nil {
			return fmt.Errorf("initializer: pad final commit: %w", err)
		}
	}
	return nil
}
