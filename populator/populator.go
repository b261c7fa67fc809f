// Package populator implements the attribute populator: rebuilding one
// newly-added attribute's contents from the document store, for the
// case where a reconfigure adds an aspect that can't just be carried
// forward from the old vector.
package populator

import (
	"context"
	"fmt"

	"github.com/vespa-engine/vespa-sub013/flush"
	"github.com/vespa-engine/vespa-sub013/types"
)

// Apply sets one document's value on the attribute being populated and
// commits it at serial, gating on that commit actually landing before
// Populate moves on to the next doc. The caller supplies this, since
// extracting a field's value from a stored document is outside this
// module (the document store and its schema are an external
// collaborator).
type Apply func(lid types.Lid, serial types.Serial) error

// Populate iterates lid order from 1 (lid 0 is reserved) through
// numDocs-1, calling apply once per document with a monotonically
// increasing synthetic serial drawn from (initSerial, configSerial].
// Once every document has been applied, it runs every target in
// targets exactly once, so every attribute's flushed serial converges
// on configSerial and a subsequent flush of the populated attribute is
// not needed on its own.
func Populate(ctx context.Context, numDocs types.Lid, initSerial, configSerial types.Serial, apply Apply, targets []*flush.Target) error {
	if configSerial <= initSerial && numDocs > types.ReservedLid+1 {
		return fmt.Errorf("populator: no room for synthetic serials between %d and %d", initSerial, configSerial)
	}

	serial := initSerial
	for lid := types.ReservedLid + 1; lid < numDocs; lid++ {
		if serial < configSerial {
			serial++
		}
		if err := apply(lid, serial); err != nil {
			return fmt.Errorf("populator: apply lid %d at serial %d: %w", lid, serial, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	for _, t := range targets {
		if err := t.Flush(ctx); err != nil {
			return fmt.Errorf("populator: flush %s: %w", t.Name(), err)
		}
	}
	return nil
}
