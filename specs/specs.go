// Package specs implements the collection spec and specs-builder:
// deciding, for a reconfigure, which fields need a live config swap
// immediately versus which must keep their old attribute aspect a
// little longer to avoid an expensive reprocessing pass.
package specs

import "github.com/vespa-engine/vespa-sub013/types"

// CollectionSpec is one field's resolved outcome from a reconfigure
// step: the config to actually apply now, plus whether its removal (or
// aspect change) has been deferred.
type CollectionSpec struct {
	Name         string
	Config       types.AttributeConfig
	DelayRemove  bool
	WasAttribute bool // true iff this field had the attribute aspect before this reconfigure
}

// FieldChange is the specs-builder's view of one field across a
// reconfigure: its old config (nil if the field is new), its requested
// new config (nil if removed outright), and whether the schema's index
// list currently carries a string index for it (a field with a string
// index is exempt from the reprocessing-avoidance delay).
type FieldChange struct {
	Name          string
	Old           *types.AttributeConfig
	New           *types.AttributeConfig
	HasStringIndex bool
}

// fastPartialUpdateCollection reports whether a collection kind's
// partial updates are "fast" only when backed by an attribute (arrays
// and weighted sets can be partially updated without attribute backing
// when a string index exists; scalars cannot).
func fastPartialUpdateCollection(k types.CollectionKind) bool {
	return k.IsMultiValue()
}

// Build computes the adjusted CollectionSpec for one field change,
// applying the delayed-aspect rule verbatim:
//   - adding the attribute aspect always passes through; an addition
//     is never delayed
//   - removing the aspect from a fast-partial-update collection with no
//     string index is delayed
//   - flipping fast_access from true to false is delayed
//   - everything else passes through immediately
func Build(change FieldChange) CollectionSpec {
	wasAttribute := change.Old != nil
	out := CollectionSpec{Name: change.Name, WasAttribute: wasAttribute}

	switch {
	case change.Old == nil && change.New != nil:
		// Adding the attribute aspect to a field that didn't have one.
		out.Config = *change.New
		out.DelayRemove = false
		// The delay here means "don't add the aspect yet": since this
		// package only ever sees the step that's actually requested, a
		// pure addition step is exactly "required by the new
		// configuration at this step", so it passes through.
		return out

	case change.Old != nil && change.New == nil:
		// Removing the attribute aspect (or the field) outright.
		if fastPartialUpdateCollection(change.Old.Collection) && !change.HasStringIndex {
			out.Config = *change.Old
			out.DelayRemove = true
			return out
		}
		out.DelayRemove = false
		return out

	case change.Old != nil && change.New != nil:
		next := *change.New
		if change.Old.Flags.FastAccess && !next.Flags.FastAccess {
			next.Flags.FastAccess = true // delay the flip; a later reconfigure completes it
		}
		out.Config = next
		out.DelayRemove = false
		return out

	default:
		return out
	}
}
