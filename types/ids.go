// Package types defines the data model shared across the attribute
// subsystem: serial numbers, local document ids, attribute configuration
// and query terms. It has no dependencies on the rest of the module so
// every other package can import it without a cycle.
package types

// Serial is a monotonically increasing id assigned by the transaction log
// to every durable mutation. Attribute state records the highest serial
// applied to it.
type Serial uint64

// Lid is a local document id: a 32-bit identifier, dense within a
// sub-database, assigned by the document meta store. Lid 0 is reserved
// and never a user document.
type Lid uint32

// ReservedLid is never allocated to a user document.
const ReservedLid Lid = 0

// InvalidSerial marks "no serial yet", the zero value for create_serial
// and last_serial before any commit has happened.
const InvalidSerial Serial = 0
