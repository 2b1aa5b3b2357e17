// Package dataprocessing loads the pharmacy stock request export into memory.
//
// A source file (.xlsx, .xlsm or .csv) is read once, each row is cleaned by the
// Normalizer and the result is held in an immutable Table:
//
//	Source file → ReadSource → RawRecords → Normalizer → Table
//
// The Normalizer is deliberately permissive. Item names lose one trailing
// catalogue code, destinations are trimmed, unknown schedule labels become
// Unknown, a missing user becomes UNATTRIBUTED and non-numeric values become 0.
// The only row-level failure is an unparseable date, which aborts the load.
//
// # Errors
//
// Load failures are *SourceError values that match ErrSourceNotFound or
// ErrMalformedSource with errors.Is and carry the row and column when known.
//
// # Caching
//
// Repository keeps one Table per path for the life of the process and dedupes
// concurrent first loads. Reload replaces the cached Table without touching
// snapshots already handed out.
package dataprocessing
