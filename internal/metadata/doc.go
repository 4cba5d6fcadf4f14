// Package metadata reads and writes the per-folder descriptor files that
// make locking self-contained.
//
// A locked folder carries a single .securelock file holding the format
// version, the KDF salt and cost parameters, a verify token, the ordered
// file manifest, and an optional recovery block. The descriptor is written
// last during a lock and deleted last during an unlock, so its presence is
// the sole authority for the folder's locked state.
//
// A .securelock.partial file is written before the first file conversion
// and removed once the descriptor commits. It preserves the salt across a
// crash so a re-invoked lock derives the same key instead of orphaning
// already-converted files under a fresh salt.
//
// All writes go through a temp-file-and-rename sequence; a torn descriptor
// is never observable.
package metadata
