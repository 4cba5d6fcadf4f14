// Package registry tracks which folders securelock manages.
//
// The registry is the composition layer the commands talk to: it resolves
// and validates paths, enforces tracking and nesting rules, gates recovery
// on the master session, and delegates the actual file work to the engine.
// Stored records carry display hints only; every query re-probes the
// folder on disk, so external changes are picked up rather than trusted
// from cache.
package registry
