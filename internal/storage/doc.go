// Package storage provides the BBolt database interface for securelock's
// app-private state.
//
// Database structure uses three buckets:
//   - config: format version and timestamps
//   - folders: one FolderRecord per tracked path (the registry)
//   - master: the single MasterRecord (salt, parameters, verify token)
//
// Nothing secret lives here: folder records are advisory caches re-verified
// against the filesystem at query time, and the master record holds only
// what is needed to re-derive and check the master key, never the key or
// password.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
