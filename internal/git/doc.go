// Package git warns when a locked folder overlaps with git version
// control.
//
// Locking encrypts the working copies only. If git tracked the files
// before the lock, their plaintext remains reachable through the index
// and history, so lock and doctor surface a warning with the affected
// files.
package git
