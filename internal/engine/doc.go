// Package engine implements the in-place folder operations.
//
// Engine operations include:
//   - Lock: Encrypt every eligible file and commit the folder descriptor
//   - LockAll: Lock a batch of folders concurrently under one password
//   - Unlock: Verify the password and restore every manifest entry
//   - Recover: Restore through the descriptor's recovery block instead
//   - Status: Inspect a folder without modifying it
//
// Crash consistency rests on two rules. Each file is converted by writing
// its encrypted sibling before deleting the source, so at least one intact
// copy exists at all times. And the committed descriptor is always the last
// write of a lock and the last delete of an unlock, so its presence alone
// states whether the folder's contents are ciphertext.
package engine
