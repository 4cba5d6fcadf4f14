// Package master manages the master password: a second, independent
// credential that lets a folder key be recovered when its own password is
// forgotten.
//
// The persisted descriptor carries only the salt, KDF parameters, and a
// verify token. The derived master key lives in a process-only session,
// established by setup or a successful verify and cleared by an explicit
// lock or process exit, zeroized either way. There is no reset path:
// replacing the descriptor would strand every recovery block wrapped
// under the old key.
package master
