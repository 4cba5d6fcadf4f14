// Package crypto provides cryptographic operations for securelock.
//
// Encryption uses AES-256-GCM with:
//   - 32-byte key derived from password via Argon2id
//   - 12-byte random nonce per encryption operation
//   - Authenticated encryption prevents tampering
//
// Key derivation uses Argon2id with:
//   - 32-byte random salt (stored unencrypted)
//   - 64 MiB memory, 3 passes, 1 lane by default
//   - Cost parameters recorded next to every salt
//
// Key wrapping reuses the same AEAD: WrapKey encrypts a folder key under
// the master key so the folder can later be recovered without its password.
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Encryptor.Destroy() when done with encryption operations
package crypto
