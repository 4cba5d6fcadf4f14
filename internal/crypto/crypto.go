package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	SaltSize  = 32 // Salt size in bytes
	KeySize   = 32 // AES-256 key size
	NonceSize = 12 // GCM nonce size
	TagSize   = 16 // GCM authentication tag size

	// Argon2id defaults: 64 MiB, 3 passes, single lane.
	DefaultMemoryKiB = 64 * 1024
	DefaultTime      = 3
	DefaultThreads   = 1
)

// verifyPlaintext is the fixed plaintext behind every verify token. Decrypting
// a stored token back to this value proves the candidate key is correct
// without ever storing the key or the password.
const verifyPlaintext = "SECURELOCK_VERIFY_TOKEN_V1"

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrAuthFailed        = errors.New("authentication failed")
)

// Params holds the Argon2id cost parameters recorded alongside every salt,
// so previously written ciphertext stays decryptable if the defaults change.
type Params struct {
	MemoryKiB uint32
	Time      uint32
	Threads   uint8
}

// DefaultParams returns the cost parameters used for new salts.
func DefaultParams() Params {
	return Params{
		MemoryKiB: DefaultMemoryKiB,
		Time:      DefaultTime,
		Threads:   DefaultThreads,
	}
}

// Valid reports whether the parameters can drive the KDF. Zero values would
// make argon2 panic, so decoded parameters are checked before use.
func (p Params) Valid() bool {
	return p.MemoryKiB > 0 && p.Time > 0 && p.Threads > 0
}

// DeriveKey derives a 256-bit key from a password and salt using Argon2id.
// Identical inputs always produce the identical key.
func DeriveKey(password, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, KeySize)
}

// Encryptor provides authenticated encryption under a single derived key.
type Encryptor struct {
	key []byte
}

// NewEncryptor creates a new encryptor with the given key
func NewEncryptor(key []byte) *Encryptor {
	return &Encryptor{
		key: key,
	}
}

// Encrypt encrypts plaintext using AES-256-GCM and returns
// nonce || ciphertext || tag with a fresh random nonce.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(e.key)
	if err != nil {
		return nil, err
	}

	// Generate random nonce
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Encrypt and authenticate
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	// Prepend nonce to ciphertext
	result := make([]byte, NonceSize+len(ciphertext))
	copy(result, nonce)
	copy(result[NonceSize:], ciphertext)

	return result, nil
}

// Decrypt decrypts a nonce || ciphertext || tag blob. A tag mismatch returns
// ErrAuthFailed with no partial plaintext.
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	gcm, err := newGCM(e.key)
	if err != nil {
		return nil, err
	}

	// Extract nonce
	nonce := ciphertext[:NonceSize]
	ciphertext = ciphertext[NonceSize:]

	// Decrypt and verify
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

// MakeVerifyToken encrypts the fixed verify plaintext under the encryptor's
// key. The result is stored next to the salt that produced the key.
func (e *Encryptor) MakeVerifyToken() ([]byte, error) {
	return e.Encrypt([]byte(verifyPlaintext))
}

// CheckVerifyToken reports whether the encryptor's key decrypts the stored
// token back to the fixed verify plaintext. It never returns partial
// plaintext or timing hints beyond the single GCM open.
func (e *Encryptor) CheckVerifyToken(token []byte) bool {
	plaintext, err := e.Decrypt(token)
	if err != nil {
		return false
	}
	ok := ConstantTimeCompare(plaintext, []byte(verifyPlaintext))
	ClearBytes(plaintext)
	return ok
}

// Destroy clears the encryptor's key from memory
func (e *Encryptor) Destroy() {
	ClearBytes(e.key)
}

// WrapKey encrypts payloadKey under wrappingKey with AES-256-GCM, returning
// the nonce and the wrapped ciphertext separately so callers can persist
// them as distinct fields.
func WrapKey(wrappingKey, payloadKey []byte) (nonce, wrapped []byte, err error) {
	gcm, err := newGCM(wrappingKey)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	wrapped = gcm.Seal(nil, nonce, payloadKey, nil)
	return nonce, wrapped, nil
}

// UnwrapKey reverses WrapKey. A tag mismatch, such as a wrapping key other
// than the one used at wrap time, returns ErrAuthFailed. The wrapped blob
// must hold exactly one 32-byte key; any other size is rejected up front.
func UnwrapKey(wrappingKey, nonce, wrapped []byte) ([]byte, error) {
	if len(nonce) != NonceSize || len(wrapped) != KeySize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	gcm, err := newGCM(wrappingKey)
	if err != nil {
		return nil, err
	}

	payloadKey, err := gcm.Open(nil, nonce, wrapped, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return payloadKey, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
