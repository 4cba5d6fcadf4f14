package crypto

import (
	"bytes"
	"testing"
)

// fastParams keeps Argon2id cheap enough for tests while staying valid.
var fastParams = Params{MemoryKiB: 64, Time: 1, Threads: 1}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		t.Fatalf("GenerateRandom failed: %v", err)
	}

	k1 := DeriveKey([]byte("Secret123!"), salt, fastParams)
	k2 := DeriveKey([]byte("Secret123!"), salt, fastParams)

	if len(k1) != KeySize {
		t.Errorf("Expected %d-byte key, got %d", KeySize, len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Error("Same password and salt should derive the same key")
	}

	k3 := DeriveKey([]byte("Secret123?"), salt, fastParams)
	if bytes.Equal(k1, k3) {
		t.Error("Different passwords should derive different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := DeriveKey([]byte("test123"), make([]byte, SaltSize), fastParams)
	enc := NewEncryptor(key)
	defer enc.Destroy()

	plaintext := []byte("API_KEY=abc123\nDB_PASSWORD=secret")

	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Ciphertext layout: nonce || ciphertext || tag
	if len(ciphertext) != NonceSize+len(plaintext)+TagSize {
		t.Errorf("Ciphertext length mismatch: got %d, want %d",
			len(ciphertext), NonceSize+len(plaintext)+TagSize)
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Round trip mismatch: got %s, want %s", decrypted, plaintext)
	}
}

func TestEncryptFreshNonce(t *testing.T) {
	key := make([]byte, KeySize)
	enc := NewEncryptor(key)

	c1, err := enc.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	c2, err := enc.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if bytes.Equal(c1[:NonceSize], c2[:NonceSize]) {
		t.Error("Two encryptions should use different nonces")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	enc := NewEncryptor(DeriveKey([]byte("right"), make([]byte, SaltSize), fastParams))
	ciphertext, err := enc.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	wrong := NewEncryptor(DeriveKey([]byte("wrong"), make([]byte, SaltSize), fastParams))
	if _, err := wrong.Decrypt(ciphertext); err != ErrAuthFailed {
		t.Errorf("Expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptTampered(t *testing.T) {
	key := make([]byte, KeySize)
	enc := NewEncryptor(key)

	ciphertext, err := enc.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Flip one ciphertext bit
	ciphertext[NonceSize] ^= 0x01
	if _, err := enc.Decrypt(ciphertext); err != ErrAuthFailed {
		t.Errorf("Expected ErrAuthFailed for tampered ciphertext, got %v", err)
	}
}

func TestDecryptTooShort(t *testing.T) {
	enc := NewEncryptor(make([]byte, KeySize))
	if _, err := enc.Decrypt(make([]byte, NonceSize)); err != ErrInvalidCiphertext {
		t.Errorf("Expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestVerifyToken(t *testing.T) {
	key := DeriveKey([]byte("Secret123!"), make([]byte, SaltSize), fastParams)
	enc := NewEncryptor(key)

	token, err := enc.MakeVerifyToken()
	if err != nil {
		t.Fatalf("MakeVerifyToken failed: %v", err)
	}

	if !enc.CheckVerifyToken(token) {
		t.Error("Correct key should verify its own token")
	}

	other := NewEncryptor(DeriveKey([]byte("Other456?"), make([]byte, SaltSize), fastParams))
	if other.CheckVerifyToken(token) {
		t.Error("Wrong key should not verify the token")
	}
}

func TestWrapUnwrapKey(t *testing.T) {
	masterKey, err := GenerateRandom(KeySize)
	if err != nil {
		t.Fatalf("GenerateRandom failed: %v", err)
	}
	folderKey, err := GenerateRandom(KeySize)
	if err != nil {
		t.Fatalf("GenerateRandom failed: %v", err)
	}

	nonce, wrapped, err := WrapKey(masterKey, folderKey)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}
	if len(nonce) != NonceSize {
		t.Errorf("Expected %d-byte nonce, got %d", NonceSize, len(nonce))
	}

	unwrapped, err := UnwrapKey(masterKey, nonce, wrapped)
	if err != nil {
		t.Fatalf("UnwrapKey failed: %v", err)
	}
	if !bytes.Equal(unwrapped, folderKey) {
		t.Error("Unwrapped key does not match the original folder key")
	}
}

func TestUnwrapKeyRejectsBadSizes(t *testing.T) {
	masterKey := make([]byte, KeySize)
	nonce := make([]byte, NonceSize)

	if _, err := UnwrapKey(masterKey, nonce[:4], make([]byte, KeySize+TagSize)); err != ErrInvalidCiphertext {
		t.Errorf("Expected ErrInvalidCiphertext for short nonce, got %v", err)
	}
	if _, err := UnwrapKey(masterKey, nonce, make([]byte, TagSize)); err != ErrInvalidCiphertext {
		t.Errorf("Expected ErrInvalidCiphertext for truncated wrap, got %v", err)
	}
	if _, err := UnwrapKey(masterKey, nonce, make([]byte, KeySize+TagSize+1)); err != ErrInvalidCiphertext {
		t.Errorf("Expected ErrInvalidCiphertext for oversized wrap, got %v", err)
	}
}

func TestUnwrapKeyWrongMaster(t *testing.T) {
	masterKey := make([]byte, KeySize)
	folderKey := bytes.Repeat([]byte{0xAB}, KeySize)

	nonce, wrapped, err := WrapKey(masterKey, folderKey)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}

	staleMaster := bytes.Repeat([]byte{0x01}, KeySize)
	if _, err := UnwrapKey(staleMaster, nonce, wrapped); err != ErrAuthFailed {
		t.Errorf("Expected ErrAuthFailed with a different master key, got %v", err)
	}
}

func TestParamsValid(t *testing.T) {
	if !DefaultParams().Valid() {
		t.Error("Default params should be valid")
	}
	if (Params{}).Valid() {
		t.Error("Zero params should be invalid")
	}
	if (Params{MemoryKiB: 64, Time: 0, Threads: 1}).Valid() {
		t.Error("Zero time should be invalid")
	}
}

func TestClearBytes(t *testing.T) {
	b := []byte("sensitive")
	ClearBytes(b)
	for i, v := range b {
		if v != 0 {
			t.Errorf("Byte %d not cleared: %v", i, v)
		}
	}
}
