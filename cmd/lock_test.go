package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/taseen/securelock/internal/crypto"
	"github.com/taseen/securelock/internal/metadata"
)

func TestPendingLockResolvesPathSpelling(t *testing.T) {
	dir := t.TempDir()

	salt, err := crypto.GenerateRandom(crypto.SaltSize)
	if err != nil {
		t.Fatalf("GenerateRandom failed: %v", err)
	}
	token := make([]byte, crypto.NonceSize+crypto.TagSize+8)
	if err := metadata.WritePending(dir, metadata.New(salt, crypto.DefaultParams(), token)); err != nil {
		t.Fatalf("WritePending failed: %v", err)
	}

	if !pendingLock(dir) {
		t.Error("Pending lock should be detected on the direct spelling")
	}

	// A symlinked spelling of the same folder must be recognized as the
	// same interrupted lock, not treated as a fresh one.
	link := filepath.Join(t.TempDir(), "alias")
	if err := os.Symlink(dir, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if !pendingLock(link) {
		t.Error("Pending lock should be detected through a symlinked spelling")
	}

	if err := metadata.RemovePending(dir); err != nil {
		t.Fatalf("RemovePending failed: %v", err)
	}
	if pendingLock(link) {
		t.Error("No pending lock should be reported after the descriptor is gone")
	}
	if pendingLock(filepath.Join(dir, "missing")) {
		t.Error("A nonexistent path should report no pending lock")
	}
}
