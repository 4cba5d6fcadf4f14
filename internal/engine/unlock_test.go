package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/taseen/securelock/internal/errs"
	"github.com/taseen/securelock/internal/master"
	"github.com/taseen/securelock/internal/metadata"
	"github.com/taseen/securelock/internal/storage"
)

func TestUnlockWrongPassword(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()

	writeFile(t, filepath.Join(dir, "a.txt"), "content")
	if _, err := e.Lock(ctx, dir, []byte("right")); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	_, err := e.Unlock(ctx, dir, []byte("wrong"))
	if !errs.IsKind(err, errs.KindWrongPassword) {
		t.Errorf("Expected KindWrongPassword, got %v", err)
	}

	// Nothing was touched
	if _, err := os.Stat(filepath.Join(dir, "a.txt.locked")); err != nil {
		t.Errorf("Artifact should be untouched after failed unlock: %v", err)
	}
	if !metadata.Exists(dir) {
		t.Error("Descriptor should survive a failed unlock")
	}
}

func TestUnlockPartialOnCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()
	password := []byte("test123")

	writeFile(t, filepath.Join(dir, "good.txt"), "healthy")
	writeFile(t, filepath.Join(dir, "bad.txt"), "doomed")
	if _, err := e.Lock(ctx, dir, password); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// Flip the artifact's last byte so its tag no longer verifies
	badArtifact := filepath.Join(dir, "bad.txt.locked")
	blob, err := os.ReadFile(badArtifact)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	blob[len(blob)-1] ^= 0xFF
	if err := os.WriteFile(badArtifact, blob, 0600); err != nil {
		t.Fatalf("Failed to corrupt artifact: %v", err)
	}

	result, err := e.Unlock(ctx, dir, password)
	var partial *errs.Partial
	if !errors.As(err, &partial) {
		t.Fatalf("Expected a partial failure, got %v", err)
	}
	if errs.KindOf(err) != errs.KindPartialFailure {
		t.Errorf("Expected KindPartialFailure, got %v", errs.KindOf(err))
	}
	if len(partial.Failed) != 1 || partial.Failed[0] != "bad.txt" {
		t.Errorf("Expected bad.txt to fail, got %v", partial.Failed)
	}
	if result.Restored != 1 {
		t.Errorf("Expected the healthy file restored, got %d", result.Restored)
	}

	// Healthy file is back, damaged artifact and descriptor remain
	content, err := os.ReadFile(filepath.Join(dir, "good.txt"))
	if err != nil || string(content) != "healthy" {
		t.Errorf("Healthy file should be restored: %s, %v", content, err)
	}
	if _, err := os.Stat(badArtifact); err != nil {
		t.Errorf("Damaged artifact should be left in place: %v", err)
	}
	if !metadata.Exists(dir) {
		t.Error("Descriptor should survive a partial unlock")
	}

	// A second pass skips the restored file and reports the same failure
	result, err = e.Unlock(ctx, dir, password)
	if !errors.As(err, &partial) {
		t.Fatalf("Expected a partial failure again, got %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("Expected 1 already-restored file skipped, got %d", result.Skipped)
	}
}

func TestUnlockPartialOnMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()
	password := []byte("test123")

	writeFile(t, filepath.Join(dir, "a.txt"), "content")
	if _, err := e.Lock(ctx, dir, password); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "a.txt.locked")); err != nil {
		t.Fatalf("Failed to remove artifact: %v", err)
	}

	_, err := e.Unlock(ctx, dir, password)
	var partial *errs.Partial
	if !errors.As(err, &partial) {
		t.Fatalf("Expected a partial failure, got %v", err)
	}
	if len(partial.Failed) != 1 {
		t.Errorf("Expected 1 failed entry, got %v", partial.Failed)
	}
}

func TestUnlockResumesAfterInterruption(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()
	password := []byte("test123")

	writeFile(t, filepath.Join(dir, "done.txt"), "restored already")
	writeFile(t, filepath.Join(dir, "todo.txt"), "still locked")
	if _, err := e.Lock(ctx, dir, password); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// Simulate an unlock that died after one file: original back on
	// disk, its artifact gone, descriptor still present.
	writeFile(t, filepath.Join(dir, "done.txt"), "restored already")
	if err := os.Remove(filepath.Join(dir, "done.txt.locked")); err != nil {
		t.Fatalf("Failed to remove artifact: %v", err)
	}

	result, err := e.Unlock(ctx, dir, password)
	if err != nil {
		t.Fatalf("Resumed unlock failed: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("Expected 1 skipped entry, got %d", result.Skipped)
	}
	if result.Restored != 1 {
		t.Errorf("Expected 1 restored entry, got %d", result.Restored)
	}
	if metadata.Exists(dir) {
		t.Error("Descriptor should be removed after a clean pass")
	}
	content, err := os.ReadFile(filepath.Join(dir, "todo.txt"))
	if err != nil || string(content) != "still locked" {
		t.Errorf("Remaining file should be restored: %s, %v", content, err)
	}
}

func TestRecoverRoundTrip(t *testing.T) {
	dir := t.TempDir()
	stub := newStubMaster(t)
	e := newTestEngine(stub)
	ctx := context.Background()

	writeFile(t, filepath.Join(dir, "a.txt"), "precious")
	result, err := e.Lock(ctx, dir, []byte("forgotten-password"))
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if !result.HasRecovery {
		t.Fatal("Expected a recovery block with an unlocked master session")
	}

	// Restore without the folder password
	recovered, err := e.Recover(ctx, dir)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if recovered.Restored != 1 {
		t.Errorf("Expected 1 file restored, got %d", recovered.Restored)
	}
	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil || string(content) != "precious" {
		t.Errorf("Recovered content mismatch: %s, %v", content, err)
	}
	if metadata.Exists(dir) {
		t.Error("Descriptor should be removed after recovery")
	}
}

func TestRecoverWithoutRecoveryBlock(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()

	writeFile(t, filepath.Join(dir, "a.txt"), "content")
	if _, err := e.Lock(ctx, dir, []byte("test123")); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	stubEngine := newTestEngine(newStubMaster(t))
	_, err := stubEngine.Recover(ctx, dir)
	if !errs.IsKind(err, errs.KindNoRecoveryAvailable) {
		t.Errorf("Expected KindNoRecoveryAvailable, got %v", err)
	}
}

func TestRecoverRequiresUnlockedMaster(t *testing.T) {
	dir := t.TempDir()
	stub := newStubMaster(t)
	e := newTestEngine(stub)
	ctx := context.Background()

	writeFile(t, filepath.Join(dir, "a.txt"), "content")
	if _, err := e.Lock(ctx, dir, []byte("test123")); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	stub.unlocked = false
	if _, err := e.Recover(ctx, dir); !errs.IsKind(err, errs.KindMasterNotUnlocked) {
		t.Errorf("Expected KindMasterNotUnlocked, got %v", err)
	}

	noMaster := newTestEngine(nil)
	if _, err := noMaster.Recover(ctx, dir); !errs.IsKind(err, errs.KindMasterNotUnlocked) {
		t.Errorf("Expected KindMasterNotUnlocked without a manager, got %v", err)
	}
}

func TestRecoverWrongMaster(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(newStubMaster(t))
	ctx := context.Background()

	writeFile(t, filepath.Join(dir, "a.txt"), "content")
	if _, err := e.Lock(ctx, dir, []byte("test123")); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// A different master key cannot unwrap the recovery block
	other := newTestEngine(newStubMaster(t))
	_, err := other.Recover(ctx, dir)
	if !errs.IsKind(err, errs.KindRecoveryFailed) {
		t.Errorf("Expected KindRecoveryFailed, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "a.txt.locked")); statErr != nil {
		t.Errorf("Artifact should be untouched after failed recovery: %v", statErr)
	}
}

// TestRecoverWithManager exercises the real master manager end to end,
// production KDF cost included.
func TestRecoverWithManager(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping production KDF in short mode")
	}

	store, err := storage.Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	manager := master.NewManager(store)
	if err := manager.Setup([]byte("master-secret")); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	dir := t.TempDir()
	e := newTestEngine(manager)
	ctx := context.Background()

	writeFile(t, filepath.Join(dir, "a.txt"), "precious")
	result, err := e.Lock(ctx, dir, []byte("folder-password"))
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if !result.HasRecovery {
		t.Fatal("Expected a recovery block")
	}

	recovered, err := e.Recover(ctx, dir)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if recovered.Restored != 1 {
		t.Errorf("Expected 1 file restored, got %d", recovered.Restored)
	}
	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil || string(content) != "precious" {
		t.Errorf("Recovered content mismatch: %s, %v", content, err)
	}
}
