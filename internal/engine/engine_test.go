package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/taseen/securelock/internal/crypto"
	"github.com/taseen/securelock/internal/errs"
	logger "github.com/taseen/securelock/internal/logging"
	"github.com/taseen/securelock/internal/metadata"
	"github.com/taseen/securelock/internal/security"
)

// testParams keeps Argon2 cheap in tests. Production costs are exercised
// by the crypto package.
var testParams = crypto.Params{MemoryKiB: 64, Time: 1, Threads: 1}

func newTestEngine(master MasterSource) *Engine {
	e := New(logger.Logger{}, master)
	e.params = testParams
	return e
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

// stubMaster stands in for the master manager so recovery paths can be
// tested without running the production KDF.
type stubMaster struct {
	unlocked bool
	key      []byte
	salt     []byte
}

func (s *stubMaster) IsUnlocked() bool { return s.unlocked }

func (s *stubMaster) SessionKey() ([]byte, error) {
	if !s.unlocked {
		return nil, errs.New(errs.KindMasterNotUnlocked, "master password is not unlocked")
	}
	return append([]byte(nil), s.key...), nil
}

func (s *stubMaster) WrapSalt() ([]byte, error) {
	if !s.unlocked {
		return nil, errs.New(errs.KindMasterNotUnlocked, "master password is not unlocked")
	}
	return append([]byte(nil), s.salt...), nil
}

func newStubMaster(t *testing.T) *stubMaster {
	t.Helper()
	key, err := crypto.GenerateRandom(crypto.KeySize)
	if err != nil {
		t.Fatalf("Failed to generate stub key: %v", err)
	}
	salt, err := crypto.GenerateRandom(crypto.SaltSize)
	if err != nil {
		t.Fatalf("Failed to generate stub salt: %v", err)
	}
	return &stubMaster{unlocked: true, key: key, salt: salt}
}

func TestLockUnlockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()
	password := []byte("test123")

	writeFile(t, filepath.Join(dir, "a.txt"), "content-a")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "content-b")

	// Lock
	result, err := e.Lock(ctx, dir, password)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if result.FileCount != 2 {
		t.Errorf("Expected 2 files locked, got %d", result.FileCount)
	}
	if result.HasRecovery {
		t.Error("Expected no recovery block without a master session")
	}

	// Originals gone, artifacts and descriptor present
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); !os.IsNotExist(err) {
		t.Error("Original a.txt should have been removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt.locked")); err != nil {
		t.Errorf("Artifact a.txt.locked should exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sub", "b.txt.locked")); err != nil {
		t.Errorf("Artifact sub/b.txt.locked should exist: %v", err)
	}
	if !metadata.Exists(dir) {
		t.Error("Descriptor should exist after lock")
	}
	if metadata.PendingExists(dir) {
		t.Error("Pending descriptor should be removed after commit")
	}

	// Artifact is not the plaintext
	blob, err := os.ReadFile(filepath.Join(dir, "a.txt.locked"))
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	if string(blob) == "content-a" {
		t.Error("Artifact should not contain plaintext")
	}

	// Unlock
	unlocked, err := e.Unlock(ctx, dir, password)
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if unlocked.Restored != 2 {
		t.Errorf("Expected 2 files restored, got %d", unlocked.Restored)
	}

	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("Failed to read restored file: %v", err)
	}
	if string(content) != "content-a" {
		t.Errorf("Restored content mismatch: got %s, want content-a", content)
	}
	content, err = os.ReadFile(filepath.Join(dir, "sub", "b.txt"))
	if err != nil {
		t.Fatalf("Failed to read restored nested file: %v", err)
	}
	if string(content) != "content-b" {
		t.Errorf("Restored nested content mismatch: got %s, want content-b", content)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt.locked")); !os.IsNotExist(err) {
		t.Error("Artifact should have been removed after unlock")
	}
	if metadata.Exists(dir) {
		t.Error("Descriptor should be removed after unlock")
	}
}

func TestLockAlreadyLocked(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()
	password := []byte("test123")

	writeFile(t, filepath.Join(dir, "a.txt"), "content")
	if _, err := e.Lock(ctx, dir, password); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	_, err := e.Lock(ctx, dir, password)
	if !errs.IsKind(err, errs.KindAlreadyLocked) {
		t.Errorf("Expected KindAlreadyLocked, got %v", err)
	}
}

func TestUnlockNotLocked(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)

	_, err := e.Unlock(context.Background(), dir, []byte("test123"))
	if !errs.IsKind(err, errs.KindAlreadyUnlocked) {
		t.Errorf("Expected KindAlreadyUnlocked, got %v", err)
	}
}

func TestLockSkipsHiddenAndIneligible(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()

	writeFile(t, filepath.Join(dir, "visible.txt"), "data")
	writeFile(t, filepath.Join(dir, ".hidden"), "secret-config")
	writeFile(t, filepath.Join(dir, ".git", "config"), "repo")

	result, err := e.Lock(ctx, dir, []byte("test123"))
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if result.FileCount != 1 {
		t.Errorf("Expected 1 file locked, got %d", result.FileCount)
	}

	// Hidden entries stay untouched
	content, err := os.ReadFile(filepath.Join(dir, ".hidden"))
	if err != nil || string(content) != "secret-config" {
		t.Errorf("Hidden file should be untouched: %s, %v", content, err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git", "config")); err != nil {
		t.Errorf("Hidden directory contents should be untouched: %v", err)
	}
}

func TestLockEmptyFolder(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()
	password := []byte("test123")

	result, err := e.Lock(ctx, dir, password)
	if err != nil {
		t.Fatalf("Lock of empty folder failed: %v", err)
	}
	if result.FileCount != 0 {
		t.Errorf("Expected empty manifest, got %d entries", result.FileCount)
	}
	if !metadata.Exists(dir) {
		t.Error("Descriptor should exist for an empty locked folder")
	}

	if _, err := e.Unlock(ctx, dir, password); err != nil {
		t.Fatalf("Unlock of empty folder failed: %v", err)
	}
	if metadata.Exists(dir) {
		t.Error("Descriptor should be removed after unlock")
	}
}

func TestLockResumesAfterInterruption(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()
	password := []byte("test123")

	writeFile(t, filepath.Join(dir, "done.txt"), "already converted")
	writeFile(t, filepath.Join(dir, "todo.txt"), "still plaintext")

	// Simulate a lock that died after converting one file: pending
	// descriptor on disk, done.txt replaced by its artifact.
	_, key, err := e.beginLock(dir, password)
	if err != nil {
		t.Fatalf("beginLock failed: %v", err)
	}
	validator, err := security.New(dir)
	if err != nil {
		t.Fatalf("Failed to open validator: %v", err)
	}
	enc := crypto.NewEncryptor(key)
	if err := e.convertFile(validator, enc, "done.txt"); err != nil {
		t.Fatalf("convertFile failed: %v", err)
	}
	validator.Close()
	enc.Destroy()

	if !metadata.PendingExists(dir) {
		t.Fatal("Pending descriptor should exist after interrupted lock")
	}

	// Wrong password cannot resume
	if _, err := e.Lock(ctx, dir, []byte("not-it")); !errs.IsKind(err, errs.KindWrongPassword) {
		t.Errorf("Expected KindWrongPassword on resume, got %v", err)
	}

	// Correct password adopts the converted file and finishes the rest
	result, err := e.Lock(ctx, dir, password)
	if err != nil {
		t.Fatalf("Resumed lock failed: %v", err)
	}
	if result.FileCount != 2 {
		t.Errorf("Expected 2 manifest entries, got %d", result.FileCount)
	}
	if result.Resumed != 1 {
		t.Errorf("Expected 1 adopted artifact, got %d", result.Resumed)
	}
	if metadata.PendingExists(dir) {
		t.Error("Pending descriptor should be removed after commit")
	}

	// Both files come back under the original password
	unlocked, err := e.Unlock(ctx, dir, password)
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if unlocked.Restored != 2 {
		t.Errorf("Expected 2 files restored, got %d", unlocked.Restored)
	}
	content, err := os.ReadFile(filepath.Join(dir, "done.txt"))
	if err != nil {
		t.Fatalf("Failed to read restored file: %v", err)
	}
	if string(content) != "already converted" {
		t.Errorf("Restored content mismatch: got %s", content)
	}
}

func TestLockReencryptsWhenOriginalSurvives(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()
	password := []byte("test123")

	// A crash between artifact write and original delete leaves both. The
	// torn artifact must be overwritten from the surviving original.
	writeFile(t, filepath.Join(dir, "a.txt"), "real content")
	if _, _, err := e.beginLock(dir, password); err != nil {
		t.Fatalf("beginLock failed: %v", err)
	}
	writeFile(t, filepath.Join(dir, "a.txt.locked"), "torn partial write")

	result, err := e.Lock(ctx, dir, password)
	if err != nil {
		t.Fatalf("Resumed lock failed: %v", err)
	}
	if result.FileCount != 1 || result.Resumed != 0 {
		t.Errorf("Expected 1 converted and 0 adopted, got %d and %d", result.FileCount, result.Resumed)
	}

	unlocked, err := e.Unlock(ctx, dir, password)
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if unlocked.Restored != 1 {
		t.Errorf("Expected 1 file restored, got %d", unlocked.Restored)
	}
	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("Failed to read restored file: %v", err)
	}
	if string(content) != "real content" {
		t.Errorf("Restored content mismatch: got %s, want real content", content)
	}
}

func TestLockRejectsUnexplainedArtifacts(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(nil)
	ctx := context.Background()

	// An artifact with no descriptor and no pending descriptor has no
	// recorded salt; locking must refuse rather than bury it in a new
	// manifest it can never decrypt.
	writeFile(t, filepath.Join(dir, "orphan.txt.locked"), "ciphertext from nowhere")
	writeFile(t, filepath.Join(dir, "fresh.txt"), "plaintext")

	_, err := e.Lock(ctx, dir, []byte("test123"))
	if !errs.IsKind(err, errs.KindCorruptMetadata) {
		t.Fatalf("Expected KindCorruptMetadata, got %v", err)
	}

	// Nothing was converted and no state was left behind.
	if _, err := os.Stat(filepath.Join(dir, "fresh.txt")); err != nil {
		t.Errorf("fresh.txt should be untouched: %v", err)
	}
	if metadata.Exists(dir) || metadata.PendingExists(dir) {
		t.Error("No descriptor should be written for a refused lock")
	}
}

func TestLockAll(t *testing.T) {
	e := newTestEngine(nil)
	ctx := context.Background()
	password := []byte("test123")

	first := t.TempDir()
	second := t.TempDir()
	third := t.TempDir()
	writeFile(t, filepath.Join(first, "a.txt"), "a")
	writeFile(t, filepath.Join(second, "b.txt"), "b")
	writeFile(t, filepath.Join(third, "c.txt"), "c")

	// Pre-lock one folder so the batch has to skip it
	if _, err := e.Lock(ctx, second, password); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	outcomes := e.LockAll(ctx, []string{first, second, third}, password)
	if len(outcomes) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil || outcomes[0].Skipped {
		t.Errorf("First folder should lock cleanly: %+v", outcomes[0])
	}
	if !outcomes[1].Skipped {
		t.Errorf("Already-locked folder should be skipped: %+v", outcomes[1])
	}
	if outcomes[2].Err != nil || outcomes[2].Result.FileCount != 1 {
		t.Errorf("Third folder should lock cleanly: %+v", outcomes[2])
	}
}

func TestLockAllContinuesPastFailures(t *testing.T) {
	e := newTestEngine(nil)
	ctx := context.Background()
	password := []byte("test123")

	good := t.TempDir()
	writeFile(t, filepath.Join(good, "a.txt"), "a")
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	outcomes := e.LockAll(ctx, []string{missing, good}, password)
	if outcomes[0].Err == nil {
		t.Error("Missing folder should report an error")
	}
	if outcomes[1].Err != nil {
		t.Errorf("Healthy folder should still lock: %v", outcomes[1].Err)
	}
	if !metadata.Exists(good) {
		t.Error("Healthy folder should be locked despite the failure")
	}
}

func TestCanonicalize(t *testing.T) {
	dir := t.TempDir()

	got, err := Canonicalize(dir)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("Expected absolute path, got %s", got)
	}

	if _, err := Canonicalize(""); !errs.IsKind(err, errs.KindInvalidPath) {
		t.Errorf("Expected KindInvalidPath for empty path, got %v", err)
	}
	if _, err := Canonicalize(filepath.Join(dir, "missing")); !errs.IsKind(err, errs.KindInvalidPath) {
		t.Errorf("Expected KindInvalidPath for missing folder, got %v", err)
	}

	file := filepath.Join(dir, "plain.txt")
	writeFile(t, file, "x")
	if _, err := Canonicalize(file); !errs.IsKind(err, errs.KindInvalidPath) {
		t.Errorf("Expected KindInvalidPath for a file, got %v", err)
	}
}
