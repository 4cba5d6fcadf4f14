package engine

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/taseen/securelock/internal/crypto"
	"github.com/taseen/securelock/internal/errs"
	"github.com/taseen/securelock/internal/metadata"
	"github.com/taseen/securelock/internal/security"
)

// LockResult summarizes a completed lock.
type LockResult struct {
	Path        string
	FileCount   int  // manifest length
	Resumed     int  // artifacts adopted from an interrupted earlier lock
	HasRecovery bool // a recovery block was attached
}

// Lock encrypts every regular file in the folder in place and commits the
// descriptor as the final step.
//
// Per file the order is: write the encrypted sibling, confirm it, then
// delete the original. A crash therefore leaves a mix of converted and
// unconverted files but never a file with no intact copy. Before the first
// conversion the salt and verify token are persisted to a pending
// descriptor, so re-invoking Lock after an interruption re-derives the
// same key, verifies the password against it, adopts already-converted
// artifacts, and finishes the remainder.
func (e *Engine) Lock(ctx context.Context, folder string, password []byte) (*LockResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folder, err := Canonicalize(folder)
	if err != nil {
		return nil, err
	}

	release := e.locks.acquire(folder)
	defer release()

	if metadata.Exists(folder) {
		return nil, errs.Path(errs.KindAlreadyLocked, folder, "folder is already locked")
	}

	validator, err := security.New(folder)
	if err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, folder, err)
	}
	defer validator.Close()

	originals, artifacts, err := enumerate(folder)
	if err != nil {
		return nil, err
	}

	// An artifact is only decryptable under the salt that produced it. With
	// no descriptor and no pending descriptor that salt is unknown, so the
	// artifacts cannot be adopted or safely locked over.
	if len(artifacts) > 0 && !metadata.PendingExists(folder) {
		return nil, errs.Path(errs.KindCorruptMetadata, folder,
			"found *.locked artifacts but no record of the lock that made them")
	}

	meta, key, err := e.beginLock(folder, password)
	if err != nil {
		return nil, err
	}
	enc := crypto.NewEncryptor(key)
	defer enc.Destroy()

	result := &LockResult{Path: folder, HasRecovery: meta.HasRecovery()}

	// Originals still on disk are converted even when a same-named artifact
	// exists: a crash between artifact write and original delete can leave
	// both, and only the original is known intact. Overwriting the artifact
	// repairs a torn write from the interrupted run.
	stillPresent := make(map[string]bool, len(originals))
	for _, rel := range originals {
		stillPresent[rel] = true
	}

	for _, rel := range artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		origRel := strings.TrimSuffix(rel, metadata.LockedExt)
		if stillPresent[origRel] {
			continue // original survives, will be re-encrypted below
		}
		meta.AddFile(entryFor(origRel))
		result.Resumed++
		e.log.Debugf("adopted: %s", rel)
	}

	for _, rel := range originals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.convertFile(validator, enc, rel); err != nil {
			// The pending descriptor stays behind so the next Lock
			// resumes instead of re-keying.
			return nil, err
		}
		meta.AddFile(entryFor(rel))
		e.log.Infof("locked: %s", rel)
	}

	// The committed descriptor is the single marker for "lock complete";
	// it is written only after every file is converted.
	if err := metadata.Write(folder, meta); err != nil {
		return nil, err
	}
	if err := metadata.RemovePending(folder); err != nil {
		e.log.Warnf("failed to remove pending descriptor: %v", err)
	}

	result.FileCount = len(meta.Files)
	return result, nil
}

// beginLock produces the descriptor skeleton and folder key, either by
// resuming a pending lock or by starting fresh. The pending descriptor is
// persisted before any file is touched.
func (e *Engine) beginLock(folder string, password []byte) (*metadata.Metadata, []byte, error) {
	if metadata.PendingExists(folder) {
		pending, err := metadata.ReadPending(folder)
		if err != nil {
			return nil, nil, err
		}

		key := crypto.DeriveKey(password, pending.Salt, pending.KDF.Params())
		enc := crypto.NewEncryptor(key)
		if !enc.CheckVerifyToken(pending.VerifyToken) {
			enc.Destroy()
			return nil, nil, errs.Path(errs.KindWrongPassword, folder,
				"resuming an interrupted lock requires its original password")
		}

		pending.Files = pending.Files[:0]
		return pending, key, nil
	}

	salt, err := crypto.GenerateRandom(crypto.SaltSize)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindIoFailure, folder, err)
	}
	key := crypto.DeriveKey(password, salt, e.params)

	enc := crypto.NewEncryptor(key)
	token, err := enc.MakeVerifyToken()
	if err != nil {
		enc.Destroy()
		return nil, nil, errs.Wrap(errs.KindIoFailure, folder, err)
	}

	meta := metadata.New(salt, e.params, token)
	if err := e.attachRecovery(folder, meta, key); err != nil {
		crypto.ClearBytes(key)
		return nil, nil, err
	}

	if err := metadata.WritePending(folder, meta); err != nil {
		crypto.ClearBytes(key)
		return nil, nil, err
	}
	return meta, key, nil
}

// attachRecovery wraps the folder key under the master key when the master
// session is unlocked. A locked or unconfigured session simply means no
// recovery block; it is not an error.
func (e *Engine) attachRecovery(folder string, meta *metadata.Metadata, folderKey []byte) error {
	if e.master == nil || !e.master.IsUnlocked() {
		return nil
	}

	masterKey, err := e.master.SessionKey()
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(masterKey)

	wrapSalt, err := e.master.WrapSalt()
	if err != nil {
		return err
	}

	nonce, wrapped, err := crypto.WrapKey(masterKey, folderKey)
	if err != nil {
		return errs.Wrap(errs.KindIoFailure, folder, err)
	}

	meta.Recovery = &metadata.RecoveryData{
		WrapSalt:   append([]byte(nil), wrapSalt...),
		WrapNonce:  nonce,
		WrappedKey: wrapped,
	}
	return nil
}

// convertFile encrypts one original into its suffixed sibling and removes
// the original only after the artifact is confirmed on disk.
func (e *Engine) convertFile(validator *security.PathValidator, enc *crypto.Encryptor, rel string) error {
	plaintext, err := validator.ReadFileInRoot(rel)
	if err != nil {
		return errs.Wrap(errs.KindIoFailure, rel, err)
	}

	ciphertext, err := enc.Encrypt(plaintext)
	crypto.ClearBytes(plaintext)
	if err != nil {
		return errs.Wrap(errs.KindIoFailure, rel, err)
	}

	artifactRel := rel + metadata.LockedExt
	if err := validator.WriteFileInRoot(artifactRel, ciphertext, FilePermSecure); err != nil {
		return errs.Wrap(errs.KindIoFailure, artifactRel, err)
	}
	// Confirm the artifact before destroying the original.
	if _, err := validator.StatInRoot(artifactRel); err != nil {
		return errs.Wrap(errs.KindIoFailure, artifactRel, err)
	}
	if err := validator.RemoveInRoot(rel); err != nil {
		return errs.Wrap(errs.KindIoFailure, rel, err)
	}
	return nil
}

func entryFor(rel string) metadata.FileEntry {
	name := path.Base(rel)
	return metadata.FileEntry{
		OriginalName: name,
		LockedName:   name + metadata.LockedExt,
		RelativePath: rel,
	}
}

// enumerate walks the folder and returns originals and .locked artifacts
// as slash-relative paths in walk order. Hidden files and directories are
// skipped entirely, which also keeps the descriptor files themselves out
// of the listings.
func enumerate(folder string) (originals, artifacts []string, err error) {
	err = filepath.WalkDir(folder, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if p != folder && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || metadata.IsReserved(name) {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(folder, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if strings.HasSuffix(name, metadata.LockedExt) {
			artifacts = append(artifacts, rel)
		} else {
			originals = append(originals, rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindIoFailure, folder, err)
	}
	return originals, artifacts, nil
}

// LockAllOutcome is the per-folder result of a LockAll batch.
type LockAllOutcome struct {
	Path    string
	Skipped bool // folder was already locked
	Result  *LockResult
	Err     error
}

// LockAll locks every given folder with one password. Folders are
// processed concurrently and failures never abort the batch: each outcome
// is reported individually, and already-locked folders count as skipped
// rather than failed.
func (e *Engine) LockAll(ctx context.Context, folders []string, password []byte) []LockAllOutcome {
	outcomes := make([]LockAllOutcome, len(folders))

	var wg sync.WaitGroup
	for i, folder := range folders {
		wg.Add(1)
		go func(i int, folder string) {
			defer wg.Done()

			result, err := e.Lock(ctx, folder, password)
			if errs.IsKind(err, errs.KindAlreadyLocked) {
				outcomes[i] = LockAllOutcome{Path: folder, Skipped: true}
				return
			}
			outcomes[i] = LockAllOutcome{Path: folder, Result: result, Err: err}
		}(i, folder)
	}
	wg.Wait()

	return outcomes
}
