package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/taseen/securelock/internal/crypto"
	"github.com/taseen/securelock/internal/errs"
	"github.com/taseen/securelock/internal/metadata"
	"github.com/taseen/securelock/internal/security"
)

// UnlockResult summarizes a completed unlock or recovery.
type UnlockResult struct {
	Path     string
	Restored int
	Skipped  int // files already restored by an earlier interrupted run
}

// Unlock verifies the password against the descriptor's token, then
// restores every manifest entry in place. The descriptor is deleted last,
// so an interrupted unlock leaves the folder restorable by running Unlock
// again; entries whose original is already back are skipped.
func (e *Engine) Unlock(ctx context.Context, folder string, password []byte) (*UnlockResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folder, err := Canonicalize(folder)
	if err != nil {
		return nil, err
	}

	release := e.locks.acquire(folder)
	defer release()

	meta, err := readDescriptor(folder)
	if err != nil {
		return nil, err
	}

	key := crypto.DeriveKey(password, meta.Salt, meta.KDF.Params())
	enc := crypto.NewEncryptor(key)
	defer enc.Destroy()

	if !enc.CheckVerifyToken(meta.VerifyToken) {
		return nil, errs.Path(errs.KindWrongPassword, folder, "password does not match this folder")
	}

	return e.restoreFiles(ctx, "unlock", folder, meta, enc)
}

// Recover unlocks a folder through its recovery block instead of the
// folder password. The master session must already be unlocked; the folder
// key is unwrapped from the descriptor and then drives the same restore
// pass as Unlock.
func (e *Engine) Recover(ctx context.Context, folder string) (*UnlockResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folder, err := Canonicalize(folder)
	if err != nil {
		return nil, err
	}

	release := e.locks.acquire(folder)
	defer release()

	meta, err := readDescriptor(folder)
	if err != nil {
		return nil, err
	}
	if !meta.HasRecovery() {
		return nil, errs.Path(errs.KindNoRecoveryAvailable, folder,
			"folder was locked without a recovery block")
	}
	if e.master == nil {
		return nil, errs.New(errs.KindMasterNotUnlocked, "master password is not unlocked")
	}

	masterKey, err := e.master.SessionKey()
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(masterKey)

	key, err := crypto.UnwrapKey(masterKey, meta.Recovery.WrapNonce, meta.Recovery.WrappedKey)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthFailed) {
			return nil, errs.Path(errs.KindRecoveryFailed, folder,
				"recovery block does not match the current master key")
		}
		return nil, errs.Wrap(errs.KindCorruptMetadata, folder, err)
	}

	enc := crypto.NewEncryptor(key)
	defer enc.Destroy()

	// The unwrapped key must still match this folder's verify token. A
	// recovery block spliced in from another descriptor unwraps fine but
	// cannot decrypt these files.
	if !enc.CheckVerifyToken(meta.VerifyToken) {
		return nil, errs.Path(errs.KindRecoveryFailed, folder,
			"recovered key does not match this folder")
	}

	return e.restoreFiles(ctx, "recover", folder, meta, enc)
}

// readDescriptor loads the committed descriptor, mapping absence to the
// already-unlocked condition.
func readDescriptor(folder string) (*metadata.Metadata, error) {
	meta, err := metadata.Read(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Path(errs.KindAlreadyUnlocked, folder, "folder is not locked")
		}
		return nil, err
	}
	return meta, nil
}

// restoreFiles walks the manifest and converts each artifact back to its
// original. Per-file failures are collected rather than aborting: every
// healthy file is restored even when some artifacts are corrupt, and the
// descriptor survives so the damaged remainder stays recoverable. The
// descriptor is removed only after a fully clean pass.
func (e *Engine) restoreFiles(ctx context.Context, op, folder string, meta *metadata.Metadata, enc *crypto.Encryptor) (*UnlockResult, error) {
	validator, err := security.New(folder)
	if err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, folder, err)
	}
	defer validator.Close()

	result := &UnlockResult{Path: folder}
	var succeeded, failed []string
	var firstCause error

	fail := func(rel string, cause error) {
		failed = append(failed, rel)
		if firstCause == nil {
			firstCause = cause
		}
		e.log.Warnf("%s: %s: %v", op, rel, cause)
	}

	for _, entry := range meta.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel, err := validator.ValidateManifestPath(entry.RelativePath)
		if err != nil {
			fail(entry.RelativePath, err)
			continue
		}
		artifactRel := path.Join(path.Dir(rel), entry.LockedName)

		if _, err := validator.StatInRoot(artifactRel); err != nil {
			if os.IsNotExist(err) {
				// Restored by an earlier interrupted run, or the
				// artifact was lost. Only the former leaves the
				// original behind.
				if _, statErr := validator.StatInRoot(rel); statErr == nil {
					result.Skipped++
					continue
				}
				fail(rel, fmt.Errorf("artifact %s is missing", artifactRel))
				continue
			}
			fail(rel, err)
			continue
		}

		ciphertext, err := validator.ReadFileInRoot(artifactRel)
		if err != nil {
			fail(rel, err)
			continue
		}

		plaintext, err := enc.Decrypt(ciphertext)
		if err != nil {
			// The key already verified, so a bad tag means the artifact
			// itself is damaged. Leave it in place.
			fail(rel, errs.Wrap(errs.KindAuthenticationFailure, artifactRel, err))
			continue
		}

		err = validator.WriteFileInRoot(rel, plaintext, FilePermSecure)
		crypto.ClearBytes(plaintext)
		if err != nil {
			fail(rel, err)
			continue
		}

		if err := validator.RemoveInRoot(artifactRel); err != nil {
			e.log.Warnf("failed to remove artifact %s: %v", artifactRel, err)
		}
		succeeded = append(succeeded, rel)
		result.Restored++
		e.log.Infof("restored: %s", rel)
	}

	if len(failed) > 0 {
		return result, &errs.Partial{
			Op:        op,
			Path:      folder,
			Succeeded: succeeded,
			Failed:    failed,
			Cause:     firstCause,
		}
	}

	if err := metadata.Remove(folder); err != nil {
		return result, err
	}
	if err := metadata.RemovePending(folder); err != nil {
		e.log.Warnf("failed to remove pending descriptor: %v", err)
	}
	return result, nil
}
