package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/taseen/securelock/internal/crypto"
	"github.com/taseen/securelock/internal/engine"
	"github.com/taseen/securelock/internal/git"
	logger "github.com/taseen/securelock/internal/logging"
	"github.com/taseen/securelock/internal/metadata"
)

// Lock encrypts a tracked folder in place
func Lock(ctx context.Context, log logger.Logger, path string) {
	app := OpenAppOrExit(log)
	defer app.Close()

	// A fresh lock sets the folder's password, so it is confirmed. A
	// resumed lock only accepts the password the interrupted run used and
	// keeps whatever recovery block the interrupted run attached.
	var password []byte
	if pendingLock(path) {
		fmt.Println("An interrupted lock was found; resuming it")
		password = GetPasswordOrExit("Enter the password of the interrupted lock: ")
	} else {
		maybeUnlockMaster(app)
		password = GetPasswordConfirmOrExit("Enter password: ")
	}
	defer crypto.ClearBytes(password)

	result, err := app.Registry.Lock(ctx, path, password)
	if err != nil {
		HandleError(err)
	}

	reportLock(app, result.FileCount, result.Resumed, result.HasRecovery)

	if warning := git.CheckExposure(result.Path).Warning(); warning != "" {
		app.Log.Warnf("%s", warning)
	}
}

// pendingLock reports whether an interrupted lock left a pending
// descriptor behind. The path is resolved the way the engine resolves it,
// so a symlinked or differently-spelled invocation cannot misclassify a
// resume as a fresh lock.
func pendingLock(path string) bool {
	canonical, err := engine.Canonicalize(path)
	if err != nil {
		return false
	}
	return metadata.PendingExists(canonical)
}

// maybeUnlockMaster establishes a master session for this invocation so the
// lock can attach a recovery block. Entering nothing skips recovery; a wrong
// master password aborts rather than silently locking without one.
func maybeUnlockMaster(app *App) {
	configured, err := app.Master.IsConfigured()
	if err != nil || !configured {
		return
	}

	if password := passwordFromEnv(EnvMasterPassword); password != nil {
		defer crypto.ClearBytes(password)
		if err := app.Master.Verify(password); err != nil {
			HandleError(err)
		}
		return
	}

	password, err := ReadPassword("Master password to attach a recovery block (empty to skip): ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if len(password) == 0 {
		return
	}
	defer crypto.ClearBytes(password)
	if err := app.Master.Verify(password); err != nil {
		HandleError(err)
	}
}

func reportLock(app *App, fileCount, resumed int, hasRecovery bool) {
	fmt.Printf("Locked %d file(s)\n", fileCount)
	if resumed > 0 {
		fmt.Printf("  %d already encrypted by the interrupted run\n", resumed)
	}
	if hasRecovery {
		fmt.Println("Recovery block attached (master password can restore this folder)")
		return
	}

	configured, err := app.Master.IsConfigured()
	if err == nil && !configured {
		fmt.Println("Note: no master password is configured; 'securelock master setup' enables recovery")
		return
	}
	fmt.Println("Note: no recovery block; only this password can restore this folder")
}

// LockAll locks every tracked folder under one password
func LockAll(ctx context.Context, log logger.Logger, force bool) {
	app := OpenAppOrExit(log)
	defer app.Close()

	folders, err := app.Registry.List()
	if err != nil {
		HandleError(err)
	}
	if len(folders) == 0 {
		fmt.Println("No tracked folders")
		fmt.Println("Run 'securelock add <path>' to track one")
		return
	}

	var unlocked int
	for _, folder := range folders {
		if !folder.Status.Locked {
			unlocked++
		}
	}
	fmt.Printf("%d tracked folder(s), %d to lock\n", len(folders), unlocked)
	if unlocked == 0 {
		fmt.Println("Nothing to do")
		return
	}

	// Ask for confirmation unless --force
	if !force {
		fmt.Printf("Lock %d folder(s) with one password? [Y/n]: ", unlocked)
		var response string
		fmt.Scanln(&response)
		response = strings.ToLower(strings.TrimSpace(response))
		if response == "n" || response == "no" {
			fmt.Println("Cancelled")
			return
		}
	}

	maybeUnlockMaster(app)
	password := GetPasswordConfirmOrExit("Enter password: ")
	defer crypto.ClearBytes(password)

	outcomes, err := app.Registry.LockAll(ctx, password)
	if err != nil {
		HandleError(err)
	}

	var locked, skipped, failed int
	for _, outcome := range outcomes {
		switch {
		case outcome.Skipped:
			skipped++
			fmt.Printf("  skipped (already locked): %s\n", outcome.Path)
		case outcome.Err != nil:
			failed++
			fmt.Printf("  FAILED: %s: %s\n", outcome.Path, outcome.Err)
		default:
			locked++
			fmt.Printf("  locked: %s (%d file(s))\n", outcome.Path, outcome.Result.FileCount)
		}
	}

	fmt.Printf("%d locked, %d skipped, %d failed\n", locked, skipped, failed)
	if failed > 0 {
		fmt.Println("Failed folders were left unlocked or resumable; re-run to retry")
		os.Exit(1)
	}
}
