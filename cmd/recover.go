package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/taseen/securelock/internal/crypto"
	logger "github.com/taseen/securelock/internal/logging"
)

// Recover restores a tracked folder through its recovery block, using the
// master password instead of the folder password.
func Recover(ctx context.Context, log logger.Logger, path string) {
	app := OpenAppOrExit(log)
	defer app.Close()

	recoverable, err := app.Registry.CheckRecoveryKey(path)
	if err != nil {
		HandleError(err)
	}
	if !recoverable {
		configured, cfgErr := app.Master.IsConfigured()
		if cfgErr == nil && !configured {
			fmt.Fprintln(os.Stderr, "Error: no master password is configured")
			fmt.Fprintln(os.Stderr, "Run 'securelock master setup' first")
		} else {
			fmt.Fprintln(os.Stderr, "This folder has no usable recovery block")
			fmt.Fprintln(os.Stderr, "A recovery block is attached when a folder is locked while the")
			fmt.Fprintln(os.Stderr, "master session is unlocked ('securelock master verify')")
		}
		os.Exit(1)
	}

	// Each CLI invocation is a fresh process, so the session is
	// established here and dies with the process.
	password := GetMasterPasswordOrExit("Enter master password: ")
	defer crypto.ClearBytes(password)
	if err := app.Master.Verify(password); err != nil {
		HandleError(err)
	}

	result, err := app.Registry.Recover(ctx, path)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Recovered %d file(s)\n", result.Restored)
	if result.Skipped > 0 {
		fmt.Printf("  %d already restored by an earlier run\n", result.Skipped)
	}
	fmt.Println("Consider re-locking with a password you can remember")
}
