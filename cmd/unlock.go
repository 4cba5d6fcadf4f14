package cmd

import (
	"context"
	"fmt"

	"github.com/taseen/securelock/internal/crypto"
	logger "github.com/taseen/securelock/internal/logging"
)

// Unlock restores a tracked folder in place
func Unlock(ctx context.Context, log logger.Logger, path string) {
	app := OpenAppOrExit(log)
	defer app.Close()

	password := GetPasswordOrExit("Enter password: ")
	defer crypto.ClearBytes(password)

	result, err := app.Registry.Unlock(ctx, path, password)
	if err != nil {
		HandleError(err)
	}

	// Print summary
	fmt.Printf("Restored %d file(s)\n", result.Restored)
	if result.Skipped > 0 {
		fmt.Printf("  %d already restored by an earlier run\n", result.Skipped)
	}
}
