package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/taseen/securelock/internal/crypto"
	logger "github.com/taseen/securelock/internal/logging"
)

// MinMasterPasswordLen is the smallest accepted master password.
const MinMasterPasswordLen = 4

// MasterSetup configures the master password once. There is no reset:
// replacing the master key would strand every existing recovery block.
func MasterSetup(log logger.Logger) {
	app := OpenAppOrExit(log)
	defer app.Close()

	configured, err := app.Master.IsConfigured()
	if err != nil {
		HandleError(err)
	}
	if configured {
		fmt.Fprintln(os.Stderr, "Error: a master password is already configured")
		fmt.Fprintln(os.Stderr, "It cannot be replaced: existing recovery blocks would become useless")
		os.Exit(1)
	}

	fmt.Println("The master password can recover any folder locked while it is unlocked.")
	fmt.Println("It cannot be changed or reset. Choose carefully.")
	password := GetMasterPasswordConfirmOrExit("Enter new master password: ")
	defer crypto.ClearBytes(password)

	if len(password) < MinMasterPasswordLen {
		fmt.Fprintf(os.Stderr, "Error: master password must be at least %d characters\n", MinMasterPasswordLen)
		os.Exit(1)
	}

	if err := app.Master.Setup(password); err != nil {
		HandleError(err)
	}

	fmt.Println("Master password configured")
	fmt.Println("Folders locked after 'securelock master verify' get a recovery block")
}

// MasterVerify checks the master password and reports the result
func MasterVerify(log logger.Logger) {
	app := OpenAppOrExit(log)
	defer app.Close()

	password := GetMasterPasswordOrExit("Enter master password: ")
	defer crypto.ClearBytes(password)

	if err := app.Master.Verify(password); err != nil {
		HandleError(err)
	}

	fmt.Println("Master password verified")
}

// MasterStatus reports whether a master password is configured
func MasterStatus(log logger.Logger) {
	app := OpenAppOrExit(log)
	defer app.Close()

	record, err := app.Store.GetMaster()
	if err != nil {
		HandleError(err)
	}
	if record == nil {
		fmt.Println("Master password: not configured")
		fmt.Println("Run 'securelock master setup' to configure one")
		return
	}

	fmt.Println("Master password: configured")
	fmt.Printf("  since: %s\n", record.CreatedAt.Format(time.RFC3339))
	if app.Master.IsUnlocked() {
		fmt.Println("  session: unlocked")
	} else {
		fmt.Println("  session: locked")
	}
}

// MasterLock clears the in-memory master session
func MasterLock(log logger.Logger) {
	app := OpenAppOrExit(log)
	defer app.Close()

	app.Master.Lock()
	fmt.Println("Master session cleared")
}
