package cmd

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/taseen/securelock/internal/crypto"
)

// Password environment variables for non-interactive use. Folder and
// master passwords are separate secrets and never share a variable.
const (
	EnvPassword       = "SECURELOCK_PASSWORD"
	EnvMasterPassword = "SECURELOCK_MASTER_PASSWORD"
)

// ReadPassword reads a password from the terminal without echoing
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after password

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// ReadPasswordConfirm reads a password twice and ensures they match
func ReadPasswordConfirm(prompt string) ([]byte, error) {
	password1, err := ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	password2, err := ReadPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, fmt.Errorf("passwords do not match")
	}

	// Return a copy of the password
	result := make([]byte, len(password1))
	copy(result, password1)
	return result, nil
}

// passwordFromEnv returns a copy of the named variable's value, or nil
// when unset, so callers can clear it without touching the environment.
func passwordFromEnv(name string) []byte {
	password := os.Getenv(name)
	if password == "" {
		return nil
	}
	result := make([]byte, len(password))
	copy(result, []byte(password))
	return result
}

// GetPassword retrieves the folder password from the environment or
// prompts. The caller is responsible for crypto.ClearBytes on the result.
func GetPassword(prompt string) ([]byte, error) {
	if password := passwordFromEnv(EnvPassword); password != nil {
		return password, nil
	}
	return ReadPassword(prompt)
}

// GetPasswordOrExit is like GetPassword but exits on error
func GetPasswordOrExit(prompt string) []byte {
	password, err := GetPassword(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}

// GetPasswordConfirmOrExit prompts twice for a new folder password. The
// environment variable skips the confirmation for scripted use.
func GetPasswordConfirmOrExit(prompt string) []byte {
	if password := passwordFromEnv(EnvPassword); password != nil {
		return password
	}
	password, err := ReadPasswordConfirm(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}

// GetMasterPasswordOrExit retrieves the master password from the
// environment or prompts, exiting on error.
func GetMasterPasswordOrExit(prompt string) []byte {
	if password := passwordFromEnv(EnvMasterPassword); password != nil {
		return password
	}
	password, err := ReadPassword(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}

// GetMasterPasswordConfirmOrExit prompts twice for a new master password.
func GetMasterPasswordConfirmOrExit(prompt string) []byte {
	if password := passwordFromEnv(EnvMasterPassword); password != nil {
		return password
	}
	password, err := ReadPasswordConfirm(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}
