package cmd

import (
	"fmt"

	logger "github.com/taseen/securelock/internal/logging"
)

// Remove stops tracking a folder. The folder's contents are never touched;
// only the registry record goes away.
func Remove(log logger.Logger, path string, force bool) {
	app := OpenAppOrExit(log)
	defer app.Close()

	if err := app.Registry.Remove(path, force); err != nil {
		HandleError(err)
	}

	fmt.Printf("No longer tracking %s\n", path)
	if force {
		fmt.Println("Note: if the folder was locked it stays encrypted on disk")
	}
}
