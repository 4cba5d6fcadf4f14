package cmd

import (
	"fmt"

	logger "github.com/taseen/securelock/internal/logging"
)

// Add starts tracking a folder
func Add(log logger.Logger, path string) {
	app := OpenAppOrExit(log)
	defer app.Close()

	folder, err := app.Registry.Add(path)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Tracking %s\n", folder.Path)
	if folder.Status.Locked {
		fmt.Println("The folder is already locked; 'securelock unlock' will restore it")
	} else {
		fmt.Printf("%d file(s) eligible for locking\n", folder.Status.FileCount)
	}
}
