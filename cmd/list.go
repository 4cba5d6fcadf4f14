package cmd

import (
	"fmt"

	"github.com/fatih/color"

	logger "github.com/taseen/securelock/internal/logging"
	"github.com/taseen/securelock/internal/registry"
)

// List shows every tracked folder with its live state
func List(log logger.Logger) {
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

	fmt.Println("Tracked folders:")
	for _, folder := range folders {
		fmt.Printf("  %-10s %s%s\n", formatState(folder), folder.Path, formatNotes(folder))
		if folder.Status.Detail != "" {
			fmt.Printf("             %s\n", folder.Status.Detail)
		}
	}
}

// formatState renders the one-word folder state with color.
func formatState(folder registry.Folder) string {
	st := folder.Status
	switch {
	case st.Missing:
		return color.RedString("MISSING")
	case st.Corrupt:
		return color.RedString("CORRUPT")
	case st.Locked:
		return color.GreenString("LOCKED")
	case st.Pending:
		return color.YellowString("PENDING")
	default:
		return color.CyanString("UNLOCKED")
	}
}

func formatNotes(folder registry.Folder) string {
	st := folder.Status
	if st.Missing {
		return ""
	}
	notes := fmt.Sprintf(" (%d file(s)", st.FileCount)
	if st.Locked && st.HasRecovery {
		notes += ", recovery"
	}
	return notes + ")"
}
