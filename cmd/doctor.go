package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/taseen/securelock/internal/git"
	logger "github.com/taseen/securelock/internal/logging"
	"github.com/taseen/securelock/internal/metadata"
	"github.com/taseen/securelock/internal/storage"
)

// Doctor inspects a tracked folder: state, manifest-vs-disk census, and
// recovery block health. Without a path it reports on the registry
// database itself. With compact it also compacts the registry database.
func Doctor(log logger.Logger, path string, compact bool) {
	app := OpenAppOrExit(log)
	defer app.Close()

	if path != "" {
		diagnose(app, path)
	} else {
		registryInfo(app)
	}

	if compact {
		compactRegistry(app)
	}
}

// registryInfo reports the registry database location, size, and contents.
func registryInfo(app *App) {
	dbPath, err := storage.DefaultPath()
	if err != nil {
		HandleError(err)
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		HandleError(err)
	}
	folders, err := app.Registry.List()
	if err != nil {
		HandleError(err)
	}

	var locked int
	for _, folder := range folders {
		if folder.Status.Locked {
			locked++
		}
	}

	fmt.Printf("Registry: %s\n", dbPath)
	fmt.Printf("  size: %s\n", formatSize(info.Size()))
	fmt.Printf("  tracked folders: %d (%d locked)\n", len(folders), locked)
	if modified, err := app.Store.GetModified(); err == nil {
		fmt.Printf("  last modified: %s\n", modified.Format(time.RFC3339))
	}
}

func diagnose(app *App, path string) {
	folder, err := app.Registry.Get(path)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("%s: %s\n", folder.Path, formatState(*folder))
	if folder.Status.Detail != "" {
		fmt.Printf("  %s\n", folder.Status.Detail)
	}

	st := folder.Status
	if st.Missing {
		fmt.Println("  the folder no longer exists; 'securelock remove' drops the record")
		return
	}
	if st.Pending {
		if st.Locked {
			fmt.Println("  a leftover pending descriptor remains; the next unlock clears it")
		} else {
			fmt.Println("  an interrupted lock left a pending descriptor;")
			fmt.Println("  run 'securelock lock' with the same password to finish it")
		}
	}
	if !st.Locked {
		fmt.Printf("  %d file(s) would be locked\n", st.FileCount)
		printGitExposure(folder.Path)
		return
	}

	meta, err := metadata.Read(folder.Path)
	if err != nil {
		fmt.Println("  descriptor: " + color.RedString("unreadable"))
		fmt.Println("  without a readable descriptor the files cannot be restored;")
		fmt.Println("  replace it from a backup if one exists")
		printGitExposure(folder.Path)
		return
	}

	printCensus(app, folder.Path)
	printRecoveryHealth(app, meta)
	printGitExposure(folder.Path)
}

func printGitExposure(folder string) {
	exposure := git.CheckExposure(folder)
	if !exposure.InsideWorkTree {
		return
	}
	if warning := exposure.Warning(); warning != "" {
		fmt.Println("  git: " + color.YellowString("EXPOSED"))
		fmt.Println("    " + strings.ReplaceAll(warning, "\n", "\n    "))
		return
	}
	fmt.Println("  git: inside a work tree, no tracked files")
}

// printCensus diffs the manifest's expected artifacts against the folder.
func printCensus(app *App, folder string) {
	expected, onDisk, err := app.Engine.Census(folder)
	if err != nil {
		HandleError(err)
	}

	sort.Strings(expected)
	sort.Strings(onDisk)

	if slicesEqual(expected, onDisk) {
		fmt.Printf("  manifest matches disk (%d artifact(s))\n", len(expected))
		return
	}

	fmt.Println("  manifest and disk disagree:")

	// Line-mode diff over the sorted listings
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(joinLines(expected), joinLines(onDisk))
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				fmt.Printf("      %s\n", line)
			case diffmatchpatch.DiffDelete:
				fmt.Printf("    %s\n", color.RedString("- %s (artifact missing)", line))
			case diffmatchpatch.DiffInsert:
				fmt.Printf("    %s\n", color.YellowString("+ %s (not in manifest)", line))
			}
		}
	}
	fmt.Println("  missing artifacts make those files unrecoverable unless restored from backup")
}

func printRecoveryHealth(app *App, meta *metadata.Metadata) {
	if !meta.HasRecovery() {
		fmt.Println("  recovery: no block (folder password only)")
		return
	}

	record, err := app.Store.GetMaster()
	if err != nil {
		HandleError(err)
	}
	switch {
	case record == nil:
		fmt.Println("  recovery: block present but no master password is configured")
	case !bytes.Equal(meta.Recovery.WrapSalt, record.Salt):
		fmt.Println("  recovery: " + color.YellowString("STALE") + " (wrapped under a different master descriptor)")
	default:
		fmt.Println("  recovery: usable with the master password")
	}
}

func compactRegistry(app *App) {
	dbPath, err := storage.DefaultPath()
	if err != nil {
		HandleError(err)
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		HandleError(err)
	}
	sizeBefore := info.Size()

	if err := app.Store.Compact(); err != nil {
		HandleError(err)
	}

	info, err = os.Stat(dbPath)
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Compacted registry: %s -> %s\n", formatSize(sizeBefore), formatSize(info.Size()))
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func splitLines(text string) []string {
	trimmed := strings.TrimRight(text, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
