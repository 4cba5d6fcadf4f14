package git

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Exposure describes how a folder overlaps with git version control.
// Encrypting files in place does not touch the git index or history, so
// anything git tracked before a lock stays readable through git.
type Exposure struct {
	InsideWorkTree bool
	TrackedFiles   []string // files under the folder that git tracks
}

// InsideWorkTree reports whether dir sits inside a git work tree.
func InsideWorkTree(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	return cmd.Run() == nil
}

// trackedUnder lists the git-tracked files under dir, relative to dir.
func trackedUnder(dir string) []string {
	cmd := exec.Command("git", "ls-files", "-z", "--", ".")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range bytes.Split(output, []byte{0}) {
		if len(entry) > 0 {
			files = append(files, string(entry))
		}
	}
	return files
}

// CheckExposure probes a folder's git exposure. git being absent or the
// folder sitting outside any repository both yield a clean result.
func CheckExposure(dir string) *Exposure {
	exposure := &Exposure{}
	if !InsideWorkTree(dir) {
		return exposure
	}
	exposure.InsideWorkTree = true
	exposure.TrackedFiles = trackedUnder(dir)
	return exposure
}

// Warning renders the exposure as a short warning, or "" when there is
// nothing to say.
func (e *Exposure) Warning() string {
	if !e.InsideWorkTree || len(e.TrackedFiles) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d file(s) in this folder are tracked by git; locking does not remove their plaintext from git history", len(e.TrackedFiles))
	sample := e.TrackedFiles
	if len(sample) > 3 {
		sample = sample[:3]
	}
	for _, file := range sample {
		b.WriteString("\n  - " + file)
	}
	if len(e.TrackedFiles) > len(sample) {
		fmt.Fprintf(&b, "\n  ... and %d more", len(e.TrackedFiles)-len(sample))
	}
	return b.String()
}
