package engine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/taseen/securelock/internal/metadata"
)

// FolderStatus is a point-in-time inspection of one folder. It is computed
// from the folder itself, never from cached registry state.
type FolderStatus struct {
	Path        string
	Missing     bool // folder no longer exists on disk
	Locked      bool // committed descriptor present
	Pending     bool // interrupted lock left a pending descriptor
	Corrupt     bool // descriptor unreadable, or artifacts disagree with the manifest
	FileCount   int  // manifest length when locked, eligible file count otherwise
	HasRecovery bool
	Detail      string // human-readable note for Corrupt and Missing
}

// Status inspects a folder without touching its contents. A locked folder
// is corrupt when its descriptor cannot be read or when the artifacts on
// disk do not account for the manifest: every entry must have either its
// artifact or its restored original present.
func (e *Engine) Status(folder string) FolderStatus {
	st := FolderStatus{Path: folder}

	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		st.Missing = true
		st.Detail = "folder does not exist"
		return st
	}

	st.Pending = metadata.PendingExists(folder)

	if !metadata.Exists(folder) {
		if originals, _, err := enumerate(folder); err == nil {
			st.FileCount = len(originals)
		}
		return st
	}
	st.Locked = true

	meta, err := metadata.Read(folder)
	if err != nil {
		st.Corrupt = true
		st.Detail = err.Error()
		return st
	}
	st.FileCount = len(meta.Files)
	st.HasRecovery = meta.HasRecovery()

	missing, unlisted := censusGap(folder, meta)
	var details []string
	if len(missing) > 0 {
		details = append(details, "missing artifacts: "+strings.Join(missing, ", "))
	}
	if len(unlisted) > 0 {
		details = append(details, "artifacts not in manifest: "+strings.Join(unlisted, ", "))
	}
	if len(details) > 0 {
		st.Corrupt = true
		st.Detail = strings.Join(details, "; ")
	}
	return st
}

// Census returns the artifacts the manifest expects and the artifacts
// actually on disk, both slash-relative, for diagnostic rendering.
func (e *Engine) Census(folder string) (expected, onDisk []string, err error) {
	folder, err = Canonicalize(folder)
	if err != nil {
		return nil, nil, err
	}

	meta, err := metadata.Read(folder)
	if err != nil {
		return nil, nil, err
	}
	for _, rel := range meta.OriginalPaths() {
		expected = append(expected, rel+metadata.LockedExt)
	}

	_, onDisk, err = enumerate(folder)
	if err != nil {
		return nil, nil, err
	}
	return expected, onDisk, nil
}

// censusGap compares the manifest against the artifacts on disk in both
// directions. Missing holds manifest entries with neither artifact nor
// original present (originals count because an interrupted unlock
// legitimately leaves restored files alongside remaining artifacts);
// unlisted holds artifacts the manifest does not account for, which a
// lock never produces and an unlock would leave behind as ciphertext.
func censusGap(folder string, meta *metadata.Metadata) (missing, unlisted []string) {
	_, artifacts, err := enumerate(folder)
	if err != nil {
		return nil, nil
	}
	onDisk := make(map[string]bool, len(artifacts))
	for _, rel := range artifacts {
		onDisk[rel] = true
	}

	expected := make(map[string]bool, len(meta.Files))
	for _, entry := range meta.Files {
		artifactRel := entry.RelativePath + metadata.LockedExt
		expected[artifactRel] = true
		if onDisk[artifactRel] {
			continue
		}
		if _, err := os.Stat(filepath.Join(folder, filepath.FromSlash(entry.RelativePath))); err == nil {
			continue
		}
		missing = append(missing, entry.RelativePath)
	}

	for _, rel := range artifacts {
		if !expected[rel] {
			unlisted = append(unlisted, rel)
		}
	}
	return missing, unlisted
}
