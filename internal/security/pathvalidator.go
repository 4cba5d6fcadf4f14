package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes folder")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
)

// PathValidator confines file operations to a single locked folder using
// Go 1.24's os.Root API. Manifest entries come from an on-disk descriptor
// that anyone could have edited, so every relative path they supply is
// validated and resolved inside the folder root before it touches the
// filesystem.
type PathValidator struct {
	folderRoot *os.Root
	folderPath string
}

// New creates a PathValidator rooted at the given folder. All reads,
// writes, and removals through the validator stay within that folder,
// preventing a tampered manifest from reaching files outside it.
func New(folderPath string) (*PathValidator, error) {
	absPath, err := filepath.Abs(folderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open folder root: %w", err)
	}

	return &PathValidator{
		folderRoot: root,
		folderPath: absPath,
	}, nil
}

// Close releases resources held by the PathValidator.
func (pv *PathValidator) Close() error {
	if pv.folderRoot != nil {
		return pv.folderRoot.Close()
	}
	return nil
}

// ValidateAndNormalize validates a relative path and returns its normalized
// forward-slash form for the manifest. It rejects:
// - Empty paths
// - Absolute paths
// - Paths that escape the folder (using ..)
// - Paths that are not local (using filepath.IsLocal)
func (pv *PathValidator) ValidateAndNormalize(userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}

	// filepath.IsLocal rejects absolute paths, escaping paths, and
	// platform-reserved names in one check.
	if !filepath.IsLocal(userPath) {
		if filepath.IsAbs(userPath) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, userPath)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	cleanPath := filepath.Clean(userPath)
	if !filepath.IsLocal(cleanPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, cleanPath)
	}

	// Re-anchor under the folder and verify containment with filepath.Rel.
	absPath := filepath.Join(pv.folderPath, cleanPath)
	relPath, err := filepath.Rel(pv.folderPath, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	// Manifest entries use forward slashes regardless of platform.
	return filepath.ToSlash(relPath), nil
}

// ValidateManifestPath validates a relative path read back from a stored
// descriptor. Descriptors live unprotected on disk, so stored paths get the
// same treatment as any other untrusted input.
func (pv *PathValidator) ValidateManifestPath(storedPath string) (string, error) {
	platformPath := filepath.FromSlash(storedPath)
	return pv.ValidateAndNormalize(platformPath)
}

// WriteFileInRoot writes a file inside the folder via os.Root after
// validating the relative path. A traversal path fails before any byte is
// written.
func (pv *PathValidator) WriteFileInRoot(path string, data []byte, perm os.FileMode) error {
	platformPath := filepath.FromSlash(path)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return pv.folderRoot.WriteFile(platformPath, data, perm)
}

// ReadFileInRoot reads a file inside the folder via os.Root after
// validating the relative path.
func (pv *PathValidator) ReadFileInRoot(path string) ([]byte, error) {
	platformPath := filepath.FromSlash(path)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.folderRoot.ReadFile(platformPath)
}

// RemoveInRoot removes a file inside the folder via os.Root after
// validating the relative path. Originals are removed only after their
// encrypted sibling is confirmed written, and artifacts only after their
// restored original is, so removal is always the second half of a pair.
func (pv *PathValidator) RemoveInRoot(path string) error {
	platformPath := filepath.FromSlash(path)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return pv.folderRoot.Remove(platformPath)
}

// StatInRoot stats a file inside the folder via os.Root after validating
// the relative path.
func (pv *PathValidator) StatInRoot(path string) (os.FileInfo, error) {
	platformPath := filepath.FromSlash(path)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.folderRoot.Stat(platformPath)
}
