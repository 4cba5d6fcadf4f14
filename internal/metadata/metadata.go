package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/taseen/securelock/internal/crypto"
	"github.com/taseen/securelock/internal/errs"
)

const (
	// MetaFile inside a folder is the single commit marker for "locked".
	MetaFile = ".securelock"
	// PendingFile records the salt and verify token before the first file
	// conversion, so an interrupted lock can resume with the same key.
	PendingFile = ".securelock.partial"
	// LockedExt marks encrypted artifacts.
	LockedExt = ".locked"

	// Version is the current descriptor format version.
	Version = 1

	tmpSuffix = ".tmp"
)

// Metadata is the per-folder descriptor. It carries everything needed to
// reverse a lock: the KDF inputs to re-derive the folder key, the verify
// token to reject wrong passwords up front, and the file manifest.
type Metadata struct {
	Version     int           `json:"version"`
	Salt        []byte        `json:"salt"`
	KDF         KDFParams     `json:"kdf"`
	VerifyToken []byte        `json:"verify_token"`
	Files       []FileEntry   `json:"files"`
	Recovery    *RecoveryData `json:"recovery,omitempty"`
}

// KDFParams mirrors crypto.Params with stable field names on disk.
type KDFParams struct {
	MemoryKiB uint32 `json:"memory_kib"`
	Time      uint32 `json:"time"`
	Threads   uint8  `json:"threads"`
}

// FileEntry records one converted file in manifest order.
type FileEntry struct {
	OriginalName string `json:"original_name"`
	LockedName   string `json:"locked_name"`
	RelativePath string `json:"relative_path"`
}

// RecoveryData is the optional recovery block: the folder key wrapped under
// the master key, with the master salt snapshot from wrap time so a stale
// block can be told apart from a current one.
type RecoveryData struct {
	WrapSalt   []byte `json:"wrap_salt"`
	WrapNonce  []byte `json:"wrap_nonce"`
	WrappedKey []byte `json:"wrapped_key"`
}

// New creates a descriptor for a fresh lock with an empty manifest.
func New(salt []byte, params crypto.Params, verifyToken []byte) *Metadata {
	return &Metadata{
		Version:     Version,
		Salt:        salt,
		KDF:         FromParams(params),
		VerifyToken: verifyToken,
		Files:       make([]FileEntry, 0),
	}
}

// FromParams converts crypto cost parameters to their on-disk form.
func FromParams(p crypto.Params) KDFParams {
	return KDFParams{MemoryKiB: p.MemoryKiB, Time: p.Time, Threads: p.Threads}
}

// Params converts the on-disk form back to crypto cost parameters.
func (k KDFParams) Params() crypto.Params {
	return crypto.Params{MemoryKiB: k.MemoryKiB, Time: k.Time, Threads: k.Threads}
}

// AddFile appends a manifest entry, replacing any existing entry for the
// same relative path.
func (m *Metadata) AddFile(entry FileEntry) {
	for i := range m.Files {
		if m.Files[i].RelativePath == entry.RelativePath {
			m.Files[i] = entry
			return
		}
	}
	m.Files = append(m.Files, entry)
}

// HasRecovery reports whether a recovery block is attached.
func (m *Metadata) HasRecovery() bool {
	return m.Recovery != nil
}

// OriginalPaths returns the manifest's original relative paths in order.
func (m *Metadata) OriginalPaths() []string {
	paths := make([]string, len(m.Files))
	for i, f := range m.Files {
		paths[i] = f.RelativePath
	}
	return paths
}

// validate rejects descriptors that cannot drive an unlock. Anything wrong
// here means the file was corrupted or hand-edited, not a bad password.
func (m *Metadata) validate(src string) error {
	if m.Version != Version {
		return errs.Path(errs.KindCorruptMetadata, src,
			fmt.Sprintf("unsupported descriptor version %d", m.Version))
	}
	if len(m.Salt) != crypto.SaltSize {
		return errs.Path(errs.KindCorruptMetadata, src,
			fmt.Sprintf("salt is %d bytes, want %d", len(m.Salt), crypto.SaltSize))
	}
	if !m.KDF.Params().Valid() {
		return errs.Path(errs.KindCorruptMetadata, src, "invalid KDF parameters")
	}
	if len(m.VerifyToken) < crypto.NonceSize+crypto.TagSize {
		return errs.Path(errs.KindCorruptMetadata, src, "verify token too short")
	}
	if r := m.Recovery; r != nil {
		if len(r.WrapSalt) != crypto.SaltSize ||
			len(r.WrapNonce) != crypto.NonceSize ||
			len(r.WrappedKey) < crypto.KeySize {
			return errs.Path(errs.KindCorruptMetadata, src, "malformed recovery block")
		}
	}
	for _, f := range m.Files {
		if f.OriginalName == "" || f.LockedName == "" || f.RelativePath == "" {
			return errs.Path(errs.KindCorruptMetadata, src, "manifest entry with empty name")
		}
		// The three names of an entry must agree with each other. An
		// entry whose locked name points at another entry's artifact
		// would drive a restore at the wrong file.
		if f.LockedName != f.OriginalName+LockedExt {
			return errs.Path(errs.KindCorruptMetadata, src,
				fmt.Sprintf("locked name %q is not %q plus %s", f.LockedName, f.OriginalName, LockedExt))
		}
		if path.Base(f.RelativePath) != f.OriginalName {
			return errs.Path(errs.KindCorruptMetadata, src,
				fmt.Sprintf("original name %q does not match path %q", f.OriginalName, f.RelativePath))
		}
	}
	return nil
}

// Path returns the descriptor path inside folder.
func Path(folder string) string {
	return filepath.Join(folder, MetaFile)
}

// PendingPath returns the pending-lock descriptor path inside folder.
func PendingPath(folder string) string {
	return filepath.Join(folder, PendingFile)
}

// Exists reports whether folder carries a committed descriptor. Its
// presence is the sole authority for "this folder is locked."
func Exists(folder string) bool {
	_, err := os.Stat(Path(folder))
	return err == nil
}

// PendingExists reports whether folder carries an uncommitted lock.
func PendingExists(folder string) bool {
	_, err := os.Stat(PendingPath(folder))
	return err == nil
}

// Read loads and validates the committed descriptor. Absence is reported
// as os.ErrNotExist for the caller to map; malformed content is
// KindCorruptMetadata.
func Read(folder string) (*Metadata, error) {
	return readFile(Path(folder))
}

// ReadPending loads and validates the pending descriptor.
func ReadPending(folder string) (*Metadata, error) {
	return readFile(PendingPath(folder))
}

func readFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, errs.Wrap(errs.KindIoFailure, path, err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.Path(errs.KindCorruptMetadata, path, err.Error())
	}
	if err := m.validate(path); err != nil {
		return nil, err
	}
	return &m, nil
}

// Write persists the committed descriptor atomically: the content lands in
// a temporary sibling, is synced, then renamed over the final name. A crash
// leaves either no descriptor or a complete one, never a torn file.
func Write(folder string, m *Metadata) error {
	return writeFile(Path(folder), m)
}

// WritePending persists the pending descriptor atomically.
func WritePending(folder string, m *Metadata) error {
	return writeFile(PendingPath(folder), m)
}

func writeFile(path string, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode descriptor: %w", err)
	}

	tmpPath := path + tmpSuffix
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errs.Wrap(errs.KindIoFailure, path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindIoFailure, path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindIoFailure, path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindIoFailure, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.KindIoFailure, path, err)
	}
	return nil
}

// Remove deletes the committed descriptor, marking the folder unlocked.
func Remove(folder string) error {
	if err := os.Remove(Path(folder)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.KindIoFailure, Path(folder), err)
	}
	return nil
}

// RemovePending deletes the pending descriptor after a lock commits.
func RemovePending(folder string) error {
	if err := os.Remove(PendingPath(folder)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.KindIoFailure, PendingPath(folder), err)
	}
	return nil
}

// IsReserved reports whether name is one of the codec's own files and must
// be excluded from lock enumeration and manifest checks.
func IsReserved(name string) bool {
	switch name {
	case MetaFile, PendingFile, MetaFile + tmpSuffix, PendingFile + tmpSuffix:
		return true
	}
	return false
}
