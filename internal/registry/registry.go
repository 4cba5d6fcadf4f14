package registry

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/taseen/securelock/internal/engine"
	"github.com/taseen/securelock/internal/errs"
	logger "github.com/taseen/securelock/internal/logging"
	"github.com/taseen/securelock/internal/master"
	"github.com/taseen/securelock/internal/storage"
)

// Registry tracks folders and fronts every engine operation with the
// tracking and master-session checks the commands rely on.
type Registry struct {
	log    logger.Logger
	store  *storage.Store
	engine *engine.Engine
	master *master.Manager
}

func New(log logger.Logger, store *storage.Store, eng *engine.Engine, m *master.Manager) *Registry {
	return &Registry{
		log:    log,
		store:  store,
		engine: eng,
		master: m,
	}
}

// Folder pairs a stored record with a live status probe. The stored hint
// fields are display caches; Status is the truth at call time.
type Folder struct {
	storage.FolderRecord
	Status engine.FolderStatus
}

// Add starts tracking a folder. The path must be an existing directory and
// must not nest with any tracked folder in either direction: locking a
// parent would swallow a tracked child, and vice versa.
func (r *Registry) Add(path string) (*Folder, error) {
	canonical, err := engine.Canonicalize(path)
	if err != nil {
		return nil, err
	}

	existing, err := r.store.GetFolder(canonical)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Path(errs.KindAlreadyTracked, canonical, "folder is already tracked")
	}

	tracked, err := r.store.ListFolders()
	if err != nil {
		return nil, err
	}
	for _, other := range tracked {
		if nested(canonical, other.Path) || nested(other.Path, canonical) {
			return nil, errs.Path(errs.KindInvalidPath, canonical,
				"folder nests with tracked folder "+other.Path)
		}
	}

	status := r.engine.Status(canonical)
	record := storage.FolderRecord{
		Path:        canonical,
		LockedHint:  status.Locked,
		FileCount:   status.FileCount,
		HasRecovery: status.HasRecovery,
		AddedAt:     time.Now().UTC(),
	}
	if err := r.store.PutFolder(record); err != nil {
		return nil, err
	}
	r.log.Infof("tracking %s", canonical)
	return &Folder{FolderRecord: record, Status: status}, nil
}

// Remove stops tracking a folder. A locked folder is refused unless force
// is set, because dropping the record hides the folder from lock-all and
// status while its contents stay encrypted. Force leaves the folder and
// its descriptor untouched on disk.
func (r *Registry) Remove(path string, force bool) error {
	canonical, _, err := r.tracked(path)
	if err != nil {
		return err
	}

	return r.engine.Guard(canonical, func() error {
		status := r.engine.Status(canonical)
		if status.Locked && !force {
			return errs.Path(errs.KindAlreadyLocked, canonical,
				"folder is locked; unlock it first or pass -force")
		}
		if status.Locked {
			r.log.Warnf("removing locked folder %s from tracking; its files stay encrypted", canonical)
		}
		return r.store.DeleteFolder(canonical)
	})
}

// List returns every tracked folder with a live status probe, refreshing
// the stored hints along the way.
func (r *Registry) List() ([]Folder, error) {
	records, err := r.store.ListFolders()
	if err != nil {
		return nil, err
	}

	folders := make([]Folder, 0, len(records))
	for _, record := range records {
		folders = append(folders, r.probe(record))
	}
	return folders, nil
}

// Get returns one tracked folder with a live status probe.
func (r *Registry) Get(path string) (*Folder, error) {
	_, record, err := r.tracked(path)
	if err != nil {
		return nil, err
	}
	folder := r.probe(*record)
	return &folder, nil
}

// Lock locks a tracked folder. Untracked paths are refused; track first.
func (r *Registry) Lock(ctx context.Context, path string, password []byte) (*engine.LockResult, error) {
	canonical, _, err := r.tracked(path)
	if err != nil {
		return nil, err
	}
	result, err := r.engine.Lock(ctx, canonical, password)
	r.refresh(canonical)
	return result, err
}

// Unlock unlocks a tracked folder.
func (r *Registry) Unlock(ctx context.Context, path string, password []byte) (*engine.UnlockResult, error) {
	canonical, _, err := r.tracked(path)
	if err != nil {
		return nil, err
	}
	result, err := r.engine.Unlock(ctx, canonical, password)
	r.refresh(canonical)
	return result, err
}

// Recover restores a tracked folder through its recovery block. The master
// password must be configured and verified in this session.
func (r *Registry) Recover(ctx context.Context, path string) (*engine.UnlockResult, error) {
	canonical, _, err := r.tracked(path)
	if err != nil {
		return nil, err
	}

	configured, err := r.master.IsConfigured()
	if err != nil {
		return nil, err
	}
	if !configured {
		return nil, errs.New(errs.KindMasterNotConfigured, "no master password is configured")
	}
	if !r.master.IsUnlocked() {
		return nil, errs.New(errs.KindMasterNotUnlocked, "master password is not unlocked")
	}

	result, err := r.engine.Recover(ctx, canonical)
	r.refresh(canonical)
	return result, err
}

// LockAll locks every tracked folder under one password. Already-locked
// folders are skipped and failures never stop the batch.
func (r *Registry) LockAll(ctx context.Context, password []byte) ([]engine.LockAllOutcome, error) {
	records, err := r.store.ListFolders()
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(records))
	for i, record := range records {
		paths[i] = record.Path
	}

	outcomes := r.engine.LockAll(ctx, paths, password)
	for _, outcome := range outcomes {
		r.refresh(outcome.Path)
	}
	return outcomes, nil
}

// CheckRecoveryKey reports whether a tracked folder could be recovered:
// its descriptor carries a recovery block and a master password is
// configured. It does not require the master session to be unlocked.
func (r *Registry) CheckRecoveryKey(path string) (bool, error) {
	canonical, _, err := r.tracked(path)
	if err != nil {
		return false, err
	}

	configured, err := r.master.IsConfigured()
	if err != nil {
		return false, err
	}
	if !configured {
		return false, nil
	}

	status := r.engine.Status(canonical)
	return status.Locked && status.HasRecovery, nil
}

// tracked resolves a path and requires it to be in the registry. Lookup
// falls back to the cleaned absolute path when the folder no longer exists
// on disk, so records of deleted folders can still be listed and removed.
func (r *Registry) tracked(path string) (string, *storage.FolderRecord, error) {
	canonical, err := lookupPath(path)
	if err != nil {
		return "", nil, err
	}

	record, err := r.store.GetFolder(canonical)
	if err != nil {
		return "", nil, err
	}
	if record == nil {
		return "", nil, errs.Path(errs.KindNotTracked, canonical, "folder is not tracked")
	}
	return canonical, record, nil
}

func lookupPath(path string) (string, error) {
	canonical, err := engine.Canonicalize(path)
	if err == nil {
		return canonical, nil
	}
	if path == "" {
		return "", err
	}
	abs, absErr := filepath.Abs(path)
	if absErr != nil {
		return "", errs.Wrap(errs.KindInvalidPath, path, absErr)
	}
	return filepath.Clean(abs), nil
}

// probe computes the live status for a record and refreshes its hints.
func (r *Registry) probe(record storage.FolderRecord) Folder {
	status := r.engine.Status(record.Path)
	updated := record
	updated.LockedHint = status.Locked
	updated.FileCount = status.FileCount
	updated.HasRecovery = status.HasRecovery
	if updated != record {
		if err := r.store.PutFolder(updated); err != nil {
			r.log.Warnf("failed to refresh hints for %s: %v", record.Path, err)
		}
	}
	return Folder{FolderRecord: updated, Status: status}
}

func (r *Registry) refresh(path string) {
	record, err := r.store.GetFolder(path)
	if err != nil || record == nil {
		return
	}
	r.probe(*record)
}

// nested reports whether child lies strictly inside parent.
func nested(child, parent string) bool {
	if child == parent {
		return false
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}
