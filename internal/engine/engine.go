package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/taseen/securelock/internal/crypto"
	"github.com/taseen/securelock/internal/errs"
	logger "github.com/taseen/securelock/internal/logging"
)

const (
	DirPermSecure  = 0700 // Directory: owner rwx only
	FilePermSecure = 0600 // File: owner rw only
)

// MasterSource is the engine's view of the master key manager: enough to
// attach a recovery block at lock time and unwrap one at recover time.
type MasterSource interface {
	IsUnlocked() bool
	SessionKey() ([]byte, error)
	WrapSalt() ([]byte, error)
}

// Engine orchestrates lock, unlock, and recover for folders. Operations on
// the same folder are serialized through a path-keyed mutex; distinct
// folders proceed independently.
type Engine struct {
	log    logger.Logger
	master MasterSource
	params crypto.Params
	locks  pathLocks
}

func New(log logger.Logger, master MasterSource) *Engine {
	return &Engine{
		log:    log,
		master: master,
		params: crypto.DefaultParams(),
	}
}

// Canonicalize resolves a user-supplied folder path to its absolute,
// symlink-free form and confirms it is an existing directory. Every engine
// and registry operation keys off this form, so two spellings of one
// folder can never race or double-track.
func Canonicalize(path string) (string, error) {
	if path == "" {
		return "", errs.New(errs.KindInvalidPath, "empty path")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidPath, path, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.Path(errs.KindInvalidPath, path, "no such directory")
		}
		return "", errs.Wrap(errs.KindInvalidPath, path, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidPath, path, err)
	}
	if !info.IsDir() {
		return "", errs.Path(errs.KindInvalidPath, path, "not a directory")
	}

	return resolved, nil
}

// pathLocks hands out one mutex per folder path so a Lock and a concurrent
// Unlock or Remove on the same folder cannot interleave.
type pathLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// acquire locks the mutex for path and returns its release func.
func (p *pathLocks) acquire(path string) func() {
	p.mu.Lock()
	if p.m == nil {
		p.m = make(map[string]*sync.Mutex)
	}
	l, ok := p.m[path]
	if !ok {
		l = &sync.Mutex{}
		p.m[path] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Guard serializes fn with the engine's own operations on the same folder.
// The registry uses it so a removal cannot interleave with a running lock.
func (e *Engine) Guard(path string, fn func() error) error {
	release := e.locks.acquire(path)
	defer release()
	return fn()
}
