package master

import (
	"sync"
	"time"

	"github.com/taseen/securelock/internal/crypto"
	"github.com/taseen/securelock/internal/errs"
	"github.com/taseen/securelock/internal/metadata"
	"github.com/taseen/securelock/internal/storage"
)

// Manager owns the master password lifecycle: the persisted descriptor
// (salt, parameters, verify token) and the process-only session key. The
// session key exists solely in memory, is guarded by a single lock, and is
// zeroized whenever it is replaced or cleared. It is never written anywhere.
type Manager struct {
	store *storage.Store

	mu  sync.RWMutex
	key []byte // derived master key while unlocked, nil otherwise
}

func NewManager(store *storage.Store) *Manager {
	return &Manager{store: store}
}

// IsConfigured reports whether a master descriptor has been persisted.
func (m *Manager) IsConfigured() (bool, error) {
	record, err := m.store.GetMaster()
	if err != nil {
		return false, errs.Wrap(errs.KindIoFailure, "", err)
	}
	return record != nil, nil
}

// IsUnlocked reports whether the session currently holds the master key.
func (m *Manager) IsUnlocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key != nil
}

// Setup configures the master password. It refuses to run twice: there is
// no reset path, because replacing the descriptor would strand every
// recovery block wrapped under the old key. On success the session is left
// unlocked with the freshly derived key.
func (m *Manager) Setup(password []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, err := m.store.GetMaster()
	if err != nil {
		return errs.Wrap(errs.KindIoFailure, "", err)
	}
	if record != nil {
		return errs.New(errs.KindMasterAlreadyConfigured, "a master password is already configured")
	}

	salt, err := crypto.GenerateRandom(crypto.SaltSize)
	if err != nil {
		return errs.Wrap(errs.KindIoFailure, "", err)
	}
	params := crypto.DefaultParams()
	key := crypto.DeriveKey(password, salt, params)

	enc := crypto.NewEncryptor(key)
	token, err := enc.MakeVerifyToken()
	if err != nil {
		crypto.ClearBytes(key)
		return errs.Wrap(errs.KindIoFailure, "", err)
	}

	err = m.store.PutMaster(storage.MasterRecord{
		Version:     1,
		Salt:        salt,
		KDF:         metadata.FromParams(params),
		VerifyToken: token,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		crypto.ClearBytes(key)
		return errs.Wrap(errs.KindIoFailure, "", err)
	}

	m.setKeyLocked(key)
	return nil
}

// Verify checks a password against the stored descriptor. Success replaces
// the session key; failure leaves any prior session untouched, so a typo
// during re-verification does not lock out an already-unlocked session.
func (m *Manager) Verify(password []byte) error {
	record, err := m.descriptor()
	if err != nil {
		return err
	}

	candidate := crypto.DeriveKey(password, record.Salt, record.KDF.Params())
	enc := crypto.NewEncryptor(candidate)
	if !enc.CheckVerifyToken(record.VerifyToken) {
		crypto.ClearBytes(candidate)
		return errs.New(errs.KindWrongMasterPassword, "master password verification failed")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setKeyLocked(candidate)
	return nil
}

// SessionKey returns a copy of the held master key. Callers own the copy
// and must zeroize it after use.
func (m *Manager) SessionKey() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.key == nil {
		return nil, errs.New(errs.KindMasterNotUnlocked, "master session is locked")
	}
	return append([]byte(nil), m.key...), nil
}

// WrapSalt returns the descriptor salt, snapshotted into recovery blocks at
// wrap time so a stale block is distinguishable later.
func (m *Manager) WrapSalt() ([]byte, error) {
	record, err := m.descriptor()
	if err != nil {
		return nil, err
	}
	return record.Salt, nil
}

// Lock clears the session, zeroizing the held key. Locking an already
// locked session is a no-op.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setKeyLocked(nil)
}

func (m *Manager) setKeyLocked(key []byte) {
	if m.key != nil {
		crypto.ClearBytes(m.key)
	}
	m.key = key
}

func (m *Manager) descriptor() (*storage.MasterRecord, error) {
	record, err := m.store.GetMaster()
	if err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, "", err)
	}
	if record == nil {
		return nil, errs.New(errs.KindMasterNotConfigured, "no master password configured")
	}
	if len(record.Salt) != crypto.SaltSize || !record.KDF.Params().Valid() {
		return nil, errs.New(errs.KindCorruptMetadata, "master descriptor is malformed")
	}
	return record, nil
}
