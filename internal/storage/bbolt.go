package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/taseen/securelock/internal/metadata"
)

// Bucket names
var (
	ConfigBucket  = []byte("config")  // Format version, timestamps
	FoldersBucket = []byte("folders") // FolderRecord per tracked path
	MasterBucket  = []byte("master")  // Single MasterRecord
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
)

// masterKey is the single key under MasterBucket.
var masterKey = []byte("descriptor")

// EnvConfigDir overrides the registry location when set.
const EnvConfigDir = "SECURELOCK_CONFIG_DIR"

// FolderRecord is the persisted registry entry for one tracked folder.
// LockedHint, FileCount, and HasRecovery are advisory caches; the
// filesystem is re-consulted at query time.
type FolderRecord struct {
	Path        string    `json:"path"`
	LockedHint  bool      `json:"locked_hint"`
	FileCount   int       `json:"file_count"`
	HasRecovery bool      `json:"has_recovery"`
	AddedAt     time.Time `json:"added_at"`
}

// MasterRecord is the persisted master password descriptor: everything
// needed to re-derive and verify the master key, never the key itself.
type MasterRecord struct {
	Version     int                `json:"version"`
	Salt        []byte             `json:"salt"`
	KDF         metadata.KDFParams `json:"kdf"`
	VerifyToken []byte             `json:"verify_token"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Store provides bbolt-backed app-private storage for securelock.
type Store struct {
	db *bolt.DB
}

// DefaultPath returns the registry database location: SECURELOCK_CONFIG_DIR
// when set, otherwise the user config directory.
func DefaultPath() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return filepath.Join(dir, "registry.db"), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(base, "securelock", "registry.db"), nil
}

// Open opens or creates the registry database, creating parent directories
// and the bucket structure as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		// Create all buckets
		for _, bucket := range [][]byte{ConfigBucket, FoldersBucket, MasterBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}

		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}
		now, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigCreated, now); err != nil {
			return err
		}
		return config.Put(ConfigModified, now)
	})
}

// PutFolder stores or replaces the record for its path.
func (s *Store) PutFolder(record FolderRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode folder record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(FoldersBucket).Put([]byte(record.Path), data); err != nil {
			return err
		}
		return touchModified(tx)
	})
}

// GetFolder returns the record for path, or nil when the path is untracked.
func (s *Store) GetFolder(path string) (*FolderRecord, error) {
	var record *FolderRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(FoldersBucket).Get([]byte(path))
		if data == nil {
			return nil // untracked
		}
		record = &FolderRecord{}
		return json.Unmarshal(data, record)
	})
	return record, err
}

// DeleteFolder removes the record for path. Deleting an untracked path is
// not an error at this layer.
func (s *Store) DeleteFolder(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(FoldersBucket).Delete([]byte(path)); err != nil {
			return err
		}
		return touchModified(tx)
	})
}

// ListFolders returns every tracked record in key order.
func (s *Store) ListFolders() ([]FolderRecord, error) {
	var records []FolderRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(FoldersBucket).ForEach(func(k, v []byte) error {
			var record FolderRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to decode folder record %s: %w", k, err)
			}
			records = append(records, record)
			return nil
		})
	})
	return records, err
}

// GetMaster returns the master descriptor, or nil when none is configured.
func (s *Store) GetMaster() (*MasterRecord, error) {
	var record *MasterRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(MasterBucket).Get(masterKey)
		if data == nil {
			return nil // not configured
		}
		record = &MasterRecord{}
		return json.Unmarshal(data, record)
	})
	return record, err
}

// PutMaster persists the master descriptor.
func (s *Store) PutMaster(record MasterRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode master record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(MasterBucket).Put(masterKey, data); err != nil {
			return err
		}
		return touchModified(tx)
	})
}

// GetModified retrieves the last modified timestamp
func (s *Store) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

func touchModified(tx *bolt.Tx) error {
	now, _ := time.Now().MarshalBinary()
	return tx.Bucket(ConfigBucket).Put(ConfigModified, now)
}

// Compact creates a compacted copy of the database, removing unused space.
// Useful after removing many tracked folders.
func (s *Store) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	// Create new database
	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	// Copy all buckets
	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	// Reopen database
	s.db, err = bolt.Open(srcPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}
