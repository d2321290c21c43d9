package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"contact-scraper/pkg/log"
	"contact-scraper/pkg/models"
	"contact-scraper/pkg/utils"
)

const (
	seedKeyPrefix = "seed:"    // Prefix for seed URL keys in DB
	seedDBDir     = "seeds_db" // Subdirectory suffix within stateDir for Badger DB files
)

// BadgerStore implements SeedStore using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) Count
}

// NewBadgerStore opens the seed database for one run. runName (input file or
// search query) selects the database directory under stateDir. Without resume
// any previous state for that run is removed.
func NewBadgerStore(stateDir, runName string, resume bool, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}

	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(runName)+"_"+seedDBDir)

	if !resume {
		if _, err := os.Stat(dbPath); err == nil {
			logger.Warnf("Resume flag is false. REMOVING existing state directory: %s", dbPath)
		}
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
		}
	}

	logger.Infof("Initializing seed state database at: %s (Resume: %v)", dbPath, resume)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	if resume {
		count, err := store.countKeys()
		if err != nil {
			logger.Warnf("Failed to count existing seeds on resume: %v", err)
		} else {
			store.keyCount.Store(int64(count))
			logger.Infof("Loaded existing seed count on resume: %d", count)
		}
	}

	return store, nil
}

// countKeys performs a one-time full key scan (used only during initialization on resume).
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(seedKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Workers finishing seeds concurrently can hit badger.ErrConflict; these clear
// on retry.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkSeedPending implements SeedStore. An existing entry is left untouched.
func (s *BadgerStore) MarkSeedPending(seedKey string) (bool, error) {
	key := []byte(seedKeyPrefix + seedKey)
	pending, err := json.Marshal(models.SeedDBEntry{Status: models.SeedStatusPending, LastAttempt: time.Now()})
	if err != nil {
		return false, fmt.Errorf("%w: marshal pending entry: %w", utils.ErrParsing, err)
	}

	added := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.SetEntry(badger.NewEntry(key, pending)); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in MarkSeedPending: %v", err)
		return false, fmt.Errorf("%w: marking seed key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// CheckSeedStatus implements SeedStore
func (s *BadgerStore) CheckSeedStatus(seedKey string) (models.SeedStatus, *models.SeedDBEntry, error) {
	status := models.SeedStatusNotFound
	var entry *models.SeedDBEntry
	key := []byte(seedKeyPrefix + seedKey)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting seed key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			var decoded models.SeedDBEntry
			if len(val) == 0 {
				status = models.SeedStatusPending
				return nil
			}
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				s.log.Warnf("Failed to unmarshal SeedDBEntry for key '%s': %v. Treating as 'pending'.", string(key), errJSON)
				status = models.SeedStatusPending
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB View error in CheckSeedStatus for key '%s': %v", string(key), errView)
		return models.SeedStatusDBError, nil, errView
	}
	return status, entry, nil
}

// UpdateSeedStatus implements SeedStore
func (s *BadgerStore) UpdateSeedStatus(seedKey string, entry *models.SeedDBEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: nil entry for seed '%s'", utils.ErrDatabase, seedKey)
	}
	key := []byte(seedKeyPrefix + seedKey)

	entryBytes, errJSON := json.Marshal(entry)
	if errJSON != nil {
		wrappedErr := fmt.Errorf("%w: failed to marshal SeedDBEntry for key '%s': %w", utils.ErrParsing, string(key), errJSON)
		s.log.Error(wrappedErr)
		return wrappedErr
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in UpdateSeedStatus: %v", err)
		return fmt.Errorf("%w: failed setting seed status for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}

	s.log.Debugf("Updated seed status for key '%s' to '%s'", string(key), entry.Status)
	return nil
}

// IncompleteSeeds implements SeedStore
func (s *BadgerStore) IncompleteSeeds(ctx context.Context) ([]string, error) {
	var seeds []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(seedKeyPrefix)

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			seedKey := string(item.Key()[len(prefix):])
			errValue := item.Value(func(val []byte) error {
				var entry models.SeedDBEntry
				if len(val) > 0 && json.Unmarshal(val, &entry) == nil && entry.Status.IsTerminal() {
					return nil
				}
				seeds = append(seeds, seedKey)
				return nil
			})
			if errValue != nil {
				s.log.Errorf("Scan: error reading value for seed '%s': %v", seedKey, errValue)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return seeds, err
		}
		return seeds, fmt.Errorf("%w: scanning seeds: %w", utils.ErrDatabase, err)
	}
	return seeds, nil
}

// Count implements SeedStore using the cached key count
func (s *BadgerStore) Count() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC runs BadgerDB's value log garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB GC goroutine: %v", ctx.Err())
			return
		}
	}
}

// Close implements SeedStore
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing seed state DB: %v", err)
			return err
		}
		s.log.Info("Seed state DB closed.")
	}
	return nil
}
