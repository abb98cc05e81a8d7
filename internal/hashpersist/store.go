// Package hashpersist serializes a shared directory's chunk-hash and
// known-byte state to a Badger-backed on-disk record and reloads it at
// startup, so a restart doesn't force every file to be re-hashed from
// scratch.
package hashpersist

import (
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/lanshare/storagecore/internal/fsentry"
	"github.com/sirupsen/logrus"
)

func keyForShare(id fmt.Stringer) []byte {
	return []byte("shareddir:" + id.String())
}

// Store wraps a Badger database keyed one entry per shared directory.
type Store struct {
	db  *badger.DB
	log *logrus.Logger
}

// Open opens (or creates) a Badger database at path.
func Open(path string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("hashpersist: open %s: %w", path, err)
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save walks sd's tree and writes every file's chunk-hash state as one
// LZ4-compressed JSON record, keyed by the shared directory's id. The
// write is a single Badger transaction: either every file's state in
// this shared directory lands, or none does.
func (s *Store) Save(sd *fsentry.SharedDirectory) error {
	var entries []FileEntry
	collectFiles(&sd.Directory, &entries)

	rec := CacheRecord{Version: CurrentVersion, Files: entries}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("hashpersist: marshal record for %s: %w", sd.ID(), err)
	}

	compressed, err := compress(payload)
	if err != nil {
		return err
	}

	key := keyForShare(sd.ID())
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, compressed)
	})
}

// Restore reloads sd's persisted chunk-hash state and applies it to
// the already-scanned in-memory tree via File.RestoreFromFileCache.
// A missing record is not an error: it reports (0, 0, nil), meaning
// every file present will simply be hashed from scratch. A corrupt
// record is also non-fatal — it is logged and treated the same way,
// per the spec's "failure to load is non-fatal" requirement.
func (s *Store) Restore(sd *fsentry.SharedDirectory) (restored, total int, err error) {
	key := keyForShare(sd.ID())

	var compressed []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressed = append(compressed, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("hashpersist: read %s: %w", sd.ID(), err)
	}

	payload, err := decompress(compressed)
	if err != nil {
		s.log.WithError(err).Warnf("hashpersist: corrupt record for %s, re-hashing from scratch", sd.ID())
		return 0, 0, nil
	}

	var rec CacheRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		s.log.WithError(err).Warnf("hashpersist: malformed record for %s, re-hashing from scratch", sd.ID())
		return 0, 0, nil
	}

	index := make(map[string]fsentry.FileRecord, len(rec.Files))
	for _, e := range rec.Files {
		index[e.Path+e.Record.Name] = e.Record
	}
	total = len(index)

	restoreFiles(&sd.Directory, index, &restored)
	return restored, total, nil
}

func collectFiles(dir *fsentry.Directory, out *[]FileEntry) {
	for _, f := range dir.Files() {
		*out = append(*out, FileEntry{Path: f.Path(), Record: f.PopulateHashesFile()})
	}
	for _, sub := range dir.Subdirs() {
		collectFiles(sub, out)
	}
}

func restoreFiles(dir *fsentry.Directory, index map[string]fsentry.FileRecord, restored *int) {
	for _, f := range dir.Files() {
		key := f.Path() + f.Name()
		if rec, ok := index[key]; ok {
			if f.RestoreFromFileCache(rec) {
				*restored++
			}
		}
	}
	for _, sub := range dir.Subdirs() {
		restoreFiles(sub, index, restored)
	}
}
