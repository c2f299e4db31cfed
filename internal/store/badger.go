package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend stores snapshot blobs in a BadgerDB directory.
// Each record is one JSON-encoded value under its store key.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens (creating if needed) a persistent BadgerDB at dir.
func OpenBadger(dir string) (*BadgerBackend, error) {
	if dir == "" {
		return nil, errors.New("path is required for badger store")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return openBadger(badger.DefaultOptions(dir))
}

// OpenBadgerInMemory opens a BadgerDB that never touches disk.
func OpenBadgerInMemory() (*BadgerBackend, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true))
}

func openBadger(opts badger.Options) (*BadgerBackend, error) {
	opts = opts.WithSyncWrites(true).WithNumVersionsToKeep(1).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

// Load reads the record stored under key.
func (b *BadgerBackend) Load(ctx context.Context, key string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, fmt.Errorf("context cancelled: %w", err)
	}

	var rec Record
	found := true
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("load snapshot %q: %w", key, err)
	}
	if !found {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Save writes the record under rec.Key, replacing any previous value.
func (b *BadgerBackend) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", rec.Key, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(rec.Key), val)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", rec.Key, err)
	}
	return nil
}

// Close closes the database.
func (b *BadgerBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
