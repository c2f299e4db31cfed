package store

import (
	"context"
	"fmt"
	"time"
)

// DefaultKey is the blob key the snapshot is stored under.
const DefaultKey = "hr-app-data"

// Record is one persisted snapshot blob.
type Record struct {
	Key      string    `json:"key"`
	Data     []byte    `json:"data"`
	Checksum string    `json:"checksum"`
	Revision int64     `json:"revision"`
	SavedAt  time.Time `json:"saved_at"`
}

// Backend is a keyed blob store for snapshots.
//
// Load returns found=false (and no error) when no record exists for key.
type Backend interface {
	Load(ctx context.Context, key string) (rec Record, found bool, err error)
	Save(ctx context.Context, rec Record) error
	Close() error
}

// Backend drivers accepted by OpenBackend.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMemory = "memory"
)

// OpenBackend opens the backend named by driver at path.
// The path ":memory:" selects the in-memory backend for any driver.
func OpenBackend(driver, path string) (Backend, error) {
	if path == ":memory:" {
		return NewMemoryBackend(), nil
	}
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(path)
	case DriverBadger:
		return OpenBadger(path)
	case DriverMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q (want sqlite, badger or memory)", driver)
	}
}
