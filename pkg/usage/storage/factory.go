package storage

import (
	"fmt"

	"mercator-hq/callisto/pkg/usage"
)

const (
	// BackendSQLite selects SQLiteStorage.
	BackendSQLite = "sqlite"
	// BackendMemory selects MemoryStorage.
	BackendMemory = "memory"
)

// New creates the storage backend named by backend. sqliteConfig is only
// used for the SQLite backend and may be nil to use defaults.
func New(backend string, sqliteConfig *SQLiteConfig) (usage.Storage, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLiteStorage(sqliteConfig)
	case BackendMemory:
		return NewMemoryStorage(), nil
	}
	return nil, usage.NewStorageError(backend, "open", fmt.Errorf("unknown storage backend %q", backend))
}
