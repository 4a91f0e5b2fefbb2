// Package storage provides backends for usage.Storage.
//
// # Storage Backends
//
//   - SQLite: durable embedded database, the default for deployments
//   - Memory: in-memory maps for tests and demos
//
// # SQLite Backend
//
// Two drivers are supported and selected with SQLiteConfig.Driver:
//
//   - "modernc": modernc.org/sqlite, pure Go, no cgo toolchain required
//   - "cgo": github.com/mattn/go-sqlite3
//
// The schema is identical for both. Timestamps are stored as unix
// microseconds in UTC. Connection pragmas (busy timeout, WAL, foreign keys)
// are passed in the DSN so every pooled connection gets them.
//
// At most one unread, undismissed insight may exist per user, kind and
// template. The SQLite backend enforces this with a partial unique index and
// the memory backend with a scan; both report usage.ErrConflict.
//
// # Basic Usage
//
//	store, err := storage.New(storage.BackendSQLite, &storage.SQLiteConfig{
//	    Path:        "data/callisto.db",
//	    Driver:      storage.DriverModernc,
//	    WALMode:     true,
//	    BusyTimeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
package storage
