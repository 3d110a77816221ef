// Package store is the embedded relational persistence layer: schema
// creation, transactional writes, and indexed queries over Scripts,
// ControlFiles, Procedures, and References.
//
// Writes go through a single zombiezen.com/go/sqlite connection, bracketed
// by BeginScan/CommitScan/AbortScan into one transaction per scan, with
// pragma tuning and bulk-insert sized for a single-writer workload. Reads
// go through a database/sql pool over the pure-Go modernc.org/sqlite
// driver, which may run concurrently with the writer under WAL.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/shelldep/shelldep/internal/errs"
)

// Store is a handle to one persistent store location. It owns all
// persisted rows; callers only ever see snapshots returned from queries.
type Store struct {
	path string

	writeMu sync.Mutex
	write   *sqlite.Conn
	endScan func(*error)

	read *sql.DB
}

// Open opens or creates the persistent store at location, applying schema
// migrations idempotently.
func Open(location string) (*Store, error) {
	write, err := sqlite.OpenConn(location, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, location, fmt.Errorf("open write conn: %w", err))
	}

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -64000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if err := sqlitex.ExecuteTransient(write, pragma, nil); err != nil {
			_ = write.Close()
			return nil, errs.New(errs.StoreUnavailable, location, fmt.Errorf("%s: %w", pragma, err))
		}
	}

	if err := createSchema(write); err != nil {
		_ = write.Close()
		return nil, errs.New(errs.StoreUnavailable, location, fmt.Errorf("create schema: %w", err))
	}

	version, err := readVersion(write)
	if err != nil {
		_ = write.Close()
		return nil, errs.New(errs.StoreUnavailable, location, err)
	}
	if version > schemaVersion {
		_ = write.Close()
		return nil, errs.New(errs.StoreIncompatible, location, fmt.Errorf("store schema version %d newer than supported %d", version, schemaVersion))
	}

	read, err := sql.Open("sqlite", location)
	if err != nil {
		_ = write.Close()
		return nil, errs.New(errs.StoreUnavailable, location, fmt.Errorf("open read pool: %w", err))
	}
	read.SetMaxOpenConns(4)

	return &Store{path: location, write: write, read: read}, nil
}

// Close releases both the write connection and the read pool.
func (s *Store) Close() error {
	readErr := s.read.Close()
	writeErr := s.write.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// Path reports the location this Store was opened against.
func (s *Store) Path() string { return s.path }

// BeginScan opens the single transaction a whole analyzer run buffers its
// writes into; a failure partway through must leave the prior indexed
// state intact, which BeginScan/CommitScan/AbortScan guarantee by using one
// IMMEDIATE transaction for the run.
func (s *Store) BeginScan() error {
	s.writeMu.Lock()
	end, err := sqlitex.ImmediateTransaction(s.write)
	if err != nil {
		s.writeMu.Unlock()
		return errs.New(errs.StoreUnavailable, s.path, fmt.Errorf("begin scan: %w", err))
	}
	s.endScan = end
	return nil
}

// CommitScan atomically applies every buffered write from the current scan.
func (s *Store) CommitScan() error {
	defer s.writeMu.Unlock()
	var err error
	s.endScan(&err)
	s.endScan = nil
	if err != nil {
		return errs.New(errs.StoreUnavailable, s.path, fmt.Errorf("commit scan: %w", err))
	}
	return nil
}

// AbortScan rolls back every buffered write from the current scan, used on
// fatal store errors and on cancellation.
func (s *Store) AbortScan() error {
	defer s.writeMu.Unlock()
	err := fmt.Errorf("scan aborted")
	s.endScan(&err)
	s.endScan = nil
	return nil
}
