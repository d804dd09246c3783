// Package db opens the SQLite metastore that records query history and
// applies its schema migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
)

// Mode selects the pool shape of a metastore handle.
type Mode string

// Pool modes. Writers get a single connection and immediate transactions;
// readers get a small pool.
const (
	ModeWrite Mode = "write"
	ModeRead  Mode = "read"
)

const (
	busyTimeoutMs      = "5000"
	defaultReadMaxOpen = 4
)

// OpenSQLite opens a pool on the SQLite file at path in WAL mode with a
// busy timeout, foreign keys on and synchronous=NORMAL.
func OpenSQLite(ctx context.Context, path string, mode Mode, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = defaultReadMaxOpen
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

// Store bundles the write and read pools of one metastore file.
type Store struct {
	Write *sql.DB
	Read  *sql.DB
}

// Open opens both pools for path and migrates the schema to the latest version.
func Open(ctx context.Context, path string) (*Store, error) {
	writeDB, err := OpenSQLite(ctx, path, ModeWrite, 0)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, writeDB); err != nil {
		_ = writeDB.Close()
		return nil, err
	}
	readDB, err := OpenSQLite(ctx, path, ModeRead, 0)
	if err != nil {
		_ = writeDB.Close()
		return nil, err
	}
	return &Store{Write: writeDB, Read: readDB}, nil
}

// Close closes both pools.
func (s *Store) Close() error {
	readErr := s.Read.Close()
	if err := s.Write.Close(); err != nil {
		return err
	}
	return readErr
}

func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", busyTimeoutMs)
	params.Set("_synchronous", "NORMAL")
	params.Set("_foreign_keys", "on")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
