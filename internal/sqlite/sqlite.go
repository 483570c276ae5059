// Package sqlite implements the faceset storage backend on a single
// SQLite file via the pure-Go modernc.org/sqlite driver. It works on raw
// rows (UUIDs and blobs as byte slices); entity encoding and decoding
// belong to the parent package.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Schema of a faceset file. Table and column names are fixed; they are
// part of the on-disk format and must not be renamed.
var schemaStatements = []string{
	`CREATE TABLE FacesetInfo (version INT)`,
	`INSERT INTO FacesetInfo VALUES (1)`,
	`CREATE TABLE UImage (uuid BLOB, name TEXT, format TEXT, data BLOB)`,
	`CREATE TABLE UPerson (uuid BLOB, name TEXT, age NUMERIC)`,
	`CREATE TABLE UFaceMark (uuid BLOB, UImage_uuid BLOB, UPerson_uuid BLOB, pickled_bytes BLOB)`,
}

// FormatVersion is the schema version stamp written to FacesetInfo.
const FormatVersion = 1

// DB owns the single connection to a faceset file.
type DB struct {
	sqlDB *sql.DB
}

// Open opens (creating if absent) the SQLite file at path and configures
// the connection. Every transaction takes the write lock immediately via
// the _txlock DSN parameter, so concurrent writers from other processes
// block on the busy timeout instead of failing mid-transaction.
func Open(path string, busyTimeout time.Duration) (*DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: the store owns the file exclusively, and a second
	// connection from the same pool would deadlock against an immediate
	// transaction.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{sqlDB: db}, nil
}

// Close releases the connection.
func (d *DB) Close() error {
	return d.sqlDB.Close()
}

// FaceMarks returns the face-mark table accessor.
func (d *DB) FaceMarks() *FaceMarkRepo { return &FaceMarkRepo{db: d.sqlDB} }

// Persons returns the person table accessor.
func (d *DB) Persons() *PersonRepo { return &PersonRepo{db: d.sqlDB} }

// Images returns the image table accessor.
func (d *DB) Images() *ImageRepo { return &ImageRepo{db: d.sqlDB} }

// HasTable reports whether a table with the given name exists.
func (d *DB) HasTable(ctx context.Context, name string) (bool, error) {
	var count int
	err := d.sqlDB.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return count != 0, nil
}

// Version returns the schema version stamp from FacesetInfo.
func (d *DB) Version(ctx context.Context) (int, error) {
	var version int
	err := d.sqlDB.QueryRowContext(ctx, "SELECT version FROM FacesetInfo").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	return version, nil
}

// Reset drops every table in the file and recreates the empty faceset
// schema, all inside one transaction: a crash mid-reset leaves either
// the old schema or the new one, never a partially-dropped state.
func (d *DB) Reset(ctx context.Context) error {
	tx, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	names, err := tableNames(ctx, tx)
	if err != nil {
		return err
	}
	for _, name := range names {
		// Identifiers cannot be bound as parameters; names come from
		// sqlite_master, quoted defensively.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE %q`, name)); err != nil {
			return fmt.Errorf("drop table %s: %w", name, err)
		}
	}

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema reset: %w", err)
	}
	slog.Debug("faceset schema reset", "version", FormatVersion)
	return nil
}

// Vacuum rewrites the file, reclaiming space from deleted rows. It
// cannot run inside a transaction and blocks everything else on the file.
func (d *DB) Vacuum(ctx context.Context) error {
	if _, err := d.sqlDB.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

func tableNames(ctx context.Context, tx *sql.Tx) ([]string, error) {
	// Internal tables (sqlite_sequence and friends) cannot be dropped.
	rows, err := tx.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
