// Package sqliteutil opens the sqlite-compatible databases services
// store their state in, either an embedded file database or a remote
// libsql instance, chosen by the DSN.
package sqliteutil

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Config struct {
	// Dsn is a file path, ":memory:", or a libsql URL such as
	// "libsql://depradar-example.turso.io?authToken=...".
	Dsn string `json:"dsn"`
}

func driverFor(dsn string) string {
	if strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "wss://") ||
		strings.HasPrefix(dsn, "https://") {
		return "libsql"
	}
	return "sqlite"
}

// Open opens the database and prepares it for service use. File backed
// sqlite databases are created when missing and limited to a single
// connection, sqlite only ever admits one writer and queueing in the
// pool beats SQLITE_BUSY errors.
func Open(config Config) (*sql.DB, error) {
	if config.Dsn == "" {
		return nil, fmt.Errorf("database dsn is not set")
	}

	driver := driverFor(config.Dsn)
	if driver == "sqlite" && config.Dsn != ":memory:" {
		_, err := os.Stat(config.Dsn)
		if os.IsNotExist(err) {
			f, err := os.Create(config.Dsn)
			if err != nil {
				return nil, fmt.Errorf("create database file: %w", err)
			}
			f.Close()
		}
	}

	db, err := sql.Open(driver, config.Dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		if config.Dsn != ":memory:" {
			_, err = db.Exec("PRAGMA journal_mode=WAL")
			if err != nil {
				db.Close()
				return nil, err
			}
		}
	}
	return db, nil
}

// OpenWithSchema opens the database and applies the given schema. The
// schema must be idempotent, services embed CREATE TABLE IF NOT EXISTS
// statements.
func OpenWithSchema(config Config, schema string) (*sql.DB, error) {
	db, err := Open(config)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
