package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Open returns a verified connection pool for driver "pgx" (Postgres URL)
// or "sqlite" (file path).
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "pgx":
		return openPostgres(dsn)
	case "sqlite":
		return openSQLite(dsn)
	default:
		return nil, fmt.Errorf("openDB: unsupported driver %q", driver)
	}
}

func openPostgres(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("openDB: open postgres database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("openDB: verify postgres connection: %w", err)
	}

	return db, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("openDB: create directory for %q: %w", dbPath, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("openDB: open sqlite database %q: %w", dbPath, err)
	}

	// SQLite serialises writers; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("openDB: configure sqlite %q: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("openDB: verify sqlite connection to %q: %w", dbPath, err)
	}

	return db, nil
}
