package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQL drivers accepted for the local store.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// OpenLocal opens the local store database and creates its tables.
func OpenLocal(driver, dsn string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	switch driver {
	case DriverSQLite:
		// One writer keeps SQLite free of "database is locked".
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	logger.Info("connected to local store", "driver", driver)

	if err := InitLocalTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitLocalTables creates all necessary tables if they don't exist.
// The statements are valid on both Postgres and SQLite.
func InitLocalTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS local_kv (
			item_key VARCHAR(255) PRIMARY KEY,
			item_value TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
