// Package storage keeps the rewrite journal: a SQLite database under
// .ducklint recording every committed rewrite session with the before and
// after text of each module it changed.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"ducklint/internal/paths"
)

// DB is a SQLite connection with transaction helpers
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

// Open opens or creates the journal database of the project at projectRoot.
func Open(projectRoot string, logger *slog.Logger) (*DB, error) {
	if _, err := paths.EnsureStateDir(projectRoot); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", paths.DirName, err)
	}
	return OpenPath(paths.JournalPath(projectRoot), logger)
}

// OpenPath opens or creates a journal database at dbPath.
func OpenPath(dbPath string, logger *slog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; SQLite serializes anyway and this avoids SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	db := &DB{conn: conn, logger: logger, dbPath: dbPath}
	if !dbExists {
		logger.Info("Creating journal database", "path", dbPath)
		err = db.initializeSchema()
	} else {
		err = db.runMigrations()
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.dbPath }

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// WithTx runs fn in a transaction, rolling back when fn fails or panics.
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction",
				"error", err.Error(),
				"rollbackError", rbErr.Error(),
			)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
