package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 1

func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, create := range []func(*sql.Tx) error{
			createSchemaVersionTable,
			createSessionsTable,
			createChangesTable,
		} {
			if err := create(tx); err != nil {
				return err
			}
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}
		db.logger.Debug("Journal schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations brings an existing database to currentSchemaVersion.
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}
	switch {
	case version == currentSchemaVersion:
		return nil
	case version == 0:
		// created by a process that died before the schema was written
		return db.initializeSchema()
	case version > currentSchemaVersion:
		return fmt.Errorf("journal schema version %d is newer than this build (%d)", version, currentSchemaVersion)
	}
	return nil
}

func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createSessionsTable holds one row per committed rewrite session.
// undone_by names the session that reverted this one.
func createSessionsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			code_kind TEXT NOT NULL CHECK(code_kind IN ('pane', 'attributes')),
			status TEXT NOT NULL,
			committed_at INTEGER NOT NULL,
			module_count INTEGER NOT NULL,
			undone_by TEXT
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_committed ON sessions(committed_at)`)
	return err
}

// createChangesTable holds the zstd-compressed module texts of a session.
func createChangesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS changes (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			project_id TEXT NOT NULL,
			component TEXT NOT NULL,
			component_type TEXT NOT NULL,
			before_text BLOB,
			after_text BLOB,
			before_size INTEGER NOT NULL,
			after_size INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		)
	`)
	return err
}
