package database

import (
	"context"
	"fmt"
)

// migration is a single schema migration, applied in slice order.
type migration struct {
	version string
	sql     string
}

// migrations is the ordered schema history. Append only; never edit a
// shipped entry.
var migrations = []migration{
	{
		version: "20250114_create_paired_devices",
		sql: `
CREATE TABLE IF NOT EXISTS paired_devices (
    address    TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    paired_at  TIMESTAMP NOT NULL,
    last_seen  TIMESTAMP NOT NULL
);`,
	},
	{
		version: "20250302_paired_devices_last_seen_index",
		sql:     `CREATE INDEX IF NOT EXISTS idx_paired_devices_last_seen ON paired_devices(last_seen);`,
	},
}

// Migrate applies all pending migrations to the database.
//
// Each migration runs in its own transaction. If migration N fails,
// migrations 1..N-1 remain committed, N is rolled back, and N+1 onwards are
// not attempted; re-running Migrate continues from N.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If any migration fails (that migration is rolled back)
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("scanning migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.version, err)
		}
	}

	return nil
}

// applyMigration runs a single migration inside a transaction.
func (db *DB) applyMigration(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("executing: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
		return fmt.Errorf("recording: %w", err)
	}

	return tx.Commit()
}
