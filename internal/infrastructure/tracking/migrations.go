package tracking

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	Version int
	Name    string
	Up      string
}

// migrations run in order; applied versions are recorded in schema_migrations
var migrations = []migration{
	{
		Version: 1,
		Name:    "create_search_counts",
		Up: `
			CREATE TABLE IF NOT EXISTS search_counts (
				image_key TEXT PRIMARY KEY,
				count INTEGER NOT NULL DEFAULT 0,
				first_seen TIMESTAMP NOT NULL,
				last_seen TIMESTAMP NOT NULL
			);
		`,
	},
	{
		Version: 2,
		Name:    "create_beta_signups",
		Up: `
			CREATE TABLE IF NOT EXISTS beta_signups (
				email TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				company TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_beta_signups_created_at ON beta_signups(created_at);
		`,
	},
}

func migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if applied > 0 {
			continue
		}

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
