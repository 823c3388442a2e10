package database

import (
	"database/sql"
	"log/slog"
	"slices"
	"sync"

	"github.com/evidenceledger/docgen/internal/errl"
)

// MigrationFunc applies or reverts one schema change.
type MigrationFunc func(db *sql.DB) error

type migration struct {
	version string
	up      MigrationFunc
	down    MigrationFunc
}

var (
	migrationsMu sync.Mutex
	migrations   []migration
)

// RegisterMigration adds a migration. Versions are timestamps like
// 20251209T210848 and are applied in lexical order.
func RegisterMigration(version string, up, down MigrationFunc) {
	migrationsMu.Lock()
	defer migrationsMu.Unlock()
	for _, m := range migrations {
		if m.version == version {
			panic("database: migration " + version + " registered twice")
		}
	}
	migrations = append(migrations, migration{version: version, up: up, down: down})
	slices.SortFunc(migrations, func(a, b migration) int {
		if a.version < b.version {
			return -1
		}
		if a.version > b.version {
			return 1
		}
		return 0
	})
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func appliedMigrations(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// RunMigrationsUp applies every registered migration not yet applied.
func RunMigrationsUp(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return errl.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := appliedMigrations(db)
	if err != nil {
		return errl.Errorf("failed to read migrations: %w", err)
	}

	migrationsMu.Lock()
	pending := slices.Clone(migrations)
	migrationsMu.Unlock()

	for _, m := range pending {
		if applied[m.version] {
			continue
		}
		if err := m.up(db); err != nil {
			return errl.Errorf("migration %s failed: %w", m.version, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			return errl.Errorf("failed to record migration %s: %w", m.version, err)
		}
		slog.Info("Applied migration", "version", m.version)
	}
	return nil
}

// RunMigrationDown reverts the most recently applied migration that has a
// down function.
func RunMigrationDown(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return errl.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := appliedMigrations(db)
	if err != nil {
		return errl.Errorf("failed to read migrations: %w", err)
	}

	migrationsMu.Lock()
	all := slices.Clone(migrations)
	migrationsMu.Unlock()

	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if !applied[m.version] {
			continue
		}
		if m.down == nil {
			return errl.Errorf("migration %s cannot be reverted", m.version)
		}
		if err := m.down(db); err != nil {
			return errl.Errorf("reverting migration %s failed: %w", m.version, err)
		}
		if _, err := db.Exec(`DELETE FROM schema_migrations WHERE version = ?`, m.version); err != nil {
			return errl.Errorf("failed to unrecord migration %s: %w", m.version, err)
		}
		slog.Info("Reverted migration", "version", m.version)
		return nil
	}
	return nil
}
