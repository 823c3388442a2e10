package database

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/evidenceledger/docgen/internal/models"
	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = models.ErrNotFound

// Collections.
const (
	Documents = "documents"
	Companies = "companies"
	Contacts  = "contacts"
)

// Database manages SQLite operations
type Database struct {
	path string
	db   *sql.DB
}

// New creates a new database instance backed by the file at path.
// Use ":memory:" for a throwaway database.
func New(path string) *Database {
	return &Database{path: path}
}

// Initialize opens the database, creates tables and runs the migrations.
// When seed is true an empty catalog is filled with sample entries.
func (d *Database) Initialize(seed bool) error {
	db, err := sql.Open("sqlite3", d.path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return errl.Errorf("failed to open database: %w", err)
	}
	if d.path == ":memory:" {
		// every connection would get its own empty memory database
		db.SetMaxOpenConns(1)
	}
	d.db = db

	// Create tables
	if err := d.createTables(); err != nil {
		return errl.Errorf("failed to create tables: %w", err)
	}

	if seed {
		if err := d.initializeTestData(); err != nil {
			return errl.Errorf("failed to initialize test data: %w", err)
		}
	}

	slog.Info("Database initialized", "path", d.path)
	return nil
}

// createTables creates all necessary tables
func (d *Database) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, id)
		)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return errl.Errorf("failed to execute query: %w", err)
		}
	}

	// Run the migrations
	if err := RunMigrationsUp(d.db); err != nil {
		return errl.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Upsert writes doc as the JSON data of (collection, id). An existing record
// is merged with JSON merge-patch semantics: fields absent from doc keep
// their stored value and nested objects are merged key by key.
func (d *Database) Upsert(collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errl.Errorf("failed to marshal %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO records (collection, id, data, created_at, updated_at)
		VALUES (?, ?, json(?), ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			data = json_patch(records.data, excluded.data),
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if _, err := d.db.Exec(query, collection, id, string(data), now, now); err != nil {
		return errl.Errorf("failed to upsert %s/%s: %w", collection, id, err)
	}

	slog.Debug("Upserted record", "collection", collection, "id", id)
	return nil
}

// Replace overwrites the data of (collection, id) entirely.
func (d *Database) Replace(collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errl.Errorf("failed to marshal %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO records (collection, id, data, created_at, updated_at)
		VALUES (?, ?, json(?), ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if _, err := d.db.Exec(query, collection, id, string(data), now, now); err != nil {
		return errl.Errorf("failed to replace %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get decodes the data of (collection, id) into out.
func (d *Database) Get(collection, id string, out any) error {
	var data string
	err := d.db.QueryRow(
		`SELECT data FROM records WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return errl.Errorf("failed to get %s/%s: %w", collection, id, err)
	}

	if err := json.Unmarshal([]byte(data), out); err != nil {
		return errl.Errorf("failed to unmarshal %s/%s: %w", collection, id, err)
	}
	return nil
}

// Exists reports whether (collection, id) is stored.
func (d *Database) Exists(collection, id string) (bool, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT count(*) FROM records WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&n)
	if err != nil {
		return false, errl.Errorf("failed to check %s/%s: %w", collection, id, err)
	}
	return n > 0, nil
}

// Delete removes (collection, id). Deleting a missing record gives ErrNotFound.
func (d *Database) Delete(collection, id string) error {
	res, err := d.db.Exec(`DELETE FROM records WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return errl.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// list runs query and calls fn with the data of every row.
func (d *Database) list(query string, args []any, fn func(data []byte) error) error {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return errl.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return errl.Errorf("failed to scan row: %w", err)
		}
		if err := fn([]byte(data)); err != nil {
			return err
		}
	}
	return rows.Err()
}
