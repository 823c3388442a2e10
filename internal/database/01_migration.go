package database

import (
	"database/sql"
)

func init() {
	RegisterMigration("20251209T210848", migration_up_20251209T210848, migration_down_20251209T210848)
}

func migration_up_20251209T210848(db *sql.DB) error {

	// Listing a collection by last update is the common admin query
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS records_collection_updated
		ON records (collection, updated_at);
	`)
	if err != nil {
		return err
	}

	// Contact search matches on the stored name
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS records_contact_name
		ON records (json_extract(data, '$.nome'))
		WHERE collection = 'contacts';
	`)
	if err != nil {
		return err
	}

	return nil
}

func migration_down_20251209T210848(db *sql.DB) error {
	_, err := db.Exec(`
		DROP INDEX IF EXISTS records_contact_name;
		DROP INDEX IF EXISTS records_collection_updated;
	`)
	return err
}
