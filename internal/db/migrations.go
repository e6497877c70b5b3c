package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema
// creation. Each migration must be idempotent. Append new migrations at the
// end.
var migrations = []string{
	// Migration 1: the trigger originally fired only on exact zero; it now
	// also covers negative values so a raw SQL write below zero cannot leave
	// a negative quantity behind.
	`DROP TRIGGER IF EXISTS items_delete_on_exact_zero`,
	`CREATE TRIGGER IF NOT EXISTS items_delete_on_zero
	 AFTER UPDATE OF qty_value ON items
	 WHEN NEW.qty_value <= 0
	 BEGIN
	     DELETE FROM items WHERE id = NEW.id;
	 END`,
}

// Migrate creates the schema and runs the migrations.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
