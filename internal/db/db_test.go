package db

import "testing"

func TestMigrateIsIdempotent(t *testing.T) {
	db := NewTestDB(t)

	// Running migrations a second time must not fail.
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestDeleteOnZeroTrigger(t *testing.T) {
	db := NewTestDB(t)

	if _, err := db.Exec(
		`INSERT INTO users (username, password_hash) VALUES ('u', 'x')`,
	); err != nil {
		t.Fatalf("inserting user: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO items (id, user_id, name, label, acquired_at, qty_value)
		 VALUES ('it-1', 1, 'Apples', 'Apples', '2026-08-31', 3)`,
	); err != nil {
		t.Fatalf("inserting item: %v", err)
	}

	// A positive update keeps the row.
	if _, err := db.Exec(`UPDATE items SET qty_value = 2 WHERE id = 'it-1'`); err != nil {
		t.Fatalf("updating quantity: %v", err)
	}
	var count int
	db.QueryRow(`SELECT COUNT(*) FROM items WHERE id = 'it-1'`).Scan(&count)
	if count != 1 {
		t.Fatalf("expected row to survive positive update, got count %d", count)
	}

	// Updating to zero fires the trigger and removes the row.
	if _, err := db.Exec(`UPDATE items SET qty_value = 0 WHERE id = 'it-1'`); err != nil {
		t.Fatalf("updating quantity to zero: %v", err)
	}
	db.QueryRow(`SELECT COUNT(*) FROM items WHERE id = 'it-1'`).Scan(&count)
	if count != 0 {
		t.Errorf("expected trigger to delete row at zero, got count %d", count)
	}
}
