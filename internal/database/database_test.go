package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "pocketsage.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateReportsSchemaVersion(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	v, err := db.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != 2 {
		t.Fatalf("Schema version = %d, want 2", v)
	}

	// Re-running with nothing pending is a no-op.
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate (second run): %v", err)
	}
}

func TestMigrateDownRollsBackOneVersion(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}

	v, err := db.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != 1 {
		t.Fatalf("Schema version after rollback = %d, want 1", v)
	}

	// The inventory table from migration 0002 must be gone.
	if _, err := db.Conn().Exec("SELECT 1 FROM inventory_items"); err == nil {
		t.Fatal("inventory_items still exists after rollback")
	}
}
