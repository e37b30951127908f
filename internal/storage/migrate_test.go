package storage

import (
	"path/filepath"
	"testing"
)

func TestMigrationsAreReversible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	if v, err := SchemaVersion(path); err != nil || v != 0 {
		t.Fatalf("fresh database: version %d, err %v", v, err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if v, err := SchemaVersion(path); err != nil || v != 1 {
		t.Fatalf("after up: version %d, err %v", v, err)
	}
	// Re-running is a no-op.
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}

	if err := ResetSchema(path); err != nil {
		t.Fatalf("ResetSchema: %v", err)
	}
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen after reset: %v", err)
	}
	defer repo.Close()
	if v, err := SchemaVersion(path); err != nil || v != 1 {
		t.Fatalf("after reopen: version %d, err %v", v, err)
	}
}
