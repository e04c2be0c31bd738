package db

import (
	"path/filepath"
	"testing"
)

func TestInit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	d, err := Init(dbPath)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer d.Close()

	// Migrations must be idempotent
	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	tables := []string{"characters", "users", "conversations", "messages", "message_variations", "posts", "comments", "persistent_state"}
	for _, table := range tables {
		var name string
		err := d.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}
