package testutil

import (
	"testing"

	"photovault/internal/database"
	"photovault/internal/gallery"
)

// NewTestDatabase creates a new in-memory SQLite database with migrations
// applied, so the three default categories and the theme are seeded.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T, clock gallery.Clock, ids gallery.IDGenerator) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", clock, ids)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
