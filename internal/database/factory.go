package database

import (
	"fmt"
	"path/filepath"

	"photovault/internal/config"
	"photovault/internal/gallery"
)

// NewDatabaseFromConfig creates a database based on the database config type.
// A memory database has its schema applied immediately since it cannot
// outlive the process; a sqlite database must be migrated with `pv db migrate`.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, deviceID string, clock gallery.Clock, ids gallery.IDGenerator) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		dbPath := filepath.Join(cfg.DataDir, deviceID+".db")
		return NewSQLiteDatabase(dbPath, clock, ids)
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", clock, ids)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating memory database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
