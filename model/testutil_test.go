package model

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// setupTestDB points model.DB at a fresh migrated SQLite database under the
// test's temp dir, restoring the previous handle on cleanup.
func setupTestDB(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	prev := DB
	DB = db
	t.Cleanup(func() { DB = prev })

	if err := migrateDB(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
}
