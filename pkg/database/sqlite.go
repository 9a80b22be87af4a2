package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteDB opens an embedded store for local runs and tests. SQLite has
// no row locks; maxOpenConns of 1 serializes every transaction, which is what
// an in-memory database needs.
func NewSQLiteDB(dsn string, maxOpenConns int) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
