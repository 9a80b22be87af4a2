package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Row locks. Drivers without row-level locking (SQLite) drop the FOR clause
// and fall back to their database-wide write lock.

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func forShare(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "SHARE"})
}
