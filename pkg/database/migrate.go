package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/models"
)

// Migrate creates or updates the schema. Order matters: referenced tables
// first.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Group{},
		&models.Enrollment{},
		&models.Opportunity{},
		&models.Bid{},
		&models.LedgerEntry{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// The window must be non-empty. Expressed here because it spans two columns.
	if !db.Migrator().HasConstraint(&models.Opportunity{}, "chk_opportunity_window") && db.Dialector.Name() == "postgres" {
		if err := db.Exec(`ALTER TABLE opportunities ADD CONSTRAINT chk_opportunity_window CHECK (opens_at < closes_at)`).Error; err != nil {
			return fmt.Errorf("add window constraint: %w", err)
		}
	}
	return nil
}
