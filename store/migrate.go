package store

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/anonid/models"
)

// Models lists every table owned by the store.
func Models() []any {
	return []any{
		&models.Account{},
		&models.LedgerEntry{},
		&models.AttendanceRecord{},
		&models.AttendanceSummary{},
		&models.DeviceCreationEvent{},
		&models.RecoveryCode{},
		&models.Favorite{},
		&models.Discussion{},
		&models.DiscussionParticipant{},
		&models.Comment{},
		&models.ParticipatedDiscussion{},
		&models.CacheDocument{},
	}
}

// Migrate creates missing tables, columns and indexes. It never drops anything.
func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return nil
}
