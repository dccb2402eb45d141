package database

import (
	"fmt"

	"gorm.io/gorm"

	"Investa/internal/model"
)

// Migrate 会话后端只有一张键值表
func Migrate(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	if err := db.AutoMigrate(&model.SessionEntry{}); err != nil {
		return fmt.Errorf("failed to migrate session_entries: %w", err)
	}
	return nil
}
