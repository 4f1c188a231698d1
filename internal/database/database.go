package database

import (
	"fmt"
	"log"
	"time"

	"mandi-tracker/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database initialized successfully")
	return db, nil
}

// Migrate ensures the mandi_rates table and its indexes exist. The natural-key
// unique index is what upserts rely on, so a migration failure is fatal here
// rather than a warning.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.MandiRate{}); err != nil {
		return fmt.Errorf("failed to migrate mandi_rates: %w", err)
	}
	return nil
}
