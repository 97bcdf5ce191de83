package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"travel-marketplace/internal/domain/credits"
	"travel-marketplace/internal/domain/handoff"
	"travel-marketplace/internal/domain/orders"
	"travel-marketplace/internal/domain/packages"
	"travel-marketplace/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func InitDB() *gorm.DB {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("❌ DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Fatal("❌ Failed to connect to database:", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatal("❌ AutoMigrate error:", err)
	}
	if err := SeedPackages(db); err != nil {
		log.Fatal("❌ Seeding credit packages failed:", err)
	}

	fmt.Println("✅ Connected and migrated successfully")
	return db
}

// Migrate creates the four reconciliation tables plus users and packages.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&packages.CreditPackage{},

		&orders.Order{},
		&handoff.SessionHandoff{},
		&credits.CreditAccount{},
		&credits.CreditTransaction{},
	)
}

// SeedPackages inserts the default credit packages when none exist.
func SeedPackages(db *gorm.DB) error {
	var count int64
	if err := db.Model(&packages.CreditPackage{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	defaults := packages.Defaults()
	return db.Create(&defaults).Error
}
