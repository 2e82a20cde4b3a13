package database

import (
	"fmt"
	"log"

	"expensight/config"
	"expensight/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the MySQL connection, migrates tables and seeds built-in categories.
func Init(cfg *config.Config) error {
	logLevel := logger.Info
	if cfg.Server.Mode == "release" {
		logLevel = logger.Warn
	}

	var err error
	DB, err = gorm.Open(mysql.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	// connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err := Migrate(DB); err != nil {
		return err
	}
	if err := SeedCategories(DB); err != nil {
		return err
	}

	log.Println("database initialized")
	return nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Expense{},
		&models.ExpenseItem{},
		&models.ExpenseCategory{},
		&models.CategoryBudget{},
		&models.CoachNarrative{},
	)
}

// SeedCategories inserts the built-in categories when none exist yet.
func SeedCategories(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.ExpenseCategory{}).Where("user_id = ?", 0).Count(&count).Error; err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	cats := models.DefaultExpenseCategories()
	if err := db.Create(&cats).Error; err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	log.Printf("seeded %d default categories", len(cats))
	return nil
}

// GetDB returns the connection.
func GetDB() *gorm.DB {
	return DB
}
