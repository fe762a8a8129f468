package db

import (
	"github.com/diewo77/freelance-desk/internal/models"
	"gorm.io/gorm"
)

// Models lists every table managed by Migrate.
func Models() []any {
	return []any{
		&models.User{},
		&models.Client{},
		&models.IncomeSource{},
		&models.Task{},
		&models.Payment{},
		&models.Invoice{},
		&models.InvoiceCounter{},
	}
}

// Migrate runs AutoMigrate for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
