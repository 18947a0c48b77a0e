package database

import (
	"fmt"

	"rentora_backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect открывает PostgreSQL по DSN из конфигурации.
func Connect(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to GORM: %w", err)
	}
	return db, nil
}

// Models - таблицы, которыми владеет этот сервис.
// users создаётся сервисом аутентификации, здесь мигрируется для dev и тестов.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Payment{},
		&models.Invoice{},
		&models.LoyaltyLedgerEntry{},
	}
}

// AutoMigrate выполняет миграцию всех моделей
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
