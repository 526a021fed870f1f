package database

import (
	"stitchhub_backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect открывает пул подключений к Postgres через GORM.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate прогоняет автомиграцию всех моделей. Порядок важен:
// транзакции ссылаются на пользователей, installments — на транзакции.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Transaction{},
		&models.Installment{},
		&models.Enrollment{},
		&models.Order{},
		&models.Notification{},
	)
}
