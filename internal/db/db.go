package db

import (
	"fmt"

	"cvr-league/config"
	"cvr-league/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable TimeZone=UTC",
		cfg.Host, cfg.UserDB, cfg.PasswordDB, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	err = db.AutoMigrate(
		&models.Team{},
		&models.Player{},
		&models.TransactionRequest{},
		&models.RoleSyncOp{},
		&models.MatchSchedule{},
		&models.MatchResult{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
