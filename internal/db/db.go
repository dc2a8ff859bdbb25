package db

import (
	"fmt"
	"time"

	"github.com/Quai1921/SmartClass-sub000/internal/config"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var AppDb *gorm.DB

func dsn(cfg config.Config) string {
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v sslmode=disable",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
	)
}

// gormLogger sends gorm's SQL log through zerolog.
func gormLogger(cfg config.Config, log zerolog.Logger) logger.Interface {
	level := logger.Info
	if cfg.Environment == "production" {
		level = logger.Error
	}
	sqlLog := log.With().Str("component", "gorm").Logger()
	return logger.New(
		&sqlLog, // io writer
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  level,       // Log level
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func ConnectDb(cfg config.Config, log zerolog.Logger) error {
	db, err := gorm.Open(postgres.Open(dsn(cfg)), &gorm.Config{Logger: gormLogger(cfg, log)})
	if err != nil {
		return fmt.Errorf("error connecting to db: %w", err)
	}
	AppDb = db
	log.Info().Str("host", cfg.DBHost).Str("database", cfg.DBName).Msg("Success connecting to db")

	return nil
}

func CloseDb(log zerolog.Logger) {
	if AppDb == nil {
		return
	}
	sqlDB, err := AppDb.DB()
	if err != nil {
		log.Error().Err(err).Msg("failed to get db handle")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close db")
		return
	}
	log.Info().Msg("Closing DB")
}
