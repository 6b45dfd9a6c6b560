package config

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitPostgres opens the relational store. Unique violations surface as
// gorm.ErrDuplicatedKey so repositories can classify them.
func InitPostgres(uri string, log *logrus.Logger) (*gorm.DB, error) {
	if uri == "" {
		return nil, errors.New("POSTGRES_URI environment variable is not set")
	}

	level := gormlogger.Warn
	if log != nil && log.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
