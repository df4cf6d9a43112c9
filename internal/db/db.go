package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/leadtracker/crm/internal/analytics"
	"github.com/leadtracker/crm/internal/chat"
	"github.com/leadtracker/crm/internal/models"
	"github.com/leadtracker/crm/internal/records"
)

// Connect opens the database for driver and applies pool settings.
func Connect(reg *Registry, driver, dsn string, log zerolog.Logger) (*gorm.DB, error) {
	dialector, err := reg.Get(driver, dsn)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(zerologWriter{log: log}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// sqlite allows a single writer; serialize through one connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return gdb, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&records.FieldTemplate{},
		&records.Client{},
		&records.ClientField{},
		&analytics.UserActivity{},
		&analytics.Job{},
		&chat.Room{},
		&chat.RoomMember{},
		&chat.Message{},
	)
}

type zerologWriter struct {
	log zerolog.Logger
}

func (w zerologWriter) Printf(format string, args ...any) {
	w.log.Warn().Str("component", "gorm").Msgf(format, args...)
}
