package database

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/thereayou/partychat/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// Connect открывает базу по DSN и прогоняет миграции.
// sqlite://path открывает локальный SQLite, всё остальное уходит в Postgres.
func (d *Database) Connect(dsn string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}

	if strings.HasPrefix(dsn, sqlitePrefix) {
		db, err := openSQLite(strings.TrimPrefix(dsn, sqlitePrefix))
		if err != nil {
			return err
		}
		d.db = db
		return d.AutoMigrate()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	d.db = db

	return d.AutoMigrate()
}

// OpenSQLite opens (or creates) a SQLite file and migrates it. Used for
// local runs and tests.
func OpenSQLite(path string) (*Database, error) {
	d := &Database{}
	if err := d.Connect(sqlitePrefix + path); err != nil {
		return nil, err
	}
	return d, nil
}

func openSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// SQLite не умеет SELECT ... FOR UPDATE, транзакции сериализуем одним соединением
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	return db, nil
}

func (d *Database) AutoMigrate() error {
	return d.db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomParticipant{},
		&models.Message{},
		&models.MessageRead{},
		&models.Attachment{},
		&models.Ticket{},
		&models.MatchGroup{},
		&models.MatchGroupMember{},
	)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
