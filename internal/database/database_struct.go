package database

import "gorm.io/gorm"

type Database struct {
	db *gorm.DB
}

func newDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// DB отдаёт исходный *gorm.DB (для health-check и тестов)
func (d *Database) DB() *gorm.DB {
	return d.db
}
