package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	DB *gorm.DB
}

func New(databaseURL string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(databaseURL, "sqlite://") {
		// SQLite for development
		dbPath := strings.TrimPrefix(databaseURL, "sqlite://")
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	} else {
		// PostgreSQL for production
		db, err = gorm.Open(postgres.Open(databaseURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	createTablesSQL := `
	CREATE TABLE IF NOT EXISTS stores (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		plan TEXT DEFAULT 'free',
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS store_integrations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		store_id UUID NOT NULL,
		platform TEXT NOT NULL,
		shop_domain TEXT,
		api_key TEXT,
		api_secret TEXT,
		access_token TEXT,
		refresh_token TEXT,
		webhook_secret TEXT,
		status TEXT DEFAULT 'ACTIVE',
		last_sync TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE (store_id, platform)
	);

	CREATE TABLE IF NOT EXISTS budget_settings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		store_id UUID UNIQUE NOT NULL,
		needs_percentage DECIMAL DEFAULT 50,
		wants_percentage DECIMAL DEFAULT 30,
		savings_percentage DECIMAL DEFAULT 20,
		max_discount_percentage DECIMAL DEFAULT 25,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);
	`

	if err := db.Exec(createTablesSQL).Error; err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
